// Package stores provides Redis-backed, short-lived record stores for the
// login protocol: single-use codes (captcha answers, SMS codes), cached
// permission sets and QR cross-device handshakes.
//
// Every state transition is one Redis command or one Lua script. No store
// holds in-process locks; TTL expiry is the only cleanup.
//
// This package does not generate codes or tokens and makes no authentication
// decisions. It must not import the root package or sibling internal packages.
package stores

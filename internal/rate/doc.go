// Package rate provides a Redis-backed fixed-window throttle for issuance
// endpoints that create ephemeral records (captcha challenges, QR handshakes,
// SMS codes).
//
// # Window semantics
//
// INCR plus PEXPIRE on the first hit, run as one Lua script so a counter can
// never be left without a TTL. Key prefix: "ari:<action>:<ip>".
package rate

// Package jwt mints and verifies the signed session tokens handed out at login,
// QR confirmation and sliding refresh. Tokens carry identity and roles only.
package jwt

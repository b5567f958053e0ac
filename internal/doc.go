// Package internal holds helpers private to adminauth, mainly random value
// generation for challenges, codes and handshake identifiers.
//
// Sub-packages:
//
//   - flows: pure-function orchestrators for the Engine operations
//   - limiters: the failed-login lockout
//   - rate: per-IP issuance throttle
//   - stores: Redis record stores (codes, permissions, QR handshakes)
package internal

// Package adminauth implements the login and session protocol of an admin
// panel: captcha-gated password login with a failed-attempt lockout, fixed
// lifetime signed session tokens with a sliding refresh side channel, a
// shared permission cache, and cross-device login by QR code. Providers that
// implement [AccountStore] also get self-service registration and phone
// binding.
//
// Build an [Engine] with [New] and [Builder.Build]. Engine methods are safe
// to call from multiple goroutines, and every piece of shared state lives in
// Redis, so any number of engines may serve the same users.
//
// # Architecture boundaries
//
// adminauth is the public surface. It exposes [Engine], [Builder], [Config]
// and value types. Flow orchestration, Redis records and the issuance
// throttle live under internal/ and are never exported. Token signing lives
// in jwt, password hashing in password, the permission model in permission
// and the refresh sentinel in refresh.
//
// # Shared records
//
//   - lockout counter and lock flag per login identifier
//   - single-use captcha answers, SMS login codes and phone bind codes
//   - permission set per user, written at login and recomputed on a miss
//   - QR handshake per uuid, pending until confirmed and consumed once
//   - refresh sentinel per user, held for one refresh window
//
// Each check-and-update on these records is a single Redis command or Lua
// script.
//
// # Refresh side channel
//
// [Engine.Authenticate] returns [AuthResult.RefreshedToken] when the token is
// close to expiry and this request won the per-user refresh slot. Transport
// adapters hand it to the client in the X-Refresh-Token header; the original
// token stays valid until its own expiry. [Engine.QRConfirm] and
// [Engine.BindPhone] run the same guard; [Engine.Logout] never refreshes.
package adminauth

// Package refresh coalesces concurrent session-token refreshes.
//
// A near-expiry token may reach the server on many parallel requests. Only the
// request that wins the per-user sentinel (SET NX PX) mints a replacement;
// the rest keep their current token until the sentinel expires.
//
// This package owns the sentinel only. The decision to refresh and the minting
// itself belong to the authenticate flow.
package refresh

// Package limiters provides Redis-backed counters that gate authentication
// attempts.
//
//   - [LockoutLimiter] counts consecutive failed logins per identifier and
//     locks the identifier for a fixed duration once a threshold is reached.
//
// Every mutation is one Redis command or one Lua script, so concurrent
// requests for the same identifier never interleave between a read and a write.
// Limiters only count; flow code decides what a lock means for the caller.
package limiters

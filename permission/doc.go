// Package permission models the admin panel's string permissions
// ("system:user:list", "system:user:*", "*:*:*") and the binary codec used to
// keep a user's permission set in the shared cache.
//
// The package is pure data: no I/O, no Redis, no imports of the engine.
package permission

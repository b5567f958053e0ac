// Package middleware adapts the adminauth guard pipeline to net/http.
//
//   - [Guard] runs bearer extraction and authentication, or any given stages.
//   - [RequirePermission] adds a permission check.
//
// Both store the [adminauth.AuthResult] in the request context and forward a
// refreshed token in the X-Refresh-Token response header. Decisions are made
// by the engine; this package only translates them to HTTP.
package middleware

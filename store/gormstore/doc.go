// Package gormstore implements [adminauth.UserProvider] over the admin panel
// schema (sys_user, sys_role, sys_user_role, sys_menu, sys_role_menu) with
// gorm. Holders of the admin role key receive the "*:*:*" permission.
package gormstore

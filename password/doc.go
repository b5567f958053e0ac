// Package password hashes and verifies account secrets with Argon2id.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The package never stores or logs secrets; callers hand in plaintext and get
// back an encoded hash or a match result.
package password

// Package password compares submitted secrets against stored credential hashes.
//
// Stored hashes are self-describing. bcrypt hashes ($2a$, $2b$, $2y$) are the primary
// format and what [Bcrypt.Hash] produces. argon2id hashes in PHC string format are
// accepted for accounts migrated from other systems:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// # What this package must NOT do
//
//   - Store or retrieve hashes; callers supply both sides.
//   - Import any other dashauth package.
//   - Log plaintext secrets or hash material.
package password

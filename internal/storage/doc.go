// Package storage provides the BBolt database interface for seedvault.
//
// Database structure uses three buckets:
//   - config: schema version, timestamps, vault ID (unencrypted)
//   - vault: the single encrypted VaultRecord (seed ciphertext, KDF salt
//     and parameters, nonce, address)
//   - session: the persisted bearer session under a well-known key
//
// Replacing the record is one BBolt write transaction. BBolt commits by
// writing new pages and then swapping the meta page, so a failed or
// interrupted write leaves the previous record intact.
//
// The address and KDF parameters are readable without a password, which
// lets seedvault status work on a locked vault.
package storage

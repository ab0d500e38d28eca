// Package crypto provides the cryptographic adapters used by seedvault.
//
// Encryption uses AES-256-GCM with:
//   - 32-byte key derived from the password
//   - 12-byte nonce supplied by the caller, never reused for a key
//   - 16-byte tag appended to the ciphertext, checked in constant time
//
// Key derivation is memory-hard argon2id by default:
//   - 32-byte random salt (stored unencrypted next to the ciphertext)
//   - time=3, memory=64 MiB, parallelism=4
//
// Derivation parameters travel with every vault record, so defaults can be
// raised without breaking older vaults. PBKDF2-HMAC-SHA256 stays readable
// for records written with it.
//
// Memory safety:
//   - Use ClearBytes() to zero sensitive data after use
//   - DeriveKeyContext() zeroes keys that arrive after cancellation
package crypto

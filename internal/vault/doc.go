// Package vault holds a wallet seed encrypted under a user password and,
// while unlocked, the key material derived from it.
//
// A Vault moves between three states:
//
//	Uninitialized --Create/Import--> Locked
//	Locked        --Unlock-------->  Unlocked
//	Unlocked      --Lock---------->  Locked
//
// Every password check goes through a single decrypt attempt; there is no
// separate verifier stored next to the ciphertext. The derived key is never
// kept beyond the call that needed it.
package vault

// Package secure keeps long-lived bearer tokens out of plain Go memory.
//
// Static tokens handed to the client at construction can live for the whole
// process. They are sealed in a memguard enclave, which is:
//
//   - Encrypted at rest in memory (XSalsa20Poly1305)
//   - Protected from swapping via mlock
//   - Wiped when destroyed
//
// A sealed value is only decrypted for the duration of a single request.
//
// # Platform Behavior
//
// On Linux mlock requires RLIMIT_MEMLOCK to be large enough for the
// enclave key. Call memguard.Purge() at process exit to wipe every enclave
// at once; cmd/secretctl does this in main.
package secure

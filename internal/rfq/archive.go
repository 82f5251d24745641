package rfq

import "io"

// Archive stores store snapshots produced after a crawl.
// All operations stream through io.Reader/io.Writer.
type Archive interface {
	// Put stores an object under name, replacing any previous object.
	// size is the number of bytes that will be read from r.
	Put(name string, r io.Reader, size int64) error

	// Get writes the named object to w.
	Get(name string, w io.Writer) error

	// List returns object names with the given prefix, sorted.
	List(prefix string) ([]string, error)

	// ValidateSetup verifies that the archive is reachable and writable.
	ValidateSetup() error
}

// Encryptor encrypts snapshots with a public key. Decryption requires
// unlocking the private key with a passphrase.
type Encryptor interface {
	// Setup generates a key pair and protects the private key with passphrase.
	Setup(passphrase string) error

	Encrypt(r io.Reader, w io.Writer) error

	// Unlock returns a DecryptionContext, or an error for a wrong passphrase.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}

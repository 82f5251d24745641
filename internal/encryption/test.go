package encryption

import (
	"bytes"
	"fmt"
	"io"

	"rfq-tracker/internal/rfq"
)

var testHeader = []byte("RFQENC\x00\x01")

// TestEncryptor frames data with a fixed header instead of encrypting it.
// Output is deterministic and differs from the input.
type TestEncryptor struct {
	passphrase string
	configured bool
}

var _ rfq.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor returns an encryptor that is already configured with an
// empty passphrase.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{configured: true}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.passphrase = passphrase
	e.configured = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

// Unlock fails only when Setup recorded a different passphrase.
func (e *TestEncryptor) Unlock(passphrase string) (rfq.DecryptionContext, error) {
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, fmt.Errorf("unlocking private key: wrong passphrase")
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return e.configured
}

type TestDecryptionContext struct{}

var _ rfq.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("not a test-encrypted stream")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

package encryption

import (
	"fmt"

	"rfq-tracker/internal/config"
	"rfq-tracker/internal/rfq"
)

// NewEncryptorFromConfig returns the snapshot encryptor selected by cfg.Type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (rfq.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}

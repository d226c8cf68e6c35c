package config

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// ExportConfig guards the compliance audit-export endpoint. Only the bcrypt
// hash of the export key is ever configured; the plaintext key lives with
// the compliance team.
type ExportConfig struct {
	KeyHash string
}

// NewExportConfig creates an export configuration from environment
// variables. It reads EXPORT_KEY_HASH; when unset, the export endpoint is
// disabled.
func NewExportConfig() (*ExportConfig, error) {
	hash := os.Getenv("EXPORT_KEY_HASH")
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("EXPORT_KEY_HASH is not a bcrypt hash: %v", err)
		}
	}
	return &ExportConfig{KeyHash: hash}, nil
}

// Enabled reports whether an export key is configured.
func (c *ExportConfig) Enabled() bool {
	return c.KeyHash != ""
}

// VerifyKey checks a presented export key against the configured hash.
func (c *ExportConfig) VerifyKey(key string) bool {
	if !c.Enabled() {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.KeyHash), []byte(key)) == nil
}

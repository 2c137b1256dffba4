package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
)

// Placeholder values written into fresh config files.
const (
	PlaceholderKey    = "copy API key here"
	PlaceholderSecret = "copy API secret here"
)

// Credentials is the API key pair. It never prints its contents.
type Credentials struct {
	Key    string
	Secret []byte
}

// NewCredentials builds a Credentials value from config strings.
func NewCredentials(key, secret string) Credentials {
	return Credentials{Key: key, Secret: []byte(secret)}
}

// IsPlaceholder reports whether the credentials are missing or the unedited defaults.
func (c Credentials) IsPlaceholder() bool {
	if c.Key == "" || len(c.Secret) == 0 {
		return true
	}
	return c.Key == PlaceholderKey || c.Key == PlaceholderSecret ||
		string(c.Secret) == PlaceholderSecret || string(c.Secret) == PlaceholderKey
}

// Fingerprint identifies the key without revealing it.
func (c Credentials) Fingerprint() string {
	sum := sha256.Sum256([]byte(c.Key))
	return hex.EncodeToString(sum[:8])
}

func (c Credentials) String() string {
	return "credentials(" + c.Fingerprint() + ")"
}

// LogValue keeps key and secret out of structured logs.
func (c Credentials) LogValue() slog.Value {
	return slog.StringValue(c.String())
}

// CredentialSource is what the configuration collaborator hands to the core.
type CredentialSource struct {
	Credentials Credentials
	LastNonce   int64
}

package domain

import (
	"time"
)

// NonceRecord is the persisted nonce of one API key
type NonceRecord struct {
	Fingerprint string    `gorm:"primaryKey" json:"fingerprint"`
	Nonce       int64     `json:"nonce"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AppConfig represents user-specific configuration (Key-Value)
type AppConfig struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

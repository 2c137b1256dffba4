package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"btce_go/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// keySelectedPairs stores the consumer's pair selection between runs.
const keySelectedPairs = "selected_pairs"

// Storage is the SQLite-backed persistence for nonces and user settings
type Storage struct {
	db *gorm.DB
}

// NewStorage creates a new SQLite storage instance.
// An empty path resolves to the per-user data directory.
func NewStorage(path string) (*Storage, error) {
	dbPath := path
	if dbPath == "" {
		var err error
		dbPath, err = getDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
	}

	// Ensure directory exists
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return newStorage(db)
}

func newStorage(db *gorm.DB) (*Storage, error) {
	// Auto Migration
	if err := db.AutoMigrate(&domain.NonceRecord{}, &domain.AppConfig{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close releases the underlying connection.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "BTCeGo", "data", "btce.db"), nil
}

// ======================================================================================
// Nonce Operations
// ======================================================================================

// GetNonce returns the last saved nonce of a key, 0 when none was saved.
func (s *Storage) GetNonce(fingerprint string) (int64, error) {
	var rec domain.NonceRecord
	err := s.db.First(&rec, "fingerprint = ?", fingerprint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil // Not found is not an error
	}
	if err != nil {
		return 0, err
	}
	return rec.Nonce, nil
}

// SaveNonce stores the nonce of a key. A value lower than the stored one is ignored.
func (s *Storage) SaveNonce(fingerprint string, nonce int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var rec domain.NonceRecord
		err := tx.First(&rec, "fingerprint = ?", fingerprint).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&domain.NonceRecord{Fingerprint: fingerprint, Nonce: nonce}).Error
		case err != nil:
			return err
		case nonce <= rec.Nonce:
			return nil
		}
		rec.Nonce = nonce
		return tx.Save(&rec).Error
	})
}

// ======================================================================================
// Config Operations
// ======================================================================================

// SaveConfig saves a user configuration
func (s *Storage) SaveConfig(key, value string) error {
	config := domain.AppConfig{
		Key:   key,
		Value: value,
	}
	return s.db.Save(&config).Error
}

// LoadConfigMap loads all user configurations as a map
func (s *Storage) LoadConfigMap() (map[string]string, error) {
	var configs []domain.AppConfig
	if err := s.db.Find(&configs).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, cfg := range configs {
		result[cfg.Key] = cfg.Value
	}
	return result, nil
}

// SaveSelectedPairs remembers the consumer's pair selection.
func (s *Storage) SaveSelectedPairs(pairs []string) error {
	return s.SaveConfig(keySelectedPairs, strings.Join(pairs, ","))
}

// LoadSelectedPairs returns the remembered selection, nil when none.
func (s *Storage) LoadSelectedPairs() ([]string, error) {
	cfg, err := s.LoadConfigMap()
	if err != nil {
		return nil, err
	}
	v := cfg[keySelectedPairs]
	if v == "" {
		return nil, nil
	}
	return strings.Split(v, ","), nil
}

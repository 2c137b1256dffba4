package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"btce_go/internal/domain"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent is sent on every exchange request
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	DefaultPublicURL  = "https://btc-e.com/api/3"
	DefaultPrivateURL = "https://btc-e.com/tapi"
)

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 민감 내용을 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		PublicURL  string  `yaml:"public_url"`
		PrivateURL string  `yaml:"private_url"`
		Key        string  `yaml:"key"`
		Secret     string  `yaml:"secret"`
		TimeoutSec int     `yaml:"timeout_sec"`
		PublicRPS  float64 `yaml:"public_rps"`
		PrivateRPS float64 `yaml:"private_rps"`
	} `yaml:"api"`

	Refresh struct {
		DepthMS   int      `yaml:"depth_ms"`
		AccountMS int      `yaml:"account_ms"`
		OrdersMS  int      `yaml:"orders_ms"`
		InfoMS    int      `yaml:"info_ms"`
		Pairs     []string `yaml:"pairs"`
	} `yaml:"refresh"`

	UI struct {
		UpdateIntervalMS int `yaml:"update_interval_ms"`
		ConsoleLines     int `yaml:"console_lines"`
	} `yaml:"ui"`

	Feed struct {
		Addr string `yaml:"addr"`
	} `yaml:"feed"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration that runs in public-only mode.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "btce_go"
	cfg.App.Version = "dev"
	cfg.API.PublicURL = DefaultPublicURL
	cfg.API.PrivateURL = DefaultPrivateURL
	cfg.API.Key = domain.PlaceholderKey
	cfg.API.Secret = domain.PlaceholderSecret
	cfg.API.TimeoutSec = 5
	cfg.Refresh.DepthMS = 1000
	cfg.Refresh.AccountMS = 5000
	cfg.Refresh.OrdersMS = 10000
	cfg.Refresh.InfoMS = 30000
	cfg.Refresh.Pairs = []string{"btc_usd"}
	cfg.UI.UpdateIntervalMS = 1000
	cfg.UI.ConsoleLines = 500
	cfg.Logging.Level = "info"
	cfg.Logging.File = filepath.Join("logs", "app.log")
	return cfg
}

// LoadConfig는 설정 파일을 읽고 파싱합니다.
// envFile이 비어 있지 않으면 먼저 .env를 로드합니다. 파일이 없으면 무시합니다.
func LoadConfig(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, &domain.ConfigError{Field: "env_file", Err: err}
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// 4원칙: 보안 우선 - 환경 변수 오버라이드 지원
	overrideWithEnv(cfg)

	// 5원칙: 설정 유효성 검사
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if !hasPrefix(c.API.PublicURL, "http://") && !hasPrefix(c.API.PublicURL, "https://") {
		return &domain.ConfigError{Field: "api.public_url", Err: fmt.Errorf("invalid url %q", c.API.PublicURL)}
	}
	if !hasPrefix(c.API.PrivateURL, "http://") && !hasPrefix(c.API.PrivateURL, "https://") {
		return &domain.ConfigError{Field: "api.private_url", Err: fmt.Errorf("invalid url %q", c.API.PrivateURL)}
	}
	if c.API.TimeoutSec <= 0 {
		return &domain.ConfigError{Field: "api.timeout_sec", Err: errors.New("must be positive")}
	}
	if c.API.PublicRPS < 0 || c.API.PrivateRPS < 0 {
		return &domain.ConfigError{Field: "api.rps", Err: errors.New("must not be negative")}
	}

	intervals := map[string]int{
		"refresh.depth_ms":      c.Refresh.DepthMS,
		"refresh.account_ms":    c.Refresh.AccountMS,
		"refresh.orders_ms":     c.Refresh.OrdersMS,
		"refresh.info_ms":       c.Refresh.InfoMS,
		"ui.update_interval_ms": c.UI.UpdateIntervalMS,
	}
	for field, v := range intervals {
		if v <= 0 {
			return &domain.ConfigError{Field: field, Err: errors.New("interval must be positive")}
		}
	}

	for i, p := range c.Refresh.Pairs {
		norm, err := domain.NormalizePair(p)
		if err != nil {
			return &domain.ConfigError{Field: "refresh.pairs", Err: err}
		}
		c.Refresh.Pairs[i] = norm
	}

	return nil
}

// Credentials returns the configured API key pair.
func (c *Config) Credentials() domain.Credentials {
	return domain.NewCredentials(strings.TrimSpace(c.API.Key), strings.TrimSpace(c.API.Secret))
}

// Timeout is the per-request HTTP timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("BTCE_API_KEY"); key != "" {
		cfg.API.Key = key
	}
	if secret := os.Getenv("BTCE_API_SECRET"); secret != "" {
		cfg.API.Secret = secret
	}
	if addr := os.Getenv("BTCE_FEED_ADDR"); addr != "" {
		cfg.Feed.Addr = addr
	}
}

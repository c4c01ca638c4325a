package config

import (
	"strings"
	"time"
)

// Config is the connector's root configuration.
type Config struct {
	App     AppConfig     `toml:"app"`
	Session SessionConfig `toml:"session"`
	Venue   VenueConfig   `toml:"venue"`
	Binance BinanceConfig `toml:"binance"`
	Storage StorageConfig `toml:"storage"`
	HTTP    HTTPConfig    `toml:"http"`
	Notify  NotifyConfig  `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	// WireLogPath receives every raw FIX frame when set.
	WireLogPath string `toml:"wire_log_path"`
}

// SessionConfig describes the FIX session. Connection details live in the
// quickfix settings file.
type SessionConfig struct {
	SettingsPath string        `toml:"settings_path"`
	Username     string        `toml:"username"`
	Password     string        `toml:"password"`
	ScreenLog    bool          `toml:"screen_log"`
	IDPrefix     string        `toml:"id_prefix"`
	LogonTimeout time.Duration `toml:"logon_timeout"`
}

const (
	VenueFIX     = "fix"
	VenueBinance = "binance"

	TimeoutPolicyKeep  = "keep"
	TimeoutPolicyEvict = "evict"
)

type VenueConfig struct {
	Name           string        `toml:"name"`
	Account        string        `toml:"account"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	// TimeoutPolicy is "keep" (leave the request pending for a late answer) or
	// "evict" (complete it with a timeout error).
	TimeoutPolicy   string `toml:"timeout_policy"`
	CancelOnTimeout bool   `toml:"cancel_on_timeout"`
}

func (v VenueConfig) EvictOnTimeout() bool {
	return strings.EqualFold(strings.TrimSpace(v.TimeoutPolicy), TimeoutPolicyEvict)
}

type BinanceConfig struct {
	APIKey           string        `toml:"api_key"`
	SecretKey        string        `toml:"secret_key"`
	RESTBaseURL      string        `toml:"rest_base_url"`
	HTTPTimeout      time.Duration `toml:"http_timeout"`
	ProxyEnabled     bool          `toml:"proxy_enabled"`
	RESTProxyURL     string        `toml:"rest_proxy_url"`
	BreakerThreshold int           `toml:"breaker_threshold"`
	BreakerCooldown  time.Duration `toml:"breaker_cooldown"`
}

type StorageConfig struct {
	JournalEnabled bool   `toml:"journal_enabled"`
	JournalPath    string `toml:"journal_path"`
	JournalBuffer  int    `toml:"journal_buffer"`
	LedgerPath     string `toml:"ledger_path"`
}

type HTTPConfig struct {
	Addr            string        `toml:"addr"`
	Mode            string        `toml:"mode"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// keySet tracks the key paths explicitly set in the config files.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
	// APIBaseURL overrides https://api.telegram.org.
	APIBaseURL string `toml:"api_base_url"`
}

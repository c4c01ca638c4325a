package config

import (
	"strings"
	"time"
)

const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultSessionSettings  = "configs/fix.cfg"
	defaultSessionLogon     = 30 * time.Second
	defaultVenueName        = VenueFIX
	defaultVenueTimeout     = 10 * time.Second
	defaultVenuePolicy      = TimeoutPolicyKeep
	defaultBinanceREST      = "https://fapi.binance.com"
	defaultBinanceHTTP      = 15 * time.Second
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 2 * time.Minute
	defaultJournalPath      = "data/journal.db"
	defaultJournalBuffer    = 1024
	defaultLedgerPath       = "data/ledger.db"
	defaultHTTPAddr         = ":9991"
	defaultHTTPMode         = "release"
	defaultHTTPShutdown     = 5 * time.Second
	defaultJournalEnabled   = true
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Session.applyDefaults(keys)
	c.Venue.applyDefaults(keys)
	c.Binance.applyDefaults(keys)
	c.Storage.applyDefaults(keys)
	c.HTTP.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
	)
}

func (s *SessionConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("session.settings_path", &s.SettingsPath, defaultSessionSettings),
		durationFieldDefault("session.logon_timeout", &s.LogonTimeout, defaultSessionLogon),
	)
}

func (v *VenueConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("venue.name", &v.Name, defaultVenueName),
		durationFieldDefault("venue.request_timeout", &v.RequestTimeout, defaultVenueTimeout),
		stringFieldDefault("venue.timeout_policy", &v.TimeoutPolicy, defaultVenuePolicy),
	)
	v.Name = strings.ToLower(strings.TrimSpace(v.Name))
	v.TimeoutPolicy = strings.ToLower(strings.TrimSpace(v.TimeoutPolicy))
}

func (b *BinanceConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("binance.rest_base_url", &b.RESTBaseURL, defaultBinanceREST),
		durationFieldDefault("binance.http_timeout", &b.HTTPTimeout, defaultBinanceHTTP),
		durationFieldDefault("binance.breaker_cooldown", &b.BreakerCooldown, defaultBreakerCooldown),
		fieldDefault{
			key:   "binance.breaker_threshold",
			need:  func() bool { return b.BreakerThreshold <= 0 },
			apply: func() { b.BreakerThreshold = defaultBreakerThreshold },
		},
	)
}

func (s *StorageConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		boolFieldDefault("storage.journal_enabled", &s.JournalEnabled, defaultJournalEnabled),
		stringFieldDefault("storage.journal_path", &s.JournalPath, defaultJournalPath),
		stringFieldDefault("storage.ledger_path", &s.LedgerPath, defaultLedgerPath),
		fieldDefault{
			key:   "storage.journal_buffer",
			need:  func() bool { return s.JournalBuffer <= 0 },
			apply: func() { s.JournalBuffer = defaultJournalBuffer },
		},
	)
}

func (h *HTTPConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("http.addr", &h.Addr, defaultHTTPAddr),
		stringFieldDefault("http.mode", &h.Mode, defaultHTTPMode),
		durationFieldDefault("http.shutdown_timeout", &h.ShutdownTimeout, defaultHTTPShutdown),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

// boolFieldDefault only applies when the key is absent, since false is a
// meaningful explicit value.
func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:   key,
		apply: func() { *target = def },
	}
}

func durationFieldDefault(key string, target *time.Duration, def time.Duration) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

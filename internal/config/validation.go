package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Venue.validate(); err != nil {
		return err
	}
	switch c.Venue.Name {
	case VenueFIX:
		if err := c.Session.validate(); err != nil {
			return err
		}
	case VenueBinance:
		if err := c.Binance.validate(); err != nil {
			return err
		}
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if err := c.HTTP.validate(); err != nil {
		return err
	}
	return c.Notify.validate()
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("app.log_level %q is not one of debug, info, warn, error", a.LogLevel)
}

func (v *VenueConfig) validate() error {
	switch v.Name {
	case VenueFIX, VenueBinance:
	default:
		return fmt.Errorf("venue.name %q is not supported (fix or binance)", v.Name)
	}
	if v.RequestTimeout <= 0 {
		return fmt.Errorf("venue.request_timeout must be > 0")
	}
	switch v.TimeoutPolicy {
	case TimeoutPolicyKeep, TimeoutPolicyEvict:
	default:
		return fmt.Errorf("venue.timeout_policy %q must be keep or evict", v.TimeoutPolicy)
	}
	return nil
}

func (s *SessionConfig) validate() error {
	if strings.TrimSpace(s.SettingsPath) == "" {
		return fmt.Errorf("session.settings_path is required for the fix venue")
	}
	if s.LogonTimeout <= 0 {
		return fmt.Errorf("session.logon_timeout must be > 0")
	}
	if s.Password != "" && s.Username == "" {
		return fmt.Errorf("session.password requires session.username")
	}
	return nil
}

func (b *BinanceConfig) validate() error {
	if strings.TrimSpace(b.APIKey) == "" || strings.TrimSpace(b.SecretKey) == "" {
		return fmt.Errorf("binance.api_key and binance.secret_key are required for the binance venue")
	}
	if b.ProxyEnabled && strings.TrimSpace(b.RESTProxyURL) == "" {
		return fmt.Errorf("binance.rest_proxy_url is required when binance.proxy_enabled is true")
	}
	return nil
}

func (s *StorageConfig) validate() error {
	if s.JournalEnabled && strings.TrimSpace(s.JournalPath) == "" {
		return fmt.Errorf("storage.journal_path is required when the journal is enabled")
	}
	return nil
}

func (h *HTTPConfig) validate() error {
	switch h.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("http.mode %q must be debug, release or test", h.Mode)
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if tg.Enabled && (strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "") {
		return fmt.Errorf("notify.telegram.bot_token and notify.telegram.chat_id are required when telegram is enabled")
	}
	return nil
}

package app

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"exconnector/internal/config"
)

const masked = "******"

// StartupSummary is the effective configuration printed once at startup.
type StartupSummary struct {
	Env     string         `yaml:"env,omitempty"`
	Venue   VenueSummary   `yaml:"venue"`
	Session SessionSummary `yaml:"session,omitempty"`
	Storage StorageSummary `yaml:"storage"`
	HTTP    HTTPSummary    `yaml:"http"`
	Alerts  string         `yaml:"alerts"`
}

type VenueSummary struct {
	Name            string `yaml:"name"`
	Account         string `yaml:"account,omitempty"`
	RequestTimeout  string `yaml:"request_timeout"`
	TimeoutPolicy   string `yaml:"timeout_policy"`
	CancelOnTimeout bool   `yaml:"cancel_on_timeout"`
	APIKey          string `yaml:"api_key,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
}

type SessionSummary struct {
	SettingsPath string `yaml:"settings_path,omitempty"`
	Username     string `yaml:"username,omitempty"`
	Password     string `yaml:"password,omitempty"`
	LogonTimeout string `yaml:"logon_timeout,omitempty"`
}

type StorageSummary struct {
	Ledger  string `yaml:"ledger"`
	Journal string `yaml:"journal"`
}

type HTTPSummary struct {
	Addr string `yaml:"addr"`
	Mode string `yaml:"mode"`
}

func NewStartupSummary(cfg *config.Config) *StartupSummary {
	s := &StartupSummary{
		Env: cfg.App.Env,
		Venue: VenueSummary{
			Name:            cfg.Venue.Name,
			Account:         cfg.Venue.Account,
			RequestTimeout:  cfg.Venue.RequestTimeout.String(),
			TimeoutPolicy:   cfg.Venue.TimeoutPolicy,
			CancelOnTimeout: cfg.Venue.CancelOnTimeout,
		},
		Storage: StorageSummary{Ledger: cfg.Storage.LedgerPath, Journal: "disabled"},
		HTTP:    HTTPSummary{Addr: cfg.HTTP.Addr, Mode: cfg.HTTP.Mode},
		Alerts:  "disabled",
	}
	if cfg.Notify.Telegram.Enabled {
		s.Alerts = "telegram chat " + cfg.Notify.Telegram.ChatID
	}
	switch cfg.Venue.Name {
	case config.VenueFIX:
		s.Session = SessionSummary{
			SettingsPath: cfg.Session.SettingsPath,
			Username:     cfg.Session.Username,
			Password:     mask(cfg.Session.Password),
			LogonTimeout: cfg.Session.LogonTimeout.String(),
		}
		if cfg.Storage.JournalEnabled {
			s.Storage.Journal = cfg.Storage.JournalPath
		}
	case config.VenueBinance:
		s.Venue.APIKey = mask(cfg.Binance.APIKey)
		s.Venue.Endpoint = cfg.Binance.RESTBaseURL
	}
	return s
}

func (s *StartupSummary) Print(w io.Writer) {
	out, err := yaml.Marshal(s)
	if err != nil {
		fmt.Fprintf(w, "startup summary unavailable: %v\n", err)
		return
	}
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, "STARTUP SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	_, _ = w.Write(out)
	fmt.Fprintln(w, strings.Repeat("=", 60))
}

// mask keeps the last four characters of long secrets.
func mask(secret string) string {
	secret = strings.TrimSpace(secret)
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return masked
	default:
		return masked + secret[len(secret)-4:]
	}
}

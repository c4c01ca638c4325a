package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"exconnector/internal/logger"
)

// ChangeListener receives the reloaded configuration.
type ChangeListener func(*Config)

// Watcher reloads the configuration whenever the root file changes. Only
// settings that are safe to change at runtime should be applied by listeners.
type Watcher struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	current   *Config
	listeners []ChangeListener
	closed    bool
}

func Watch(path string, initial *Config) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(abs)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config for watch failed: %w", err)
	}
	w := &Watcher{path: abs, v: v, current: initial}
	v.OnConfigChange(func(evt fsnotify.Event) { w.reload(evt.Name) })
	v.WatchConfig()
	return w, nil
}

func (w *Watcher) reload(name string) {
	w.mu.RLock()
	closed := w.closed
	w.mu.RUnlock()
	if closed {
		return
	}
	cfg, err := Load(w.path)
	if err != nil {
		logger.Errorf("config reload failed (%s): %v", name, err)
		return
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.current = cfg
	listeners := append([]ChangeListener(nil), w.listeners...)
	w.mu.Unlock()
	logger.Infof("config reloaded from %s", name)
	for _, fn := range listeners {
		fn(cfg)
	}
}

// Close detaches every listener. viper cannot stop its watch goroutine, so
// later file events are still received and ignored.
func (w *Watcher) Close() {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.closed = true
	w.listeners = nil
	w.mu.Unlock()
}

func (w *Watcher) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.listeners = append(w.listeners, fn)
}

func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// ApplyLogLevel is a ChangeListener that follows app.log_level.
func ApplyLogLevel(cfg *Config) {
	if logger.ParseLevel(cfg.App.LogLevel) == logger.Level() {
		return
	}
	logger.Infof("log level -> %s", cfg.App.LogLevel)
	logger.SetLevel(cfg.App.LogLevel)
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	defaultAddr      = "127.0.0.1:8080"
	defaultStaticDir = "web/public"
	defaultLogLevel  = "info"
)

type config struct {
	Addr      string          `yaml:"addr"`
	Origin    string          `yaml:"origin"`
	StaticDir string          `yaml:"static_dir"`
	LogLevel  string          `yaml:"log_level"`
	Heartbeat heartbeatConfig `yaml:"heartbeat"`
	Table     tableConfig     `yaml:"table"`
}

type heartbeatConfig struct {
	// Interval between pings.
	Interval time.Duration `yaml:"interval"`
	// Timeout after the last pong before the client is dropped.
	Timeout time.Duration `yaml:"timeout"`
}

type tableConfig struct {
	// Components replace the built-in seed when non-empty.
	Components []component `yaml:"components"`
}

// UnmarshalYAML requires every component to name its role, since the zero
// role is a valid one.
func (tc *tableConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Components []yaml.Node `yaml:"components"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	components := make([]component, 0, len(raw.Components))
	for i, node := range raw.Components {
		if !hasKey(&node, "role") {
			return fmt.Errorf("table.components[%d]: role is required", i)
		}
		var c component
		if err := node.Decode(&c); err != nil {
			return fmt.Errorf("table.components[%d]: %w", i, err)
		}
		components = append(components, c)
	}
	tc.Components = components
	return nil
}

func hasKey(node *yaml.Node, key string) bool {
	if node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}

func defaultConfig() *config {
	return &config{
		Addr:      defaultAddr,
		StaticDir: defaultStaticDir,
		LogLevel:  defaultLogLevel,
		Heartbeat: heartbeatConfig{
			Interval: pingPeriod,
			Timeout:  pongWait,
		},
	}
}

// loadConfig reads the YAML file at path over the defaults. An empty path
// yields the defaults.
func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (cfg *config) validate() error {
	if cfg.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if cfg.Heartbeat.Interval <= 0 {
		return fmt.Errorf("heartbeat.interval must be positive")
	}
	if cfg.Heartbeat.Timeout <= cfg.Heartbeat.Interval {
		return fmt.Errorf("heartbeat.timeout %s must exceed heartbeat.interval %s",
			cfg.Heartbeat.Timeout, cfg.Heartbeat.Interval)
	}
	for i, c := range cfg.Table.Components {
		if c.W <= 0 || c.H <= 0 {
			return fmt.Errorf("table.components[%d]: w and h must be positive", i)
		}
		if c.Owner != nil && *c.Owner < 1 {
			return fmt.Errorf("table.components[%d]: user %d is not a player number", i, *c.Owner)
		}
	}
	return nil
}

func (cfg *config) seed() []component {
	if len(cfg.Table.Components) == 0 {
		return defaultSeed()
	}
	return cfg.Table.Components
}

func (cfg *config) applyLogLevel() {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Warn("keeping log level")
		return
	}
	log.SetLevel(level)
}

// watchConfig calls onChange with the reloaded config each time path is
// written or replaced, until ctx is done. A file that fails to load keeps
// the previous config. The directory is watched so that saves which rename
// a temp file over path are seen.
func watchConfig(ctx context.Context, path string, onChange func(*config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	log.WithField("path", path).Info("watching config")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := loadConfig(path)
			if err != nil {
				log.WithError(err).WithField("path", path).Error("config reload failed")
				continue
			}
			log.WithField("path", path).Info("config reloaded")
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Error("config watcher")
		}
	}
}

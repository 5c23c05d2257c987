package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fllarpy/mbean-bridge/internal/filter"
	"github.com/fllarpy/mbean-bridge/internal/naming"
)

type Config struct {
	Listen        string        `mapstructure:"listen"`
	ServiceName   string        `mapstructure:"service_name"`
	LogLevel      string        `mapstructure:"log_level"`
	TargetTimeout time.Duration `mapstructure:"target_timeout"`
	// RemoteTargets allows requests to name a target=host:port.
	RemoteTargets bool `mapstructure:"remote_targets"`
	// ServeRegistry exposes the local registry over the registry protocol.
	ServeRegistry bool `mapstructure:"serve_registry"`
	Tracing       bool `mapstructure:"tracing"`

	Naming   string `mapstructure:"naming"`
	MaxDepth int    `mapstructure:"max_depth"`

	DefaultAction string            `mapstructure:"default_action"`
	PatternSyntax string            `mapstructure:"pattern_syntax"`
	Rules         []filter.RuleSpec `mapstructure:"rules"`
	Whitelist     []string          `mapstructure:"whitelist"`
	Blacklist     []string          `mapstructure:"blacklist"`

	Beans Beans `mapstructure:"beans"`
}

// Beans selects what the local registry is populated with.
type Beans struct {
	Runtime     bool         `mapstructure:"runtime"`
	Host        bool         `mapstructure:"host"`
	DiskPaths   []string     `mapstructure:"disk_paths"`
	Fixture     string       `mapstructure:"fixture"`
	DataSources []DataSource `mapstructure:"data_sources"`
}

// DataSource is a database/sql pool whose statistics become beans.
type DataSource struct {
	Name   string `mapstructure:"name"`
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// FilterOptions returns the settings that apply to the whole rule list.
func (c Config) FilterOptions() filter.Options {
	return filter.Options{
		DefaultAction: c.DefaultAction,
		Syntax:        c.PatternSyntax,
		Blacklist:     c.Blacklist,
		Whitelist:     c.Whitelist,
	}
}

// Validate reports settings that cannot work. Rule syntax is checked when
// the rules are compiled.
func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if c.TargetTimeout < 0 {
		errs = append(errs, fmt.Errorf("target_timeout %s is negative", c.TargetTimeout))
	}
	if _, err := naming.ParseMode(c.Naming); err != nil {
		errs = append(errs, err)
	}
	for i, ds := range c.Beans.DataSources {
		if ds.Name == "" || ds.Driver == "" {
			errs = append(errs, fmt.Errorf("data_sources[%d]: name and driver are required", i))
		}
	}
	return errors.Join(errs...)
}

// Load reads the configuration. path is either a YAML file or a directory
// holding config.yaml; a missing file leaves the defaults in place.
// Environment variables prefixed with BRIDGE_ override both, with nested
// keys joined by underscores (BRIDGE_BEANS_HOST).
func Load(path string) (config Config, err error) {
	v := viper.New()

	v.SetDefault("listen", ":5556")
	v.SetDefault("service_name", "mbean-bridge")
	v.SetDefault("log_level", "info")
	v.SetDefault("target_timeout", 10*time.Second)
	v.SetDefault("remote_targets", true)
	v.SetDefault("serve_registry", true)
	v.SetDefault("tracing", true)
	v.SetDefault("naming", string(naming.ModeProperties))
	v.SetDefault("max_depth", 8)
	v.SetDefault("default_action", "include")
	v.SetDefault("pattern_syntax", string(filter.SyntaxGlob))
	v.SetDefault("rules", []filter.RuleSpec{})
	v.SetDefault("whitelist", []string{})
	v.SetDefault("blacklist", []string{})
	v.SetDefault("beans.runtime", true)
	v.SetDefault("beans.host", false)
	v.SetDefault("beans.disk_paths", []string{})
	v.SetDefault("beans.fixture", "")
	v.SetDefault("beans.data_sources", []DataSource{})

	if info, statErr := os.Stat(path); statErr == nil && !info.IsDir() {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Clean(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	err = config.Validate()
	return
}

// Package config handles hilite.toml configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("hilite.config")

// FileName is the name of the configuration file.
const FileName = "hilite.toml"

// Defaults for the [engine] section.
const (
	DefaultFlushThreshold    = 2000
	DefaultSliceBudget       = 50 * time.Millisecond
	DefaultContinuationDelay = 10 * time.Millisecond
)

// Finder names accepted by [[embed]] entries.
const (
	FinderReST   = "rest"
	FinderFence  = "fence"
	FinderScript = "script"
)

// Config represents a hilite.toml configuration.
type Config struct {
	Engine Engine  `toml:"engine"`
	Rules  Rules   `toml:"rules"`
	Log    Log     `toml:"log"`
	Store  Store   `toml:"store"`
	Embed  []Embed `toml:"embed"`

	// Dir is the directory containing the hilite.toml file (set at load
	// time). Relative paths in the file are resolved against it.
	Dir string `toml:"-"`
}

// Engine tunes highlight passes.
type Engine struct {
	FlushThreshold    int      `toml:"flush_threshold"`
	SliceBudget       Duration `toml:"slice_budget"`
	ContinuationDelay Duration `toml:"continuation_delay"`
}

// Rules locates rule tables. An empty Dir selects the built-in tables.
type Rules struct {
	Dir string `toml:"dir"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Store configures the annotation database. An empty Path disables it.
type Store struct {
	Path string `toml:"path"`
}

// Embed declares how code of one language embedded in another is found.
// Nodes labelled with "embed:<Tag>" in the Host filetype's rule table are
// searched with Finder and parsed as Language.
type Embed struct {
	Host     string   `toml:"host"`
	Tag      string   `toml:"tag"`
	Language string   `toml:"language"`
	Finder   string   `toml:"finder"`
	Script   string   `toml:"script"`
	Info     []string `toml:"info"`
}

// Duration is a time.Duration written as a string such as "50ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Engine: Engine{
			FlushThreshold:    DefaultFlushThreshold,
			SliceBudget:       Duration{DefaultSliceBudget},
			ContinuationDelay: Duration{DefaultContinuationDelay},
		},
		Embed: []Embed{
			{Host: "python", Tag: "python", Language: "python", Finder: FinderReST},
		},
	}
}

// Load parses hilite.toml from the given directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses a configuration file. Keys the file leaves out keep
// their defaults; an [[embed]] list replaces the default one.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	defaults := c.Embed
	// Decoding into the default entries would leave their fields behind.
	c.Embed = nil
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if !md.IsDefined("embed") {
		c.Embed = defaults
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		log.Warningf("%s: unknown key(s) %v", path, undecoded)
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a hilite.toml file, then
// loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks value ranges and [[embed]] entries.
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.FlushThreshold < 1 {
		errs = append(errs, fmt.Errorf("engine.flush_threshold must be positive, got %d", c.Engine.FlushThreshold))
	}
	if c.Engine.SliceBudget.Duration <= 0 {
		errs = append(errs, fmt.Errorf("engine.slice_budget must be positive, got %s", c.Engine.SliceBudget))
	}
	if c.Engine.ContinuationDelay.Duration < 0 {
		errs = append(errs, fmt.Errorf("engine.continuation_delay must not be negative, got %s", c.Engine.ContinuationDelay))
	}
	for i, e := range c.Embed {
		if e.Host == "" || e.Tag == "" || e.Language == "" {
			errs = append(errs, fmt.Errorf("embed[%d]: host, tag and language are required", i))
		}
		switch e.Finder {
		case FinderReST, FinderFence:
		case FinderScript:
			if e.Script == "" {
				errs = append(errs, fmt.Errorf("embed[%d]: finder %q needs a script", i, e.Finder))
			}
		default:
			errs = append(errs, fmt.Errorf("embed[%d]: unknown finder %q", i, e.Finder))
		}
	}
	return errors.Join(errs...)
}

// Path resolves p against the configuration directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// RulesDir returns the resolved rules directory, or "" for the built-in
// tables.
func (c *Config) RulesDir() string {
	return c.Path(c.Rules.Dir)
}

// StorePath returns the resolved database path, or "".
func (c *Config) StorePath() string {
	return c.Path(c.Store.Path)
}

// Package config reads dispatchgen.yaml / dispatchgen.toml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/sghaida/odispatch/internal/gen"
)

// FileNames are the config files Discover looks for, in order.
var FileNames = []string{"dispatchgen.yaml", "dispatchgen.yml", "dispatchgen.toml"}

// ErrUnsupportedFormat is returned for config files that are neither YAML nor TOML.
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// Config is the generator configuration.
type Config struct {
	Markers      []string     `yaml:"markers" toml:"markers"`
	Capabilities Capabilities `yaml:"capabilities" toml:"capabilities"`
	Runtime      Runtime      `yaml:"runtime" toml:"runtime"`
	Naming       Naming       `yaml:"naming" toml:"naming"`
	Conflicts    string       `yaml:"conflicts" toml:"conflicts"`
	Prune        bool         `yaml:"prune" toml:"prune"`
	Log          Log          `yaml:"log" toml:"log"`
	Metrics      Metrics      `yaml:"metrics" toml:"metrics"`
}

type Capabilities struct {
	Package       string `yaml:"package" toml:"package"`
	Query         string `yaml:"query" toml:"query"`
	Command       string `yaml:"command" toml:"command"`
	ResultCommand string `yaml:"result_command" toml:"result_command"`
}

type Runtime struct {
	Dispatch string `yaml:"dispatch" toml:"dispatch"`
	DI       string `yaml:"di" toml:"di"`
}

type Naming struct {
	Contract string `yaml:"contract" toml:"contract"`
	Register string `yaml:"register" toml:"register"`
	Suffix   string `yaml:"suffix" toml:"suffix"`
}

// Log configures the console and the optional rotating file log.
type Log struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
}

type Metrics struct {
	// Textfile is where run metrics are written in the Prometheus text
	// format. Empty disables it.
	Textfile string `yaml:"textfile" toml:"textfile"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	o := gen.DefaultOptions()
	return Config{
		Markers: o.Markers,
		Capabilities: Capabilities{
			Package:       o.Capabilities.Package,
			Query:         o.Capabilities.Query,
			Command:       o.Capabilities.Command,
			ResultCommand: o.Capabilities.ResultCommand,
		},
		Runtime: Runtime{Dispatch: o.Runtime.Dispatch, DI: o.Runtime.DI},
		Naming: Naming{
			Contract: o.ContractFormat,
			Register: o.RegisterFormat,
			Suffix:   o.FileSuffix,
		},
		Conflicts: string(o.Conflicts),
		Log: Log{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Load reads the file at path, picking the decoder by extension, then
// applies defaults and validates.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	case ".toml":
		if err := toml.NewDecoder(bytes.NewReader(b)).DisallowUnknownFields().Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Discover returns the first of FileNames present in dir.
func Discover(dir string) (string, bool) {
	for _, n := range FileNames {
		p := filepath.Join(dir, n)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, true
		}
	}
	return "", false
}

// Resolve loads path when set, otherwise the discovered file in dir,
// otherwise the defaults.
func Resolve(path, dir string) (Config, string, error) {
	if path == "" {
		var ok bool
		if path, ok = Discover(dir); !ok {
			return Default(), "", nil
		}
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// ApplyDefaults fills every unset field from Default.
func (c *Config) ApplyDefaults() {
	d := Default()
	if len(c.Markers) == 0 {
		c.Markers = d.Markers
	}
	setString(&c.Capabilities.Package, d.Capabilities.Package)
	setString(&c.Capabilities.Query, d.Capabilities.Query)
	setString(&c.Capabilities.Command, d.Capabilities.Command)
	setString(&c.Capabilities.ResultCommand, d.Capabilities.ResultCommand)
	setString(&c.Runtime.Dispatch, d.Runtime.Dispatch)
	setString(&c.Runtime.DI, d.Runtime.DI)
	setString(&c.Naming.Contract, d.Naming.Contract)
	setString(&c.Naming.Register, d.Naming.Register)
	setString(&c.Naming.Suffix, d.Naming.Suffix)
	setString(&c.Conflicts, d.Conflicts)
	setString(&c.Log.Level, d.Log.Level)
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = d.Log.MaxBackups
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = d.Log.MaxAgeDays
	}
}

func setString(dst *string, def string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = def
	}
}

// FieldError reports one invalid config value.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string { return "config: " + e.Field + ": " + e.Reason }

// Validate reports every invalid field. Name formats are checked by
// gen.New when the options are used.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field, format string, args ...any) {
		errs = append(errs, &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	for _, m := range c.Markers {
		if !validMarker(m) {
			bad("markers", "%q is not an identifier or pkg.Identifier", m)
		}
	}
	for _, f := range [...]struct{ field, v string }{
		{"capabilities.query", c.Capabilities.Query},
		{"capabilities.command", c.Capabilities.Command},
		{"capabilities.result_command", c.Capabilities.ResultCommand},
	} {
		if !token.IsIdentifier(f.v) {
			bad(f.field, "%q is not an identifier", f.v)
		}
	}
	if !gen.Policy(c.Conflicts).Valid() {
		bad("conflicts", "must be one of: %s|%s", gen.PolicyError, gen.PolicyFirstWins)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		bad("log.level", "%v", err)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		bad("log", "rotation limits must not be negative")
	}
	return errors.Join(errs...)
}

func validMarker(m string) bool {
	pkg, name, ok := strings.Cut(m, ".")
	if !ok {
		return token.IsIdentifier(m)
	}
	return token.IsIdentifier(pkg) && token.IsIdentifier(name)
}

// GenOptions maps c onto generator options.
func (c *Config) GenOptions(log *zap.Logger) gen.Options {
	return gen.Options{
		Markers: append([]string(nil), c.Markers...),
		Capabilities: gen.Capabilities{
			Package:       c.Capabilities.Package,
			Query:         c.Capabilities.Query,
			Command:       c.Capabilities.Command,
			ResultCommand: c.Capabilities.ResultCommand,
		},
		Runtime:        gen.Runtime{Dispatch: c.Runtime.Dispatch, DI: c.Runtime.DI},
		ContractFormat: c.Naming.Contract,
		RegisterFormat: c.Naming.Register,
		FileSuffix:     c.Naming.Suffix,
		Conflicts:      gen.Policy(c.Conflicts),
		Logger:         log,
	}
}

package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	intconfig "github.com/leapstack-labs/leapupsert/internal/config"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// loadedKey is used to store the loaded config in context.
type loadedKey struct{}

// EnvPrefix prefixes environment overrides. A double underscore separates
// nested keys: LEAPUPSERT_UPSERT__THRESHOLD sets upsert.threshold.
const EnvPrefix = "LEAPUPSERT_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var configNames = []string{"leapupsert.yaml", "leapupsert.yml"}

// flagKeys maps flag names to config keys. Flags not listed here are
// command arguments, not configuration.
var flagKeys = map[string]string{
	"state":              "state_path",
	"verbose":            "verbose",
	"output":             "output",
	"strategy":           "upsert.strategy",
	"threshold":          "upsert.threshold",
	"date-format":        "upsert.formats.date",
	"time-format":        "upsert.formats.time",
	"timestamp-format":   "upsert.formats.timestamp",
	"timestamptz-format": "upsert.formats.timestamp_tz",
	"timezone":           "upsert.formats.timezone",
}

// Loaded is the result of Load.
type Loaded struct {
	Config *Config
	// File is the config file read, or "" when none was found.
	File string
}

func configExistsIn(dir string) string {
	for _, name := range configNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a config file.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if p := configExistsIn(dir); p != "" {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Load reads configuration from defaults, the config file, environment
// variables and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(cfgFile string, flags *pflag.FlagSet) (*Loaded, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"state_path":      DefaultStateFile,
		"verbose":         false,
		"output":          DefaultOutput,
		"upsert.strategy": intconfig.DefaultStrategy,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	used := cfgFile
	if used == "" {
		used = findConfigUpward(cwd)
	}
	projectRoot := cwd
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
		if abs, err := filepath.Abs(used); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var flagState string
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
		if f := flags.Lookup("state"); f != nil && f.Changed {
			flagState, _ = filepath.Abs(f.Value.String())
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	// flag paths are relative to the working directory, file paths to the project root
	if flagState != "" {
		cfg.StatePath = flagState
	} else {
		cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, projectRoot)
	}

	intconfig.ApplyUpsertDefaults(&cfg.Upsert)

	if cfg.Target != nil && cfg.Target.Type != "" {
		intconfig.ApplyTargetDefaults(cfg.Target)
		expandTargetEnvVars(cfg.Target)
		if err := intconfig.ValidateTarget(cfg.Target); err != nil {
			return nil, fmt.Errorf("invalid target configuration: %w", err)
		}
		if isFileTarget(cfg.Target) {
			cfg.Target.Database = resolvePathRelativeTo(cfg.Target.Database, projectRoot)
		}
	}
	for _, t := range cfg.Targets {
		if t == nil {
			continue
		}
		// named targets inherit the type of the top-level target
		if isFileTarget(t) || (t.Type == "" && cfg.Target != nil && isFileTarget(cfg.Target)) {
			t.Database = resolvePathRelativeTo(t.Database, projectRoot)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loaded{Config: &cfg, File: used}, nil
}

func isFileTarget(t *TargetConfig) bool {
	switch dialect.Canonical(t.Type) {
	case "sqlite", "duckdb":
		return true
	default:
		return false
	}
}

// WithLoaded stores the loaded configuration in ctx.
func WithLoaded(ctx context.Context, l *Loaded) context.Context {
	return context.WithValue(ctx, loadedKey{}, l)
}

// FromContext returns the configuration stored by WithLoaded.
func FromContext(ctx context.Context) (*Loaded, bool) {
	l, ok := ctx.Value(loadedKey{}).(*Loaded)
	return l, ok && l != nil
}

// WithLogger stores the logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns. Unset variables are left as written.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

// expandTargetEnvVars expands environment variables in sensitive target fields.
func expandTargetEnvVars(t *TargetConfig) {
	if t == nil {
		return
	}
	for _, f := range []*string{&t.Password, &t.User, &t.Host, &t.Database, &t.Account} {
		*f = expandEnvVars(*f)
	}
}

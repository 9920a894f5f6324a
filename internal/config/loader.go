package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "WEFT"

// Loader reads configuration with the usual precedence: flags beat
// environment, environment beats the project file, the project file
// beats the user file, and everything beats built-in defaults.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader returns a Loader with defaults registered.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return &Loader{v: v}
}

// WithConfigFile pins the loader to an explicit config file instead of
// the search paths.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Bind maps one flag onto a config key so that a set flag overrides
// all file and environment sources.
func (l *Loader) Bind(key string, flag *pflag.Flag) error {
	return l.v.BindPFlag(key, flag)
}

// Load reads all sources and returns the merged, validated Config.
func (l *Loader) Load() (*Config, error) {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", l.configFile, err)
		}
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(filepath.Join(".", ".weft"))
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "weft"))
		}
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !asConfigFileNotFound(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
			// No config file is fine; defaults apply.
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// ConfigFileUsed reports the file the loader actually read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

func asConfigFileNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workflows_dir", filepath.Join(".weft", "workflows"))
	v.SetDefault("workspace_dir", ".")
	v.SetDefault("max_parallel", 5)
	v.SetDefault("step_timeout", 10*time.Minute)

	v.SetDefault("match.min_score", 0.0)

	v.SetDefault("gates.approval_timeout", 5*time.Minute)
	v.SetDefault("gates.auto_approve", false)

	v.SetDefault("history.backend", "json")
	v.SetDefault("history.dir", filepath.Join(".weft", "history"))
	v.SetDefault("history.db_path", filepath.Join(".weft", "history", "history.db"))

	v.SetDefault("learning.min_occurrences", 3)
	v.SetDefault("learning.max_records", 500)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")

	v.SetDefault("no_color", false)
	v.SetDefault("quiet", false)
}

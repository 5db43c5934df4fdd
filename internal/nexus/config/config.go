package config

import (
	"fmt"
	"strings"

	"github.com/fintellect/nexus/internal/nexus/options"
	"github.com/fintellect/nexus/pkg/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. NEXUS_STORE_TYPE.
const EnvPrefix = "NEXUS"

// Config is the running configuration structure of the nexusd service.
type Config struct {
	*options.Options

	v *viper.Viper
}

// CreateConfigFromOptions creates a running configuration instance based
// on the given options, without a config file behind it.
func CreateConfigFromOptions(opts *options.Options) (*Config, error) {
	return &Config{Options: opts, v: viper.New()}, nil
}

// Load merges, in increasing precedence, the defaults in opts, the config
// file (when configFile is set), NEXUS_* environment variables and the
// flags explicitly set on fs.
func Load(opts *options.Options, fs *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %q: %w", configFile, err)
		}
		logger.Info("[Config] using config file %s", v.ConfigFileUsed())
	}

	if err := v.Unmarshal(opts); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %v", errs)
	}
	return &Config{Options: opts, v: v}, nil
}

// Watch re-reads the config file whenever it changes and hands the freshly
// decoded options to onChange. Invalid revisions are logged and skipped.
// Without a config file Watch does nothing.
func (c *Config) Watch(onChange func(*options.Options)) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next := options.NewOptions()
		if err := c.v.Unmarshal(next); err != nil {
			logger.Warn("[Config] reload of %s failed: %v", e.Name, err)
			return
		}
		if errs := next.Validate(); len(errs) > 0 {
			logger.Warn("[Config] reload of %s rejected: %v", e.Name, errs)
			return
		}
		logger.Info("[Config] %s changed, applying", e.Name)
		onChange(next)
	})
	c.v.WatchConfig()
}

package cli

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-criteria/core/criteria"
	"github.com/asaidimu/go-criteria/core/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment variable the CLI reads, so --models
// can also be set as CRITERIA_MODELS.
const EnvPrefix = "CRITERIA"

// Config is the resolved configuration of a command run.
type Config struct {
	Models   string          `mapstructure:"models"`
	DB       string          `mapstructure:"db"`
	Addr     string          `mapstructure:"addr"`
	LogLevel string          `mapstructure:"log-level"`
	Criteria criteria.Config `mapstructure:"criteria"`
}

// loadConfig merges the config file, the environment and the command's
// flags, in increasing order of precedence.
func loadConfig(v *viper.Viper, cfgFile string, cmd *cobra.Command) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	defaults := criteria.DefaultConfig()
	v.SetDefault("log-level", "info")
	v.SetDefault("criteria.acceptedConditions", defaults.AcceptedConditions)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return &cfg, nil
}

// registry loads the model file named by the configuration.
func (c *Config) registry() (*schema.Registry, error) {
	if c.Models == "" {
		return nil, fmt.Errorf("a model file is required (--models or %s_MODELS)", EnvPrefix)
	}
	return schema.LoadRegistry(c.Models)
}

// newLogger builds a production logger with ISO8601 timestamps.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.TimeKey = "timestamp"
	return config.Build()
}

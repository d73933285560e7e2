package config

import (
	"os"
	"strings"

	"codeberg.org/okkola/labdaq/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel        = "info"
	defaultQueueDepth      = 64
	defaultShutdownTimeout = 5000
	defaultArchiveDB       = "/var/lib/labdaq/samples.db"

	envPrefix     = "LABDAQ"
	configEnvVar  = "LABDAQ_CONFIG"
	configName    = "labdaq"
	configType    = "toml"
	systemConfDir = "/etc/labdaq"
)

// Config holds the daemon configuration. Per-device operating parameters
// (rate, gain, enabled channels) live in the session settings store, not here.
type Config struct {
	DescriptorDir     string  `mapstructure:"descriptor_dir"`
	LogLevel          string  `mapstructure:"log_level"`
	ListenAddr        string  `mapstructure:"listen_addr"`
	QueueDepth        int     `mapstructure:"queue_depth"`
	ShutdownTimeoutMs int     `mapstructure:"shutdown_timeout_ms"`
	DefaultRateHz     float64 `mapstructure:"default_rate_hz"`
	Console           bool    `mapstructure:"console"`
	Archive           bool    `mapstructure:"archive"`
	ArchiveDB         string  `mapstructure:"archive_db"`
	MQTTBroker        string  `mapstructure:"mqtt_broker"`
	MQTTClientID      string  `mapstructure:"mqtt_client_id"`
	MQTTTopic         string  `mapstructure:"mqtt_topic"`
	MQTTUsername      string  `mapstructure:"mqtt_username"`
	MQTTPassword      string  `mapstructure:"mqtt_password"`
	Debug             bool    `mapstructure:"debug"`
	Verbose           bool    `mapstructure:"verbose"`
}

// Load reads configuration from flags, environment and the TOML config file,
// in that order of precedence. args are the command line arguments without
// the program name.
func Load(args []string) (*Config, error) {
	errFactory := errors.New()

	v := viper.New()
	setDefaults(v)

	flags := pflag.NewFlagSet("labdaq", pflag.ContinueOnError)
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.String("descriptor-dir", "", "Directory containing device descriptor documents")
	flags.String("log-level", "", "Log level (debug, info, warning, error)")
	flags.String("listen-addr", "", "HTTP control API listen address (empty disables)")
	flags.Int("queue-depth", 0, "Per-device sample hand-off queue depth")
	flags.Float64("default-rate-hz", 0, "Default sample rate ceiling (0 = hardware limit)")
	flags.Bool("console", false, "Print samples to stdout")
	flags.Bool("archive", false, "Archive samples to SQLite")
	flags.String("archive-db", "", "Path to the sample archive database")
	flags.String("mqtt-broker", "", "MQTT broker URL (empty disables)")
	flags.Bool("debug", false, "Enable debugging mode")
	flags.Bool("verbose", false, "Enable verbose logging")

	if err := flags.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	bindings := map[string]string{
		"descriptor-dir":  "descriptor_dir",
		"log-level":       "log_level",
		"listen-addr":     "listen_addr",
		"queue-depth":     "queue_depth",
		"default-rate-hz": "default_rate_hz",
		"console":         "console",
		"archive":         "archive",
		"archive-db":      "archive_db",
		"mqtt-broker":     "mqtt_broker",
		"debug":           "debug",
		"verbose":         "verbose",
	}
	for flagName, key := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flagName)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(configEnvVar); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(systemConfDir)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.WithMessage(errors.ErrReadConfig, "Failed to read config file").WithData(err.Error())
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("descriptor_dir", "devices")
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("listen_addr", "")
	v.SetDefault("queue_depth", defaultQueueDepth)
	v.SetDefault("shutdown_timeout_ms", defaultShutdownTimeout)
	v.SetDefault("default_rate_hz", 0.0)
	v.SetDefault("console", true)
	v.SetDefault("archive", false)
	v.SetDefault("archive_db", defaultArchiveDB)
	v.SetDefault("mqtt_client_id", "labdaq")
	v.SetDefault("mqtt_topic", "labdaq")
}

// Validate checks the loaded configuration for consistency
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.QueueDepth <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "queue_depth must be positive").WithData(c.QueueDepth)
	}
	if c.ShutdownTimeoutMs <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "shutdown_timeout_ms must be positive").WithData(c.ShutdownTimeoutMs)
	}
	if c.DefaultRateHz < 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "default_rate_hz must not be negative").WithData(c.DefaultRateHz)
	}
	if c.Archive && c.ArchiveDB == "" {
		return errFactory.WithMessage(errors.ErrMissingConfig, "archive enabled without archive_db")
	}

	return nil
}

// Package config loads server settings from an optional config file, a .env
// file and ZADOLZITVE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix prefixes environment overrides, e.g. ZADOLZITVE_HTTP_ADDR.
const EnvPrefix = "ZADOLZITVE"

// Config holds server settings.
type Config struct {
	DB struct {
		Path string
	} `mapstructure:"db"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Log struct {
		Path   string
		Format string
		Debug  bool
	} `mapstructure:"log"`

	Jobs struct {
		PurgeInterval time.Duration `mapstructure:"purge_interval"`
	} `mapstructure:"jobs"`

	// Bootstrap describes the master account created on first start.
	Bootstrap struct {
		PersonalID int64  `mapstructure:"personal_id"`
		FirstName  string `mapstructure:"first_name"`
		LastName   string `mapstructure:"last_name"`
	} `mapstructure:"bootstrap"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("db.path", "zadolzitve.sqlite3")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.path", "")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.debug", false)
	v.SetDefault("jobs.purge_interval", 10*time.Minute)
	v.SetDefault("bootstrap.personal_id", 1000000)
	v.SetDefault("bootstrap.first_name", "Chief")
	v.SetDefault("bootstrap.last_name", "Quartermaster")
}

// Load reads settings. path may be empty, in which case only defaults,
// .env and the environment are used. envFile is loaded into the process
// environment first if it exists; existing variables win.
func Load(path, envFile string) (Config, error) {
	var c Config

	if envFile != "" {
		if err := gotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return c, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return c, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.DB.Path == "" {
		return errors.New("db.path must not be empty")
	}
	return nil
}

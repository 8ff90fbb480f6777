package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// loadConfig layers defaults, an optional TOML config file, and PYBRIDGE_*
// environment variables. A missing file on the default search path is not
// an error; an explicitly named file must exist.
func loadConfig(cfgFile string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("bundle", "")
	v.SetDefault("timeout", "30s")
	v.SetDefault("serve.addr", ":8080")
	v.SetDefault("serve.result_ttl", "15m")

	v.SetEnvPrefix("PYBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return v, nil
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	if dir, err := configDir(); err == nil {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return v, nil
}

func configDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "pybridge"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pybridge"), nil
}

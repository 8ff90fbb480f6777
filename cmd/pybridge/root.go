package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quailyard/pybridge/bridge"
)

var rootCmd = &cobra.Command{
	Use:   "pybridge",
	Short: "Supervisor for embedded Python interpreter bundles",
	Long: `pybridge - Run commands of an embedded Python interpreter bundle.

A bundle packages the interpreter (WASM) together with its command scripts
and a manifest. pybridge executes named commands against it, capturing
stdout, stderr, and the exit status. The interpreter has no access to the
host beyond the bundle's own files and explicitly exposed host functions.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("bundle", "b", "", "Bundle name or directory (default from config)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: $XDG_CONFIG_HOME/pybridge/config.toml)")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "Per-invocation timeout")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Disable compilation cache")
	rootCmd.PersistentFlags().String("memory", "", "Memory limit: 1mb, 16mb, 64mb, 256mb, 1gb")
	rootCmd.PersistentFlags().StringSlice("set", nil, "Seed setting key=value (repeatable)")
}

// resolveBundle picks the bundle resource from the flag, falling back to
// the config file.
func resolveBundle(cmd *cobra.Command, v *viper.Viper) (string, error) {
	resource, _ := cmd.Flags().GetString("bundle")
	if resource == "" {
		resource = v.GetString("bundle")
	}
	if resource == "" {
		return "", fmt.Errorf("bundle required: use --bundle or set it in the config file")
	}
	return resource, nil
}

func sessionOptions(cmd *cobra.Command, v *viper.Viper) ([]bridge.Option, error) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if !cmd.Flags().Changed("timeout") && v.IsSet("timeout") {
		timeout = v.GetDuration("timeout")
	}
	noCache, _ := cmd.Flags().GetBool("no-cache")
	memoryLimit, _ := cmd.Flags().GetString("memory")
	setFlags, _ := cmd.Flags().GetStringSlice("set")

	opts := []bridge.Option{bridge.WithTimeout(timeout)}

	if !noCache {
		opts = append(opts, bridge.WithDiskCache())
	}
	if pages := parseMemoryLimit(memoryLimit); pages > 0 {
		opts = append(opts, bridge.WithMemoryLimit(pages))
	}

	settings, err := parseSettings(setFlags)
	if err != nil {
		return nil, err
	}
	if len(settings) > 0 {
		opts = append(opts, bridge.WithSettings(settings))
	}

	return opts, nil
}

func openSession(cmd *cobra.Command) (*bridge.Session, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	v, err := loadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	resource, err := resolveBundle(cmd, v)
	if err != nil {
		return nil, err
	}

	opts, err := sessionOptions(cmd, v)
	if err != nil {
		return nil, err
	}

	return bridge.Open(resource, opts...)
}

func parseSettings(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	settings := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid setting %q (expected key=value)", pair)
		}
		settings[key] = value
	}
	return settings, nil
}

func parseMemoryLimit(s string) uint32 {
	switch strings.ToLower(s) {
	case "1mb":
		return 16
	case "16mb":
		return 256
	case "64mb":
		return 1024
	case "256mb":
		return 4096
	case "1gb":
		return 16384
	default:
		return 0 // use default
	}
}

// Package env resolves command line settings that may also come from the
// environment.
package env

import (
	"os"

	"github.com/agentuity/storefront-cache/logger"
	"github.com/spf13/cobra"
)

// ConfigEnv names the config file when --config is not given.
const ConfigEnv = "STOREFRONT_CACHE_CONFIG"

// FlagOrEnv will try and get a flag from the cobra.Command and if not found, look it up in the environment
// and fallback to defaultValue if non found
func FlagOrEnv(cmd *cobra.Command, flagName string, envName string, defaultValue string) string {
	flagValue, _ := cmd.Flags().GetString(flagName)
	if flagValue != "" {
		return flagValue
	}
	if val, ok := os.LookupEnv(envName); ok {
		return val
	}
	return defaultValue
}

// LogLevel reads --log-level, then STOREFRONT_CACHE_LOG_LEVEL. ok is false
// when neither is set, so a config file value can apply instead.
func LogLevel(cmd *cobra.Command) (level logger.LogLevel, ok bool) {
	val := FlagOrEnv(cmd, "log-level", logger.LevelEnv, "")
	if val == "" {
		return logger.LevelInfo, false
	}
	return logger.ParseLevel(val, logger.LevelInfo), true
}

// ConfigPath returns the config file from --config or STOREFRONT_CACHE_CONFIG.
// An empty result means defaults and environment only.
func ConfigPath(cmd *cobra.Command) string {
	return FlagOrEnv(cmd, "config", ConfigEnv, "")
}

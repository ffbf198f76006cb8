package cmd

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spacelink/spacelink/internal/config"
	"github.com/spacelink/spacelink/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information. Secrets are never printed.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()
		log := observability.CLILogger

		log.Info("=== spacelink Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + config.AppName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := loadConfig()
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		log.Info("Upstream:")
		log.Info("  Base URL:       "+cfg.API.BaseURL, zap.String("base_url", cfg.API.BaseURL))
		log.Info("  Token:          " + secretStatus(cfg.API.Token))
		log.Info("  Timeout:        " + cfg.API.Timeout.String())
		log.Info(fmt.Sprintf("  Strict Decode:  %t", cfg.API.StrictDecode))
		log.Info(fmt.Sprintf("  Strict Search:  %t", cfg.Search.Strict))
		log.Info("")

		log.Info("Rate Budgets:")
		log.Info(fmt.Sprintf("  Margin:         %.2f", cfg.RateLimitMargin))
		keys := make([]string, 0, len(cfg.RateLimits))
		for key := range cfg.RateLimits {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			limit := cfg.RateLimits[key]
			log.Info(fmt.Sprintf("  %s: %d per %s", key, limit.MaxRequests, limit.Window))
		}
		log.Info("")

		log.Info("Configuration:")
		log.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		log.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		log.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		log.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		log.Info(fmt.Sprintf("  Cache:          %t (ttl %s)", cfg.Cache.Enabled, cfg.Cache.TTL))
		log.Info(fmt.Sprintf("  Persist Windows: %t", cfg.Cache.PersistRateWindows))
		log.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			log.Info("  DB URL:         "+cfg.Store.URL, zap.String("db_url", cfg.Store.URL))
		} else {
			log.Info("  DB Path:        "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		log.Info(fmt.Sprintf("  Metrics Port:   %d", cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		log.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		log.Info("")

		log.Info("Environment:")
		for _, name := range []string{"_API_TOKEN", "_TOKEN", "_ADMIN_TOKEN", "_DB_AUTH_TOKEN"} {
			log.Info("  " + config.EnvPrefix + name + ": " + envStatus(config.EnvPrefix+name))
		}
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func secretStatus(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(not set)"
	}
	return "(set)"
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spacelink/spacelink/internal/config"
	"github.com/spacelink/spacelink/internal/core/gateway"
	"github.com/spacelink/spacelink/internal/core/store"
	"github.com/spacelink/spacelink/internal/observability"
)

const doctorPingTimeout = 15 * time.Second

var doctorPing bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the installation and configuration.

--ping also lists spaces once to verify the token; that call spends one
request of the general budget.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		log := observability.CLILogger
		log.Info("=== " + config.AppName + " doctor ===")
		log.Info("")
		log.Info("Running diagnostic checks...")
		log.Info("")

		allChecks := true
		totalChecks := 7

		// Check 1: Go version
		goVersion := runtime.Version()
		log.Info(fmt.Sprintf("[1/%d] Checking Go runtime... ✅ %s %s/%s", totalChecks, goVersion, runtime.GOOS, runtime.GOARCH),
			zap.String("go_version", goVersion))

		// Check 2: Gofulmen and Crucible
		version := crucible.GetVersion()
		if version.Gofulmen != "" && version.Crucible != "" {
			log.Info(fmt.Sprintf("[2/%d] Checking Gofulmen/Crucible... ✅ v%s / v%s", totalChecks, version.Gofulmen, version.Crucible))
		} else {
			log.Warn(fmt.Sprintf("[2/%d] Checking Gofulmen/Crucible... ⚠️  versions unavailable", totalChecks))
			allChecks = false
		}

		// Check 3: Config directory
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			log.Warn(fmt.Sprintf("[3/%d] Checking config directory... ⚠️  cannot resolve", totalChecks))
			allChecks = false
		} else {
			log.Info(fmt.Sprintf("[3/%d] Checking config file... ✅ %s (%s)", totalChecks, configPath, existenceStatus(fileExists(configPath))),
				zap.String("config_path", configPath))
		}

		// Check 4: Configuration
		cfg, cfgErr := loadConfig()
		if cfgErr == nil {
			cfgErr = cfg.Validate()
		}
		if cfgErr != nil {
			log.Error(fmt.Sprintf("[4/%d] Checking configuration... ❌ %v", totalChecks, cfgErr))
			log.Info("       Set " + config.EnvPrefix + "_API_TOKEN or api.token in the config file.")
			allChecks = false
		} else {
			log.Info(fmt.Sprintf("[4/%d] Checking configuration... ✅ token set, upstream %s", totalChecks, cfg.API.BaseURL))
		}

		// Check 5: Rate budgets
		if cfg != nil {
			limits := cfg.TrackerLimits()
			log.Info(fmt.Sprintf("[5/%d] Checking rate budgets... ✅ %d override(s), margin %.2f", totalChecks, len(limits), cfg.RateLimitMargin))
		} else {
			log.Warn(fmt.Sprintf("[5/%d] Checking rate budgets... ⚠️  skipped (config not loaded)", totalChecks))
		}

		// Check 6: Store
		switch {
		case cfg == nil:
			log.Warn(fmt.Sprintf("[6/%d] Checking store... ⚠️  skipped (config not loaded)", totalChecks))
		case !cfg.UsesStore():
			log.Info(fmt.Sprintf("[6/%d] Checking store... ✅ not used (cache and window persistence off)", totalChecks))
		default:
			db, err := openStore(ctx, cfg)
			if err != nil {
				log.Warn(fmt.Sprintf("[6/%d] Checking store... ⚠️  cannot open", totalChecks), zap.Error(err))
				allChecks = false
			} else {
				defer db.Close() // nolint:errcheck // best-effort cleanup
				log.Info(fmt.Sprintf("[6/%d] Checking store... ✅ %s", totalChecks, describeStore(cfg)))
			}
		}

		// Check 7: Upstream
		switch {
		case !doctorPing:
			log.Info(fmt.Sprintf("[7/%d] Checking upstream... skipped (use --ping)", totalChecks))
		case cfgErr != nil:
			log.Warn(fmt.Sprintf("[7/%d] Checking upstream... ⚠️  skipped (config invalid)", totalChecks))
		default:
			if err := pingUpstream(ctx); err != nil {
				kind := string(gateway.KindOf(err))
				if kind == "" {
					kind = "failed"
				}
				log.Error(fmt.Sprintf("[7/%d] Checking upstream... ❌ %s", totalChecks, kind), zap.Error(err))
				allChecks = false
			} else {
				log.Info(fmt.Sprintf("[7/%d] Checking upstream... ✅ reachable, token accepted", totalChecks))
			}
		}

		log.Info("")
		lines := []string{config.AppName + " doctor", ""}
		if allChecks {
			lines = append(lines, "✅ All checks passed")
		} else {
			lines = append(lines, "⚠️  Some checks failed, review the output above")
		}
		if cfg != nil {
			lines = append(lines, "upstream: "+cfg.API.BaseURL, "store:    "+describeStore(cfg))
		}
		_, _ = fmt.Fprint(cmd.OutOrStdout(), ascii.DrawBox(strings.Join(lines, "\n"), 0))
		log.Info("=== End Diagnostics ===")
	},
}

func pingUpstream(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, doctorPingTimeout)
	defer cancel()

	s, err := openSession(ctx, observability.CLILogger)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	_, err = s.client.ListSpaces(ctx)
	return err
}

func describeStore(cfg *config.Config) string {
	desc := store.Describe(cfg.Store)
	if strings.TrimSpace(cfg.Store.URL) != "" || cfg.Store.Path == ":memory:" {
		return desc
	}
	absPath, err := filepath.Abs(desc)
	if err != nil {
		return desc
	}
	if info, err := os.Stat(absPath); err == nil {
		return fmt.Sprintf("%s (%s)", absPath, formatFileSize(info.Size()))
	}
	return absPath
}

var (
	doctorInitForce   bool
	doctorInitToken   string
	doctorResetConfig bool
	doctorResetData   bool
	doctorResetAll    bool
)

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}

		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}

		token := strings.TrimSpace(doctorInitToken)
		if strings.EqualFold(token, "prompt") {
			value, err := promptForValue("Enter API token (leave blank to use " + config.EnvPrefix + "_API_TOKEN): ")
			if err != nil {
				return err
			}
			token = value
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}

		mode := os.FileMode(0644)
		if token != "" {
			mode = 0600
		}

		if err := os.WriteFile(configPath, []byte(buildInitConfig(token)), mode); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", configPath))
		return nil
	},
}

var doctorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset user configuration and/or data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if doctorResetAll {
			doctorResetConfig = true
			doctorResetData = true
		}

		if !doctorResetConfig && !doctorResetData {
			return fmt.Errorf("specify --config, --data, or --all")
		}

		if doctorResetConfig {
			configPath := config.DefaultConfigPath()
			if configPath == "" {
				observability.CLILogger.Warn("Config path not resolved; skipping config reset")
			} else if err := os.Remove(configPath); err == nil {
				observability.CLILogger.Info("Config removed", zap.String("path", configPath))
			} else if os.IsNotExist(err) {
				observability.CLILogger.Info("Config already removed", zap.String("path", configPath))
			} else {
				return fmt.Errorf("remove config file: %w", err)
			}
		}

		if doctorResetData {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Store.URL != "" {
				return fmt.Errorf("remote store configured; database reset is not supported")
			}

			absPath, _ := filepath.Abs(cfg.Store.Path)
			if err := os.Remove(absPath); err == nil {
				observability.CLILogger.Info("Database removed", zap.String("path", absPath))
			} else if os.IsNotExist(err) {
				observability.CLILogger.Info("Database already removed", zap.String("path", absPath))
			} else {
				return fmt.Errorf("remove database: %w", err)
			}
		}

		return nil
	},
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("%w: %v", errConfig, err)
		}

		observability.CLILogger.Info("Config is valid", zap.String("path", config.DefaultConfigPath()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd)
	doctorCmd.AddCommand(doctorResetCmd)
	doctorCmd.AddCommand(doctorValidateCmd)

	doctorCmd.Flags().BoolVar(&doctorPing, "ping", false, "verify the token with one upstream call")

	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")
	doctorInitCmd.Flags().StringVar(&doctorInitToken, "token", "", "set the API token or use 'prompt' to enter it")

	doctorResetCmd.Flags().BoolVar(&doctorResetConfig, "config", false, "remove user config file")
	doctorResetCmd.Flags().BoolVar(&doctorResetData, "data", false, "remove local database")
	doctorResetCmd.Flags().BoolVar(&doctorResetAll, "all", false, "remove config and data")
}

// formatFileSize returns a human-readable file size
func formatFileSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

func buildInitConfig(token string) string {
	lines := []string{
		"# " + config.AppName + " config - created by '" + config.AppName + " doctor init'",
		"api:",
		"  base_url: " + config.DefaultBaseURL,
	}

	if strings.TrimSpace(token) != "" {
		lines = append(lines, fmt.Sprintf("  token: %q", token))
	} else {
		lines = append(lines, "  # token: \"\"  # Set via "+config.EnvPrefix+"_API_TOKEN or uncomment")
	}

	lines = append(lines,
		"cache:",
		"  enabled: false",
		"  ttl: 5m",
		"  persist_rate_windows: false",
		"# rate_limits:",
		"#   general:",
		"#     max_requests: 5",
		"#     window: 1m",
	)

	return strings.Join(lines, "\n") + "\n"
}

func promptForValue(prompt string) (string, error) {
	if _, err := fmt.Fprint(os.Stdout, prompt); err != nil {
		return "", err
	}
	reader := bufio.NewReader(os.Stdin)
	value, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func existenceStatus(exists bool) string {
	if exists {
		return "exists"
	}
	return "missing"
}

func envStatus(name string) string {
	if strings.TrimSpace(os.Getenv(name)) != "" {
		return "(set)"
	}
	return "(not set)"
}

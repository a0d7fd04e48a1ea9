// Package cli implements the bootstrap command tree.
package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bootstrap-core/internal/config"
	"bootstrap-core/internal/infrastructure/observability"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

// BuildInfo identifies the running binary. The entry point registers it with
// the registry so diagnostics can report it.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

var (
	configPathFlag string
	logLevelFlag   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "Config slot path (overrides BOOTSTRAP_CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (overrides BOOTSTRAP_LOG_LEVEL)")
}

var rootCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Application bootstrap host",
	Long: `bootstrap builds the process service registry, manages the persisted host
configuration and serves registry diagnostics over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	return rootCmd.Execute()
}

// loadSettings reads settings from the environment and applies flag overrides.
func loadSettings() (*config.Settings, error) {
	s, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}
	if configPathFlag != "" {
		s.ConfigPath = configPathFlag
	}
	if logLevelFlag != "" {
		s.LogLevel = logLevelFlag
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func newLogger(s *config.Settings) (*zap.Logger, error) {
	if !s.EnableLogging {
		return zap.NewNop(), nil
	}
	return observability.NewLogger(string(s.Environment), s.LogLevel)
}

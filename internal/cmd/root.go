package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/joshdurbin/strava-dashboard/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbosity            int
	configPath           string
	dbPath               string
	port                 int
	refreshInterval      time.Duration
	tokenRefreshInterval time.Duration
	forceReauth          bool
)

var rootCmd = &cobra.Command{
	Use:   "strava-dashboard",
	Short: "Strava Dashboard - statistics over your Strava activity history",
	Long: `Strava Dashboard fetches your Strava activities and serves statistics
over them: totals, monthly, weekly and per-sport rollups, paginated and
filtered activity listings.

The server runs with:
- Automatic authentication via OAuth (prompts on first run)
- Background token refresh to keep authentication valid
- A result cache (in-memory or redis) refreshed periodically
- A JSON API for the dashboard and an MCP endpoint for AI assistants

On first run, you will be prompted for your Strava API credentials.
Get these from https://www.strava.com/settings/api

Use --force-reauth to re-enter credentials and re-authenticate.
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// config may switch the format to json later; level comes from -v only
		logging.Setup(logging.Level(verbosity), logging.FormatConsole)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		rtCfg := &RuntimeConfig{
			ConfigPath:           configPath,
			DBPath:               dbPath,
			Port:                 port,
			RefreshInterval:      refreshInterval,
			TokenRefreshInterval: tokenRefreshInterval,
			ForceReauth:          forceReauth,
		}

		return Run(rtCfg)
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase verbosity (-v for debug, -vv for trace with HTTP headers)")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "strava_dashboard.toml", "path to TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "strava_dashboard.db", "path to SQLite database file")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", 0, "HTTP port, overrides listen_addr from the config file")
	rootCmd.PersistentFlags().DurationVar(&refreshInterval, "refresh-interval", 15*time.Minute, "interval between activity cache refreshes")
	rootCmd.PersistentFlags().DurationVar(&tokenRefreshInterval, "token-refresh-interval", 30*time.Minute, "interval between token refresh checks")

	rootCmd.PersistentFlags().BoolVar(&forceReauth, "force-reauth", false, "force OAuth re-authentication, clearing existing tokens")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

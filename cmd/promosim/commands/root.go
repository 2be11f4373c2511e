package commands

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/warp/career-engine/factory"
	"github.com/warp/career-engine/logging"
	"go.uber.org/zap"
)

var (
	settings = newSettings()
	logger   = zap.NewNop()
)

// newSettings binds PROMOSIM_* environment variables. Keys use dots for
// nesting and dashes like the flags they mirror.
func newSettings() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("PROMOSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("config", "")
	v.SetDefault("log-json", false)
	v.SetDefault("log-level", "info")
	v.SetDefault("port", 8080)
	v.SetDefault("db", "promosim.db")
	return v
}

var rootCmd = &cobra.Command{
	Use:   "promosim",
	Short: "Promotion cycle simulator",
	Long: `promosim - Promotion cycle simulator for rank-structured careers.

Folds personnel rosters over the semiannual evaluation dates, applying the
overflow and regular promotion rules, absorbing supernumeraries and retiring
by age or service length. Vacancies left unfilled on feeder tracks migrate
into the primary track.

Examples:
  promosim run --roster qoa=militares.csv --roster qomt=condutores.csv
  promosim run --track qomt --roster qomt=condutores.csv --target 2028-12-31
  promosim serve --port 8080 --db promosim.db
  promosim config > promosim.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := settings.BindPFlags(cmd.Flags()); err != nil {
			return errors.Wrap(err, "failed to bind flags")
		}
		l, err := logging.New(logging.Options{
			JSON:  settings.GetBool("log-json"),
			Level: settings.GetString("log-level"),
		})
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML or JSON file overlaid on the built-in configuration")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log as JSON instead of console text")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command, printing any error.
func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		pterm.Error.Println(err)
	}
	return err
}

// loadSetup reads the effective configuration and resolves it.
func loadSetup() (*factory.Config, *factory.Setup, error) {
	cfg, err := factory.Load(settings.GetString("config"))
	if err != nil {
		return nil, nil, err
	}
	setup, err := cfg.Build()
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, setup, nil
}

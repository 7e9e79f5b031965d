package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	consts "github.com/khanhnv2901/jsaudit/internal/shared/constants"
)

const envPrefix = "JSAUDIT"

var (
	cfgFile    string
	operator   string
	resultsDir string
	verbose    bool
)

// AppContext carries what every command needs once the root has initialized.
type AppContext struct {
	Logger     *zap.SugaredLogger
	Operator   string
	ResultsDir string
	Config     *CLIConfig
}

type appContextKey struct{}

var globalAppContext *AppContext

func storeAppContext(cmd *cobra.Command, appCtx *AppContext) {
	globalAppContext = appCtx
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, appContextKey{}, appCtx))
}

func getAppContext(cmd *cobra.Command) *AppContext {
	if ctx := cmd.Context(); ctx != nil {
		if appCtx, ok := ctx.Value(appContextKey{}).(*AppContext); ok {
			return appCtx
		}
	}
	return globalAppContext
}

var rootCmd = &cobra.Command{
	Use:   "jsaudit",
	Short: "Audit vendored JavaScript libraries for tampering and staleness",
	Long: `jsaudit walks a project directory, identifies third-party JavaScript libraries
by file name and header banner, and compares each file byte for byte with the
published copy of the same version on cdnjs. Modified copies are reported with
a line diff; copies with a newer release are reported as stale.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		applyConfigDefaults(cmd)

		dir, err := resolveResultsDir()
		if err != nil {
			return err
		}

		logger, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		// ensure operator is set (via flag, config or env default)
		if operator == "" {
			operator = cliConfig.Defaults.Operator
		}
		if operator == "" {
			operator = "unknown"
		}

		logger.Debugw("initialized", "operator", operator, "results_dir", dir)

		storeAppContext(cmd, &AppContext{
			Logger:     logger,
			Operator:   operator,
			ResultsDir: dir,
			Config:     cliConfig,
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appCtx := getAppContext(cmd); appCtx != nil && appCtx.Logger != nil {
			_ = appCtx.Logger.Sync()
		}
	},
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".jsaudit")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicit --config must exist; the default one is optional.
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// resolveResultsDir picks --results-dir, then results_dir from config/env,
// then the per-user data directory, and makes sure it exists.
func resolveResultsDir() (string, error) {
	dir := resultsDir
	if dir == "" {
		dir = viper.GetString("results_dir")
	}
	if dir == "" {
		var err error
		dir, err = getResultsDir()
		if err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(dir, consts.DefaultDirPerm); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return dir, nil
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		// stdout belongs to progress and reports
		cfg.OutputPaths = []string{"stderr"}
		l, err = cfg.Build()
	}
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, colorError("Error:"), err)
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.jsaudit.yaml)")
	rootCmd.PersistentFlags().StringVar(&resultsDir, "results-dir", "", "directory for run results (default is the per-user data directory)")
	rootCmd.PersistentFlags().StringVarP(&operator, "operator", "o", detectOperatorFromEnv(), "operator name recorded with each run (or set via USER env)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
}

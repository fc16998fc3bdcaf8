package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	consts "github.com/khanhnv2901/seca-probe/internal/shared/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const envPrefix = "SECA_PROBE"

var (
	cfgFile    string
	resultsDir string
	logFile    string
	verbose    bool
)

// AppContext carries the state shared by every subcommand
type AppContext struct {
	Logger     *zap.Logger
	ResultsDir string
	Config     *CLIConfig

	closeLog func()
}

type appContextKey struct{}

var globalAppContext *AppContext

var rootCmd = &cobra.Command{
	Use:           "seca-probe",
	Short:         "Concurrent TCP port prober (for authorized testing only)",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnvFile(".env"); err != nil {
			return err
		}
		if err := initConfig(); err != nil {
			return err
		}

		dir, err := resolveResultsDir(cmd)
		if err != nil {
			return err
		}

		logger, closeLog, err := newLogger(cmd.ErrOrStderr(), verbose, logFile)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		applyConfigDefaults(cmd)

		appCtx := &AppContext{
			Logger:     logger,
			ResultsDir: dir,
			Config:     cliConfig,
			closeLog:   closeLog,
		}
		storeAppContext(cmd, appCtx)

		logger.Debug("configuration loaded",
			zap.String("results_dir", dir),
			zap.String("config_file", viper.ConfigFileUsed()))
		return nil
	},
}

// Close flushes the logger and releases the log file. It is safe to call
// more than once.
func (a *AppContext) Close() {
	if a == nil || a.closeLog == nil {
		return
	}
	a.closeLog()
	a.closeLog = nil
}

// Execute runs the root command and exits with the code mapped from its error
func Execute() {
	if err := execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", colorError("Error:"), err)
		os.Exit(exitCode(err))
	}
}

// execute runs the root command and closes the logger whether or not the
// command failed. Cobra skips post-run hooks on error.
func execute(ctx context.Context) error {
	defer func() { globalAppContext.Close() }()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.seca-probe.yaml)")
	rootCmd.PersistentFlags().StringVar(&resultsDir, "results-dir", "", "directory for saved reports and telemetry")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this size-rotated file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})
}

// loadEnvFile loads KEY=VALUE pairs from path without overriding the environment.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".seca-probe")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// resolveResultsDir picks --results-dir, then results_dir from config or env,
// then the per-user data directory.
func resolveResultsDir(cmd *cobra.Command) (string, error) {
	dir := resultsDir
	if flag := cmd.Flags().Lookup("results-dir"); flag == nil || !flag.Changed {
		if configured := viper.GetString("results_dir"); configured != "" {
			dir = configured
		}
	}

	if dir == "" {
		return getResultsDir()
	}

	if err := os.MkdirAll(dir, consts.DefaultDirPerm); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}
	// Make final resultsDir absolute (for clarity in logs)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return dir, nil
}

// newLogger builds a JSON logger on errOut, teeing into a lumberjack file when
// logPath is set. The returned func syncs and closes the outputs.
func newLogger(errOut io.Writer, debug bool, logPath string) (*zap.Logger, func(), error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if debug {
		level.SetLevel(zapcore.DebugLevel)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(errOut)), level),
	}

	var rotator *lumberjack.Logger
	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), consts.DefaultDirPerm); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotator = &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder.Clone(), zapcore.AddSync(rotator), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	closeFn := func() {
		_ = logger.Sync()
		if rotator != nil {
			_ = rotator.Close()
		}
	}
	return logger, closeFn, nil
}

func storeAppContext(cmd *cobra.Command, appCtx *AppContext) {
	globalAppContext = appCtx
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, appContextKey{}, appCtx))
}

func getAppContext(cmd *cobra.Command) *AppContext {
	if cmd != nil {
		if ctx := cmd.Context(); ctx != nil {
			if appCtx, ok := ctx.Value(appContextKey{}).(*AppContext); ok {
				return appCtx
			}
		}
	}
	return globalAppContext
}

package main

import (
	"os"
	"strings"

	"github.com/couchbase/topogen/pkg/generator"
	"github.com/couchbase/topogen/pkg/metrics"
	"github.com/couchbase/topogen/pkg/statestore"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"k8s.io/utils/ptr"
)

var rootCmd = &cobra.Command{
	Version: metrics.BuildVersion,

	Use:   "topogen",
	Short: "Places replicated application topologies onto a host inventory",

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile == "" {
			return nil
		}
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to load config file %s", cfgFile)
		}
		return nil
	},
}

var cfgFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "specifies a config file to load tool settings from")

	configFlags := pflag.NewFlagSet("", pflag.ContinueOnError)
	configFlags.String("log-level", "info", "the log level to run at")
	configFlags.String("state-dir", ".topogen", "the directory placement snapshots are kept in")
	configFlags.Int("dc-lvl", -1, "depth of the hosts used as zones, the root is at depth 0, negative uses the failure domain")
	configFlags.Bool("idiomatic-merge", false, "treat b-r-1 and b-r as the same instance when upgrading")
	configFlags.Bool("quiet", false, "do not print the placement")
	configFlags.Bool("no-color", false, "disable coloured output")
	rootCmd.PersistentFlags().AddFlagSet(configFlags)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.SetEnvPrefix("topogen")
	viper.AutomaticEnv()

	_ = viper.BindPFlags(configFlags)

	rootCmd.AddCommand(buildCmd, upgradeCmd, inspectCmd, reverseCmd)
}

func getLogger() (zap.AtomicLevel, *zap.Logger) {
	logLevel := zap.NewAtomicLevel()
	logConfig := zap.NewProductionEncoderConfig()
	logConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(logConfig)
	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), logLevel),
	)
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return logLevel, logger
}

type config struct {
	logLevelStr string
	stateDir    string
	dcLevel     int
	idiomatic   bool
	quiet       bool
	noColor     bool
}

func readConfig(logger *zap.Logger) *config {
	config := &config{
		logLevelStr: viper.GetString("log-level"),
		stateDir:    viper.GetString("state-dir"),
		dcLevel:     viper.GetInt("dc-lvl"),
		idiomatic:   viper.GetBool("idiomatic-merge"),
		quiet:       viper.GetBool("quiet"),
		noColor:     viper.GetBool("no-color"),
	}

	logger.Debug("parsed tool configuration",
		zap.String("logLevelStr", config.logLevelStr),
		zap.String("stateDir", config.stateDir),
		zap.Int("dcLevel", config.dcLevel),
		zap.Bool("idiomatic", config.idiomatic),
		zap.Bool("quiet", config.quiet),
		zap.Bool("noColor", config.noColor))

	return config
}

// env is what every subcommand works with.
type env struct {
	logger   *zap.Logger
	config   *config
	store    *statestore.Store
	gen      *generator.Generator
	shutdown func()
}

func setup() (*env, error) {
	logLevel, logger := getLogger()
	config := readConfig(logger)

	parsedLogLevel, err := zapcore.ParseLevel(config.logLevelStr)
	if err != nil {
		logger.Warn("invalid log level specified, using INFO instead")
		parsedLogLevel = zapcore.InfoLevel
	}
	logLevel.SetLevel(parsedLogLevel)

	if config.noColor {
		color.NoColor = true
	}

	meters, shutdown := initTelemetry(logger)

	store, err := statestore.New(statestore.Options{
		Logger: logger,
		Dir:    config.stateDir,
	})
	if err != nil {
		shutdown()
		return nil, err
	}

	gen := generator.New(generator.Options{
		Logger:    logger,
		Store:     store,
		DCLevel:   ptr.To(config.dcLevel),
		Idiomatic: config.idiomatic,
		Metrics:   meters,
	})

	return &env{
		logger:   logger,
		config:   config,
		store:    store,
		gen:      gen,
		shutdown: shutdown,
	}, nil
}

func (e *env) close() {
	e.shutdown()
	_ = e.logger.Sync()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

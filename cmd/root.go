package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/airframesio/pgparquet/internal/errkind"
	"github.com/airframesio/pgparquet/internal/export"
	"github.com/airframesio/pgparquet/internal/pqschema"
)

var (
	// Version information - set via ldflags during build
	Version = "dev"

	// signalContext is set by main() before Cobra initialization
	signalContext context.Context
	stopFilePath  string

	cfgFile   string
	debug     bool
	logFormat string
	quiet     bool

	flagHost        string
	flagPort        int
	flagUser        string
	flagPassword    string
	flagDBName      string
	flagSSLMode     string
	flagSSLRootCert []string

	flagQuery string
	flagTable string

	flagOutputFile       string
	flagCompression      string
	flagCompressionLevel int

	flagNumericHandling  string
	flagDecimalPrecision int
	flagDecimalScale     int
	flagEnumHandling     string
	flagIntervalHandling string
	flagMacaddrHandling  string
	flagJSONHandling     string
	flagArrayHandling    string

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true).
			Underline(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00D9FF"))

	logger *slog.Logger
)

// SetSignalContext stores the signal-aware context created in main()
// This must be called before Execute() to ensure proper signal handling
func SetSignalContext(ctx context.Context, stopFile string) {
	signalContext = ctx
	stopFilePath = stopFile
}

// textOnlyHandler is a custom slog handler that outputs human-readable text
// without key=value pairs, suitable for interactive terminal usage
type textOnlyHandler struct {
	opts   slog.HandlerOptions
	writer io.Writer
}

func newTextOnlyHandler(w io.Writer, opts *slog.HandlerOptions) *textOnlyHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &textOnlyHandler{
		opts:   *opts,
		writer: w,
	}
}

func (h *textOnlyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *textOnlyHandler) Handle(_ context.Context, r slog.Record) error {
	timestamp := r.Time.Format("2006-01-02 15:04:05")
	level := r.Level.String()
	_, err := fmt.Fprintf(h.writer, "%s %s %s\n", timestamp, level, r.Message)
	return err
}

func (h *textOnlyHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *textOnlyHandler) WithGroup(_ string) slog.Handler {
	return h
}

// initLogger initializes the slog logger based on debug flag, log format
// and the --quiet flag, which suppresses everything but warnings/errors.
func initLogger(isDebug, isQuiet bool, format string) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	switch {
	case isDebug:
		opts.Level = slog.LevelDebug
	case isQuiet:
		opts.Level = slog.LevelWarn
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "logfmt":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = newTextOnlyHandler(os.Stdout, opts)
	}

	logger = slog.New(handler)
}

var rootCmd = &cobra.Command{
	Use:     "pgparquet",
	Version: Version,
	Short:   "Stream a PostgreSQL query or table to a Parquet file",
	Long: titleStyle.Render("pgparquet") + `

Introspects a PostgreSQL result set, builds a matching Parquet schema, and
streams the query's rows through the binary COPY protocol directly into a
Parquet file on disk.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a query or table to a Parquet file",
	Long:  `Export the result of --query or --table to a Parquet file at --output-file.`,
	Run: func(_ *cobra.Command, _ []string) {
		runExport()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(exportCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pgparquet.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, logfmt, json)")

	exportCmd.Flags().StringVarP(&flagOutputFile, "output-file", "o", "", "path to write the Parquet file (required)")
	exportCmd.Flags().StringVarP(&flagHost, "host", "H", "", "PostgreSQL host (required)")
	exportCmd.Flags().IntVarP(&flagPort, "port", "p", 5432, "PostgreSQL port")
	exportCmd.Flags().StringVarP(&flagUser, "user", "U", "", "PostgreSQL user (default: $PGUSER)")
	exportCmd.Flags().StringVar(&flagPassword, "password", "", "PostgreSQL password (default: $PGPASSWORD)")
	exportCmd.Flags().StringVarP(&flagDBName, "dbname", "d", "", "PostgreSQL database name (required)")
	exportCmd.Flags().StringVar(&flagSSLMode, "sslmode", "disable", "SSL mode (disable, prefer, require)")
	exportCmd.Flags().StringArrayVar(&flagSSLRootCert, "ssl-root-cert", nil, "path to a trusted root certificate (repeatable, implies --sslmode=require)")

	exportCmd.Flags().StringVarP(&flagQuery, "query", "q", "", "SQL query to export (mutually exclusive with --table)")
	exportCmd.Flags().StringVarP(&flagTable, "table", "t", "", "table to export (mutually exclusive with --query)")

	exportCmd.Flags().StringVar(&flagCompression, "compression", "zstd", "compression codec: none, snappy, gzip, lzo, brotli, lz4, zstd")
	exportCmd.Flags().IntVar(&flagCompressionLevel, "compression-level", 0, "compression level (accepted but not applied: every codec runs at parquet-go's default level)")
	exportCmd.Flags().BoolVar(&quiet, "quiet", false, "suppress informational logging")

	exportCmd.Flags().StringVar(&flagNumericHandling, "numeric-handling", string(pqschema.NumericDecimal), "numeric representation: decimal, double, float32, string")
	exportCmd.Flags().IntVar(&flagDecimalPrecision, "decimal-precision", 38, "decimal precision used by --numeric-handling=decimal")
	exportCmd.Flags().IntVar(&flagDecimalScale, "decimal-scale", 18, "decimal scale used by --numeric-handling=decimal")
	exportCmd.Flags().StringVar(&flagEnumHandling, "enum-handling", string(pqschema.EnumText), "enum representation: text, plain-text, int")
	exportCmd.Flags().StringVar(&flagIntervalHandling, "interval-handling", string(pqschema.IntervalNative), "interval representation: interval, struct")
	exportCmd.Flags().StringVar(&flagMacaddrHandling, "macaddr-handling", string(pqschema.MacaddrText), "macaddr representation: text, byte-array, int64")
	exportCmd.Flags().StringVar(&flagJSONHandling, "json-handling", string(pqschema.JSONText), "json/jsonb representation: text, text-marked-as-json")
	exportCmd.Flags().StringVar(&flagArrayHandling, "array-handling", string(pqschema.ArrayPlain), "array representation: plain, dimensions, dimensions+lowerbound")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".pgparquet")
	}

	viper.SetEnvPrefix("PGPARQUET")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && debug {
		if logger == nil {
			initLogger(debug, quiet, logFormat)
		}
		logger.Debug(fmt.Sprintf("using config file: %s", viper.ConfigFileUsed()))
	}
}

// envOrFlag returns value unless it is empty, in which case it falls back
// to the named environment variable (PGUSER/PGPASSWORD, per libpq
// convention).
func envOrFlag(value, envVar string) string {
	if value != "" {
		return value
	}
	return os.Getenv(envVar)
}

func runExport() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\nPANIC: %v\n", r)
			os.Exit(1)
		}
	}()

	initLogger(debug, quiet, logFormat)

	config := &Config{
		Debug:     debug,
		LogFormat: logFormat,
		Quiet:     quiet,

		Host:        flagHost,
		Port:        flagPort,
		User:        envOrFlag(flagUser, "PGUSER"),
		Password:    envOrFlag(flagPassword, "PGPASSWORD"),
		DBName:      flagDBName,
		SSLMode:     flagSSLMode,
		SSLRootCert: flagSSLRootCert,

		Query: flagQuery,
		Table: flagTable,

		OutputFile:       flagOutputFile,
		Compression:      flagCompression,
		CompressionLevel: flagCompressionLevel,

		NumericHandling:  flagNumericHandling,
		DecimalPrecision: flagDecimalPrecision,
		DecimalScale:     flagDecimalScale,
		EnumHandling:     flagEnumHandling,
		IntervalHandling: flagIntervalHandling,
		MacaddrHandling:  flagMacaddrHandling,
		JSONHandling:     flagJSONHandling,
		ArrayHandling:    flagArrayHandling,
	}

	if !config.Quiet {
		logger.Info("")
		logger.Info(fmt.Sprintf("pgparquet v%s", Version))
	}

	if config.Debug && stopFilePath != "" {
		fmt.Fprintln(os.Stderr, "\n"+infoStyle.Render("To stop the export: press CTRL-C, or run:"))
		fmt.Fprintf(os.Stderr, "   "+infoStyle.Render("touch %s")+"\n\n", stopFilePath)
	}

	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %s\n", err.Error())
		os.Exit(errkind.ExitCode(&errkind.ConfigError{Err: err}))
	}

	ctx := signalContext
	if ctx == nil {
		logger.Warn("signal context not set, creating fallback")
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
	}

	exited := make(chan struct{})
	go func() {
		<-ctx.Done()
		logger.Info("")
		logger.Info("interrupt received, shutting down...")
		select {
		case <-exited:
			return
		case <-time.After(2 * time.Second):
			logger.Error("graceful shutdown timed out, forcing exit")
			os.Exit(130)
		}
	}()

	opts := export.Options{
		ConnString:  buildConnString(config),
		Query:       resolveQuery(config),
		OutputPath:  config.OutputFile,
		Compression: config.Compression,
		Settings: pqschema.Settings{
			NumericHandling:  pqschema.NumericHandling(config.NumericHandling),
			DecimalPrecision: config.DecimalPrecision,
			DecimalScale:     config.DecimalScale,
			EnumHandling:     pqschema.EnumHandling(config.EnumHandling),
			IntervalHandling: pqschema.IntervalHandling(config.IntervalHandling),
			MacaddrHandling:  pqschema.MacaddrHandling(config.MacaddrHandling),
			JSONHandling:     pqschema.JSONHandling(config.JSONHandling),
			ArrayHandling:    pqschema.ArrayHandling(config.ArrayHandling),
		},
	}

	rows, err := export.Run(ctx, opts)
	close(exited)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("")
			logger.Info("export cancelled by user")
			os.Exit(130)
		}
		logger.Error(fmt.Sprintf("export failed: %s", err.Error()))
		os.Exit(errkind.ExitCode(err))
	}

	if !config.Quiet {
		logger.Info("")
		logger.Info(fmt.Sprintf("export completed: %d rows written to %s", rows, config.OutputFile))
	}
}

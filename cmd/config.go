package cmd

import (
	"errors"
	"fmt"
	"regexp"
)

// Static errors for configuration validation
var (
	ErrOutputFileRequired      = errors.New("output file is required")
	ErrHostRequired            = errors.New("host is required")
	ErrDatabaseNameRequired    = errors.New("database name is required")
	ErrDatabasePortInvalid     = errors.New("port must be between 1 and 65535")
	ErrQueryOrTableRequired    = errors.New("exactly one of --query or --table is required")
	ErrQueryAndTableExclusive  = errors.New("--query and --table are mutually exclusive")
	ErrTableNameInvalid        = errors.New("table name is invalid: must be 1-63 characters, start with a letter or underscore, and contain only letters, numbers, and underscores")
	ErrSSLModeInvalid          = errors.New("sslmode must be one of: disable, prefer, require")
	ErrCompressionInvalid      = errors.New("compression must be one of: none, snappy, gzip, lzo, brotli, lz4, zstd")
	ErrDecimalPrecisionInvalid = errors.New("decimal precision must be between 1 and 38")
	ErrDecimalScaleInvalid     = errors.New("decimal scale must be between 0 and decimal precision")
	ErrNumericHandlingInvalid  = errors.New("numeric handling must be one of: decimal, double, float32, string")
	ErrEnumHandlingInvalid     = errors.New("enum handling must be one of: text, plain-text, int")
	ErrIntervalHandlingInvalid = errors.New("interval handling must be one of: interval, struct")
	ErrMacaddrHandlingInvalid  = errors.New("macaddr handling must be one of: text, byte-array, int64")
	ErrJSONHandlingInvalid     = errors.New("json handling must be one of: text, text-marked-as-json")
	ErrArrayHandlingInvalid    = errors.New("array handling must be one of: plain, dimensions, dimensions+lowerbound")
)

// validPostgreSQLIdentifier checks if a string is a valid PostgreSQL identifier
var validPostgreSQLIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidTableName(name string) bool {
	if name == "" || len(name) > 63 {
		return false
	}
	return validPostgreSQLIdentifier.MatchString(name)
}

func oneOf(value string, valid ...string) bool {
	for _, v := range valid {
		if value == v {
			return true
		}
	}
	return false
}

// Config is the resolved set of export options, merged from flags,
// environment variables and defaults by the cmd package before
// validation and translation into export.Options.
type Config struct {
	Debug     bool
	LogFormat string
	Quiet     bool

	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	SSLRootCert []string

	Query string
	Table string

	OutputFile       string
	Compression      string
	CompressionLevel int

	NumericHandling  string
	DecimalPrecision int
	DecimalScale     int
	EnumHandling     string
	IntervalHandling string
	MacaddrHandling  string
	JSONHandling     string
	ArrayHandling    string
}

func (c *Config) Validate() error {
	if c.OutputFile == "" {
		return ErrOutputFileRequired
	}
	if c.Host == "" {
		return ErrHostRequired
	}
	if c.DBName == "" {
		return ErrDatabaseNameRequired
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w, got %d", ErrDatabasePortInvalid, c.Port)
	}

	if c.Query == "" && c.Table == "" {
		return ErrQueryOrTableRequired
	}
	if c.Query != "" && c.Table != "" {
		return ErrQueryAndTableExclusive
	}
	if c.Table != "" && !isValidTableName(c.Table) {
		return fmt.Errorf("%w: '%s'", ErrTableNameInvalid, c.Table)
	}

	sslMode := c.SSLMode
	if len(c.SSLRootCert) > 0 {
		sslMode = "require"
	}
	if !oneOf(sslMode, "disable", "prefer", "require") {
		return fmt.Errorf("%w: '%s'", ErrSSLModeInvalid, c.SSLMode)
	}

	if !oneOf(c.Compression, "none", "snappy", "gzip", "lzo", "brotli", "lz4", "zstd") {
		return fmt.Errorf("%w: '%s'", ErrCompressionInvalid, c.Compression)
	}

	if c.DecimalPrecision < 1 || c.DecimalPrecision > 38 {
		return fmt.Errorf("%w, got %d", ErrDecimalPrecisionInvalid, c.DecimalPrecision)
	}
	if c.DecimalScale < 0 || c.DecimalScale > c.DecimalPrecision {
		return fmt.Errorf("%w, got %d", ErrDecimalScaleInvalid, c.DecimalScale)
	}

	if !oneOf(c.NumericHandling, "decimal", "double", "float32", "string") {
		return fmt.Errorf("%w: '%s'", ErrNumericHandlingInvalid, c.NumericHandling)
	}
	if !oneOf(c.EnumHandling, "text", "plain-text", "int") {
		return fmt.Errorf("%w: '%s'", ErrEnumHandlingInvalid, c.EnumHandling)
	}
	if !oneOf(c.IntervalHandling, "interval", "struct") {
		return fmt.Errorf("%w: '%s'", ErrIntervalHandlingInvalid, c.IntervalHandling)
	}
	if !oneOf(c.MacaddrHandling, "text", "byte-array", "int64") {
		return fmt.Errorf("%w: '%s'", ErrMacaddrHandlingInvalid, c.MacaddrHandling)
	}
	if !oneOf(c.JSONHandling, "text", "text-marked-as-json") {
		return fmt.Errorf("%w: '%s'", ErrJSONHandlingInvalid, c.JSONHandling)
	}
	if !oneOf(c.ArrayHandling, "plain", "dimensions", "dimensions+lowerbound") {
		return fmt.Errorf("%w: '%s'", ErrArrayHandlingInvalid, c.ArrayHandling)
	}

	return nil
}

// effectiveSSLMode returns the SSL mode actually used to connect: any
// --ssl-root-cert forces require, matching libpq's own behavior of
// needing a verified channel whenever a root cert is configured.
func (c *Config) effectiveSSLMode() string {
	if len(c.SSLRootCert) > 0 {
		return "require"
	}
	if c.SSLMode == "" {
		return "disable"
	}
	return c.SSLMode
}

package cmd

import (
	"testing"
)

// newTestConfig creates a valid base configuration for testing
func newTestConfig() *Config {
	return &Config{
		Host:             "localhost",
		Port:             5432,
		User:             "testuser",
		Password:         "testpass",
		DBName:           "testdb",
		SSLMode:          "disable",
		Query:            "SELECT * FROM events",
		OutputFile:       "out.parquet",
		Compression:      "zstd",
		CompressionLevel: 3,
		NumericHandling:  "decimal",
		DecimalPrecision: 38,
		DecimalScale:     18,
		EnumHandling:     "text",
		IntervalHandling: "interval",
		MacaddrHandling:  "text",
		JSONHandling:     "text",
		ArrayHandling:    "plain",
	}
}

func TestConfigValidation_ValidConfig(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		config := newTestConfig()

		err := config.Validate()
		if err != nil {
			t.Fatalf("valid config should not return error: %v", err)
		}
	})
}

func TestConfigValidation_RequiredFields(t *testing.T) {
	t.Run("MissingOutputFile", func(t *testing.T) {
		config := newTestConfig()
		config.OutputFile = ""

		err := config.Validate()
		if err == nil {
			t.Fatal("should return error for missing output file")
		}
		if err.Error() != "output file is required" {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("MissingHost", func(t *testing.T) {
		config := newTestConfig()
		config.Host = ""

		err := config.Validate()
		if err == nil {
			t.Fatal("should return error for missing host")
		}
		if err.Error() != "host is required" {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("MissingDatabaseName", func(t *testing.T) {
		config := newTestConfig()
		config.DBName = ""

		err := config.Validate()
		if err == nil {
			t.Fatal("should return error for missing database name")
		}
		if err.Error() != "database name is required" {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("InvalidPort", func(t *testing.T) {
		config := newTestConfig()
		config.Port = 0

		err := config.Validate()
		if err == nil {
			t.Fatal("should return error for invalid port")
		}
	})
}

func TestConfigValidation_QueryAndTable(t *testing.T) {
	t.Run("NeitherProvided", func(t *testing.T) {
		config := newTestConfig()
		config.Query = ""

		err := config.Validate()
		if err == nil {
			t.Fatal("should return error when neither query nor table is set")
		}
		if err.Error() != "exactly one of --query or --table is required" {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("BothProvided", func(t *testing.T) {
		config := newTestConfig()
		config.Table = "events"

		err := config.Validate()
		if err == nil {
			t.Fatal("should return error when both query and table are set")
		}
		if err.Error() != "--query and --table are mutually exclusive" {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("InvalidTableName", func(t *testing.T) {
		config := newTestConfig()
		config.Query = ""
		config.Table = "bad table name"

		err := config.Validate()
		if err == nil {
			t.Fatal("should return error for invalid table name")
		}
	})

	t.Run("ValidTableInsteadOfQuery", func(t *testing.T) {
		config := newTestConfig()
		config.Query = ""
		config.Table = "events"

		if err := config.Validate(); err != nil {
			t.Fatalf("valid table-based config should not error: %v", err)
		}
	})
}

func TestConfigValidation_SSLMode(t *testing.T) {
	t.Run("InvalidSSLMode", func(t *testing.T) {
		config := newTestConfig()
		config.SSLMode = "verify-full"

		err := config.Validate()
		if err == nil {
			t.Fatal("should return error for invalid sslmode")
		}
	})

	t.Run("RootCertForcesRequire", func(t *testing.T) {
		config := newTestConfig()
		config.SSLMode = "disable"
		config.SSLRootCert = []string{"/etc/ssl/root.pem"}

		if err := config.Validate(); err != nil {
			t.Fatalf("a root cert with sslmode=disable should validate as require: %v", err)
		}
		if config.effectiveSSLMode() != "require" {
			t.Fatalf("expected effective sslmode require, got %q", config.effectiveSSLMode())
		}
	})
}

func TestConfigValidation_Compression(t *testing.T) {
	t.Run("UnknownCompression", func(t *testing.T) {
		config := newTestConfig()
		config.Compression = "rle"

		err := config.Validate()
		if err == nil {
			t.Fatal("should return error for unknown compression")
		}
	})

	t.Run("LZOAcceptedSyntactically", func(t *testing.T) {
		config := newTestConfig()
		config.Compression = "lzo"

		if err := config.Validate(); err != nil {
			t.Fatalf("lzo should pass flag validation even with no backing codec: %v", err)
		}
	})
}

func TestConfigValidation_DecimalBounds(t *testing.T) {
	t.Run("PrecisionTooHigh", func(t *testing.T) {
		config := newTestConfig()
		config.DecimalPrecision = 39

		if err := config.Validate(); err == nil {
			t.Fatal("should return error for precision above 38")
		}
	})

	t.Run("ScaleExceedsPrecision", func(t *testing.T) {
		config := newTestConfig()
		config.DecimalPrecision = 10
		config.DecimalScale = 20

		if err := config.Validate(); err == nil {
			t.Fatal("should return error for scale exceeding precision")
		}
	})
}

func TestConfigValidation_TypeHandlingEnums(t *testing.T) {
	t.Run("InvalidEnumHandling", func(t *testing.T) {
		config := newTestConfig()
		config.EnumHandling = "numeric"

		if err := config.Validate(); err == nil {
			t.Fatal("should return error for invalid enum handling")
		}
	})

	t.Run("InvalidArrayHandling", func(t *testing.T) {
		config := newTestConfig()
		config.ArrayHandling = "flattened"

		if err := config.Validate(); err == nil {
			t.Fatal("should return error for invalid array handling")
		}
	})
}

func TestBuildConnString(t *testing.T) {
	config := newTestConfig()
	got := buildConnString(config)
	want := "host=localhost port=5432 dbname=testdb sslmode=disable user=testuser password=testpass"
	if got != want {
		t.Fatalf("buildConnString mismatch:\ngot:  %s\nwant: %s", got, want)
	}
}

func TestResolveQuery(t *testing.T) {
	t.Run("UsesQueryVerbatim", func(t *testing.T) {
		config := newTestConfig()
		if got := resolveQuery(config); got != "SELECT * FROM events" {
			t.Fatalf("unexpected query: %s", got)
		}
	})

	t.Run("ExpandsTable", func(t *testing.T) {
		config := newTestConfig()
		config.Query = ""
		config.Table = "events"
		if got := resolveQuery(config); got != "SELECT * FROM events" {
			t.Fatalf("unexpected query: %s", got)
		}
	})
}

package cmd

import (
	"fmt"
	"strings"
)

// buildConnString assembles a libpq key/value connection string from a
// validated Config, the same shape data-archiver's Archiver.connect built
// for lib/pq, adapted here for pgconn which takes the same DSN syntax.
func buildConnString(c *Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "host=%s port=%d dbname=%s sslmode=%s",
		c.Host, c.Port, c.DBName, c.effectiveSSLMode())

	if c.User != "" {
		fmt.Fprintf(&b, " user=%s", c.User)
	}
	if c.Password != "" {
		fmt.Fprintf(&b, " password=%s", c.Password)
	}
	// libpq only accepts one sslrootcert path; --ssl-root-cert is
	// repeatable on the CLI for operator convenience (e.g. trying a
	// fallback path), so only the first is wired to the connection.
	if len(c.SSLRootCert) > 0 {
		fmt.Fprintf(&b, " sslrootcert=%s", c.SSLRootCert[0])
	}
	return b.String()
}

// resolveQuery returns the SQL text to COPY from: --query verbatim, or
// --table expanded to a SELECT *.
func resolveQuery(c *Config) string {
	if c.Query != "" {
		return c.Query
	}
	return fmt.Sprintf("SELECT * FROM %s", c.Table)
}

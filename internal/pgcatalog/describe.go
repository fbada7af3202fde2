package pgcatalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ResultColumn is one column of a result set as reported by the server's
// describe (Parse+Describe) step, before any row has been fetched.
type ResultColumn struct {
	Name string
	OID  uint32

	// TypeModifier carries precision/scale for numeric, length for
	// bit/varbit, and the like; -1 when the server reports none.
	TypeModifier int32
}

// DescribeColumns asks the server to parse sqlText without executing it
// and returns the shape of the result set it would produce. This is how
// both `--query` and `--table` (expanded to `SELECT * FROM <table>`)
// arrive at the same column list: the describe step doesn't care which
// one produced the SQL.
func DescribeColumns(ctx context.Context, conn *pgconn.PgConn, sqlText string) ([]ResultColumn, error) {
	sd, err := conn.Prepare(ctx, "", sqlText, nil)
	if err != nil {
		return nil, fmt.Errorf("pgcatalog: describing result set: %w", err)
	}

	cols := make([]ResultColumn, len(sd.Fields))
	for i, f := range sd.Fields {
		cols[i] = ResultColumn{
			Name:         string(f.Name),
			OID:          f.DataTypeOID,
			TypeModifier: f.TypeModifier,
		}
	}
	return cols, nil
}

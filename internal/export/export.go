// Package export drives one end-to-end run: connect, describe the result
// set, build a Parquet schema and column writers for it, stream the
// PostgreSQL binary COPY output through them, and flush Parquet row groups
// to the output file.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/parquet-go/parquet-go"

	"github.com/airframesio/pgparquet/internal/columnwriter"
	"github.com/airframesio/pgparquet/internal/errkind"
	"github.com/airframesio/pgparquet/internal/parquetsink"
	"github.com/airframesio/pgparquet/internal/pgcatalog"
	"github.com/airframesio/pgparquet/internal/pgwire"
	"github.com/airframesio/pgparquet/internal/pqschema"
)

// DefaultBatchSize is the number of rows accumulated into one Parquet row
// group before it is flushed; there is no dedicated CLI flag for it.
const DefaultBatchSize = 100_000

// Options is everything one export run needs, already resolved from CLI
// flags and environment variables by the cmd package.
type Options struct {
	ConnString  string
	Query       string
	OutputPath  string
	Compression string
	BatchSize   int
	Settings    pqschema.Settings
}

// Run executes one export and returns the number of rows written.
func Run(ctx context.Context, opts Options) (int64, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	conn, err := pgconn.Connect(ctx, opts.ConnString)
	if err != nil {
		return 0, &errkind.ConnectError{Err: fmt.Errorf("export: connecting: %w", err)}
	}
	defer conn.Close(ctx)

	db, err := sql.Open("pgx", opts.ConnString)
	if err != nil {
		return 0, &errkind.ConnectError{Err: fmt.Errorf("export: opening catalog connection: %w", err)}
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return 0, &errkind.ConnectError{Err: fmt.Errorf("export: pinging catalog connection: %w", err)}
	}

	resultCols, err := pgcatalog.DescribeColumns(ctx, conn, opts.Query)
	if err != nil {
		return 0, &errkind.ConfigError{Err: err}
	}
	if len(resultCols) == 0 {
		return 0, &errkind.ConfigError{Err: fmt.Errorf("export: query %q returns no columns", opts.Query)}
	}

	resolver := pgcatalog.NewResolver(db)
	builder := columnwriter.NewBuilder()

	fields := make(parquet.Group, len(resultCols))
	columns := make([]columnwriter.Writer, len(resultCols))
	for i, col := range resultCols {
		// ResultColumn carries no not-null flag (it describes a query's
		// projection, not a table's column constraints), so every
		// result-set column is treated as nullable.
		pgType, err := resolver.Resolve(ctx, col.OID)
		if err != nil {
			return 0, &errkind.UnsupportedTypeError{Err: fmt.Errorf("export: resolving column %q: %w", col.Name, err)}
		}
		node, err := pqschema.BuildColumn(col.Name, pgType, true, opts.Settings)
		if err != nil {
			return 0, &errkind.UnsupportedTypeError{Err: err}
		}
		writer, err := builder.Column(pgType, true, opts.Settings)
		if err != nil {
			return 0, &errkind.UnsupportedTypeError{Err: err}
		}
		fields[col.Name] = node
		columns[i] = writer
	}
	schema := parquet.NewSchema("result", fields)

	codec, err := parquetsink.ResolveCodec(opts.Compression)
	if err != nil {
		return 0, err
	}

	out, err := os.Create(opts.OutputPath)
	if err != nil {
		return 0, &errkind.IOError{Err: fmt.Errorf("export: creating output file: %w", err)}
	}
	defer out.Close()

	sink := parquetsink.New(out, schema, codec, columns, batchSize)

	rows, copyErr := stream(ctx, conn, opts.Query, len(resultCols), sink)
	if copyErr != nil {
		return rows, copyErr
	}
	if err := sink.Close(); err != nil {
		return rows, err
	}
	if err := out.Sync(); err != nil {
		return rows, &errkind.IOError{Err: fmt.Errorf("export: flushing output file: %w", err)}
	}
	return rows, nil
}

// stream issues the COPY, bridges pgconn's writer-based CopyTo to
// pgwire's reader-based parsing through an io.Pipe, and drives the
// per-row consume loop until the stream ends.
func stream(ctx context.Context, conn *pgconn.PgConn, query string, numColumns int, sink *parquetsink.Sink) (int64, error) {
	pr, pw := io.Pipe()

	copySQL := fmt.Sprintf("COPY (%s) TO STDOUT (FORMAT BINARY)", query)
	copyDone := make(chan error, 1)
	go func() {
		_, err := conn.CopyTo(ctx, pw, copySQL)
		pw.CloseWithError(err)
		copyDone <- err
	}()

	wireReader, err := pgwire.NewReader(pr)
	if err != nil {
		<-copyDone
		return 0, &errkind.ProtocolError{Err: fmt.Errorf("export: reading copy header: %w", err)}
	}

	rows, err := drive(wireReader, numColumns, sink)
	if err != nil {
		<-copyDone
		return rows, err
	}

	if err := <-copyDone; err != nil {
		return rows, &errkind.ProtocolError{Err: fmt.Errorf("export: copy stream: %w", err)}
	}
	return rows, nil
}

// drive runs the per-row consume loop against an already-framed copy
// stream: read one tuple's field count, check it against the schema's
// column count, feed every top-level column writer exactly one field, and
// repeat until the end-of-stream sentinel. Split out from stream so it can
// be exercised directly against a synthetic COPY BINARY byte stream
// without a live PostgreSQL connection.
func drive(wireReader *pgwire.Reader, numColumns int, sink *parquetsink.Sink) (int64, error) {
	var rows int64
	for {
		n, ok, err := wireReader.StartRow()
		if err != nil {
			return rows, &errkind.ProtocolError{Err: fmt.Errorf("export: reading row %d: %w", rows, err)}
		}
		if !ok {
			break
		}
		if int(n) != numColumns {
			return rows, &errkind.ProtocolError{Err: fmt.Errorf("export: row %d has %d fields, schema expects %d", rows, n, numColumns)}
		}

		if err := sink.ConsumeRow(func(w columnwriter.Writer) error {
			return w.ConsumeField(wireReader)
		}); err != nil {
			return rows, err
		}
		rows++
	}
	return rows, nil
}

package pgcatalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrUnsupportedType is returned when an OID cannot be classified at all
// (pg_type has no row for it, or its typtype is not one of the
// recognized kinds). The exporter driver maps this to the fatal
// UnsupportedType error category.
var ErrUnsupportedType = errors.New("pgcatalog: unsupported type")

// typeRow mirrors the columns pulled from a single pg_type lookup.
type typeRow struct {
	oid        uint32
	name       string
	typtype    string
	typcategory string
	typelem    uint32
	typrelid   uint32
	typbasetype uint32
}

// Resolver resolves pg_type OIDs into PgType descriptors, caching every
// result for the lifetime of a run. Resolution is read-only catalog SQL
// against db, matching the fallback-free happy path of a healthy
// server — unlike table-schema lookups, pg_type rows either exist or the
// OID is simply unknown.
type Resolver struct {
	db    *sql.DB
	cache map[uint32]*PgType
}

// NewResolver returns a Resolver backed by db. db may be a *sql.DB
// obtained from the pgx stdlib driver, or (in tests) a go-sqlmock
// database.
func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{db: db, cache: make(map[uint32]*PgType)}
}

// Resolve returns the PgType for oid, building it (and every type it
// transitively references) on first lookup and serving the cache on
// subsequent lookups.
func (r *Resolver) Resolve(ctx context.Context, oid uint32) (*PgType, error) {
	if t, ok := r.cache[oid]; ok {
		return t, nil
	}
	if t, ok := wellKnownBase[oid]; ok {
		cp := *t
		r.cache[oid] = &cp
		return &cp, nil
	}

	row, err := r.fetchTypeRow(ctx, oid)
	if err != nil {
		return nil, err
	}

	t := &PgType{OID: row.oid, Name: row.name, TypType: row.typtype[0], Precision: -1, Scale: -1}
	if len(row.typcategory) > 0 {
		t.Category = row.typcategory[0]
	}
	// Guard against infinite recursion for self-referential catalogs
	// (arrays of arrays of the same element, composites embedding
	// themselves indirectly): insert the placeholder before recursing.
	r.cache[oid] = t

	switch row.typtype {
	case "b":
		if row.typelem != 0 && row.name != "" && row.name[0] == '_' {
			t.Kind = KindArray
			elem, err := r.Resolve(ctx, row.typelem)
			if err != nil {
				return nil, err
			}
			t.Elem = elem
		} else if isRangeCategory(row.typcategory) {
			subtype, err := r.fetchRangeSubtype(ctx, oid)
			if err != nil {
				return nil, err
			}
			elem, err := r.Resolve(ctx, subtype)
			if err != nil {
				return nil, err
			}
			t.Kind = KindRange
			t.RangeElem = elem
		} else {
			t.Kind = KindBase
		}
	case "c":
		t.Kind = KindComposite
		fields, err := r.fetchCompositeFields(ctx, row.typrelid)
		if err != nil {
			return nil, err
		}
		t.Fields = fields
	case "e":
		t.Kind = KindEnum
		labels, err := r.fetchEnumLabels(ctx, oid)
		if err != nil {
			return nil, err
		}
		t.Labels = labels
	case "r", "m": // range, multirange
		t.Kind = KindRange
		subtype, err := r.fetchRangeSubtype(ctx, oid)
		if err != nil {
			return nil, err
		}
		elem, err := r.Resolve(ctx, subtype)
		if err != nil {
			return nil, err
		}
		t.RangeElem = elem
	case "d":
		t.Kind = KindDomain
		underlying, err := r.Resolve(ctx, row.typbasetype)
		if err != nil {
			return nil, err
		}
		t.Underlying = underlying
	default:
		return nil, fmt.Errorf("%w: oid %d typtype %q", ErrUnsupportedType, oid, row.typtype)
	}

	r.cache[oid] = t
	return t, nil
}

func isRangeCategory(typcategory string) bool {
	return typcategory == "R"
}

func (r *Resolver) fetchTypeRow(ctx context.Context, oid uint32) (typeRow, error) {
	const query = `
		SELECT oid, typname, typtype, typcategory, typelem, typrelid, typbasetype
		FROM pg_catalog.pg_type
		WHERE oid = $1
	`
	var row typeRow
	err := r.db.QueryRowContext(ctx, query, oid).Scan(
		&row.oid, &row.name, &row.typtype, &row.typcategory, &row.typelem, &row.typrelid, &row.typbasetype,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return typeRow{}, fmt.Errorf("%w: oid %d not found in pg_type", ErrUnsupportedType, oid)
	}
	if err != nil {
		return typeRow{}, fmt.Errorf("pgcatalog: querying pg_type for oid %d: %w", oid, err)
	}
	return row, nil
}

func (r *Resolver) fetchRangeSubtype(ctx context.Context, oid uint32) (uint32, error) {
	const query = `SELECT rngsubtype FROM pg_catalog.pg_range WHERE rngtypid = $1`
	var subtype uint32
	if err := r.db.QueryRowContext(ctx, query, oid).Scan(&subtype); err != nil {
		return 0, fmt.Errorf("pgcatalog: querying pg_range for oid %d: %w", oid, err)
	}
	return subtype, nil
}

func (r *Resolver) fetchEnumLabels(ctx context.Context, oid uint32) ([]string, error) {
	const query = `
		SELECT enumlabel FROM pg_catalog.pg_enum
		WHERE enumtypid = $1
		ORDER BY enumsortorder
	`
	rows, err := r.db.QueryContext(ctx, query, oid)
	if err != nil {
		return nil, fmt.Errorf("pgcatalog: querying pg_enum for oid %d: %w", oid, err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("pgcatalog: scanning enum label: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

func (r *Resolver) fetchCompositeFields(ctx context.Context, relid uint32) ([]CompositeField, error) {
	const query = `
		SELECT attname, atttypid
		FROM pg_catalog.pg_attribute
		WHERE attrelid = $1 AND attnum > 0 AND NOT attisdropped
		ORDER BY attnum
	`
	rows, err := r.db.QueryContext(ctx, query, relid)
	if err != nil {
		return nil, fmt.Errorf("pgcatalog: querying pg_attribute for relid %d: %w", relid, err)
	}
	defer rows.Close()

	type rawField struct {
		name string
		oid  uint32
	}
	var raw []rawField
	for rows.Next() {
		var f rawField
		if err := rows.Scan(&f.name, &f.oid); err != nil {
			return nil, fmt.Errorf("pgcatalog: scanning composite field: %w", err)
		}
		raw = append(raw, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fields := make([]CompositeField, len(raw))
	for i, f := range raw {
		elemType, err := r.Resolve(ctx, f.oid)
		if err != nil {
			return nil, err
		}
		fields[i] = CompositeField{Name: f.name, Type: elemType}
	}
	return fields, nil
}

// wellKnownBase shortcuts resolution for built-in scalar types so that
// the common case never touches pg_type.
var wellKnownBase = map[uint32]*PgType{
	OIDBool:        {OID: OIDBool, Name: "bool", Kind: KindBase},
	OIDBytea:       {OID: OIDBytea, Name: "bytea", Kind: KindBase},
	OIDInt8:        {OID: OIDInt8, Name: "int8", Kind: KindBase},
	OIDInt2:        {OID: OIDInt2, Name: "int2", Kind: KindBase},
	OIDInt4:        {OID: OIDInt4, Name: "int4", Kind: KindBase},
	OIDText:        {OID: OIDText, Name: "text", Kind: KindBase},
	OIDOID:         {OID: OIDOID, Name: "oid", Kind: KindBase},
	OIDXML:         {OID: OIDXML, Name: "xml", Kind: KindBase},
	OIDJSON:        {OID: OIDJSON, Name: "json", Kind: KindBase},
	OIDXID8:        {OID: OIDXID8, Name: "xid8", Kind: KindBase},
	OIDMoney:       {OID: OIDMoney, Name: "money", Kind: KindBase},
	OIDMacaddr:     {OID: OIDMacaddr, Name: "macaddr", Kind: KindBase},
	OIDInet:        {OID: OIDInet, Name: "inet", Kind: KindBase},
	OIDCIDR:        {OID: OIDCIDR, Name: "cidr", Kind: KindBase},
	OIDMacaddr8:    {OID: OIDMacaddr8, Name: "macaddr8", Kind: KindBase},
	OIDFloat4:      {OID: OIDFloat4, Name: "float4", Kind: KindBase},
	OIDFloat8:      {OID: OIDFloat8, Name: "float8", Kind: KindBase},
	OIDVarchar:     {OID: OIDVarchar, Name: "varchar", Kind: KindBase},
	OIDBPChar:      {OID: OIDBPChar, Name: "bpchar", Kind: KindBase},
	OIDDate:        {OID: OIDDate, Name: "date", Kind: KindBase},
	OIDTime:        {OID: OIDTime, Name: "time", Kind: KindBase},
	OIDTimestamp:   {OID: OIDTimestamp, Name: "timestamp", Kind: KindBase},
	OIDTimestampTZ: {OID: OIDTimestampTZ, Name: "timestamptz", Kind: KindBase},
	OIDInterval:    {OID: OIDInterval, Name: "interval", Kind: KindBase},
	OIDTimeTZ:      {OID: OIDTimeTZ, Name: "timetz", Kind: KindBase},
	OIDBit:         {OID: OIDBit, Name: "bit", Kind: KindBase},
	OIDVarbit:      {OID: OIDVarbit, Name: "varbit", Kind: KindBase},
	OIDNumeric:     {OID: OIDNumeric, Name: "numeric", Kind: KindBase},
	OIDUUID:        {OID: OIDUUID, Name: "uuid", Kind: KindBase},
	OIDJSONB:       {OID: OIDJSONB, Name: "jsonb", Kind: KindBase},
}

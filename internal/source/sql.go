package source

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
)

// Dialect controls placeholder syntax.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// SQLSource fetches rows from a warehouse reachable through database/sql.
type SQLSource struct {
	db      *sql.DB
	dialect Dialect
	timeout time.Duration
}

// OpenSQL opens and pings a connection for driver ("postgres" or "mysql").
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLSource, error) {
	dialect := Dialect(driver)
	if dialect != DialectPostgres && dialect != DialectMySQL {
		return nil, fmt.Errorf("unsupported SQL driver %q (supported: postgres, mysql)", driver)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("source.dsn is required for the %s driver", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open %s connection: %w", driver, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not reach %s warehouse: %w", driver, err)
	}
	return NewSQL(db, dialect), nil
}

// NewSQL wraps an existing handle.
func NewSQL(db *sql.DB, dialect Dialect) *SQLSource {
	return &SQLSource{db: db, dialect: dialect, timeout: 10 * time.Minute}
}

// Close releases the connection pool.
func (s *SQLSource) Close() error { return s.db.Close() }

// Fetch runs q as a single SELECT.
func (s *SQLSource) Fetch(ctx context.Context, q Query) (Rows, error) {
	stmt, args, err := s.Build(q)
	if err != nil {
		return nil, err
	}

	qctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(qctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", q.Dataset, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("fetch %s: could not read columns: %w", q.Dataset, err)
	}

	out := Rows{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("fetch %s: could not scan row: %w", q.Dataset, err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = cellString(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", q.Dataset, err)
	}
	return out, nil
}

// Build renders q into a parameterized statement for the source's dialect.
func (s *SQLSource) Build(q Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	var (
		b    strings.Builder
		args []any
	)
	ph := func(v any) string {
		args = append(args, v)
		if s.dialect == DialectPostgres {
			return "$" + strconv.Itoa(len(args))
		}
		return "?"
	}
	list := func(vs []any) string {
		parts := make([]string, len(vs))
		for i, v := range vs {
			parts[i] = ph(v)
		}
		return strings.Join(parts, ", ")
	}

	b.WriteString("SELECT ")
	b.WriteString(strings.Join(q.Columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(q.Dataset)

	for i, f := range q.Filters {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		switch f.Op {
		case OpEq:
			fmt.Fprintf(&b, "%s = %s", f.Column, ph(f.Values[0]))
		case OpGte:
			fmt.Fprintf(&b, "%s >= %s", f.Column, ph(f.Values[0]))
		case OpLike:
			fmt.Fprintf(&b, "%s LIKE %s", f.Column, ph(f.Values[0]))
		case OpNotNull:
			fmt.Fprintf(&b, "%s IS NOT NULL", f.Column)
		case OpIn:
			fmt.Fprintf(&b, "%s IN (%s)", f.Column, list(f.Values))
		case OpNotIn:
			if len(f.Values) == 1 {
				fmt.Fprintf(&b, "%s <> %s", f.Column, ph(f.Values[0]))
			} else {
				fmt.Fprintf(&b, "%s NOT IN (%s)", f.Column, list(f.Values))
			}
		}
	}
	return b.String(), args, nil
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		return x.UTC().Format(TimeLayout)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

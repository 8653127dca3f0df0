// Package source fetches raw rows from the analytics warehouse or from a
// directory of exported files. Every implementation honors the same filter
// semantics, so the rest of a run can assume returned rows already satisfy
// the requested filters.
package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrUnknownDataset is returned when a dataset does not exist in the source.
	ErrUnknownDataset = errors.New("unknown dataset")
	// ErrInvalidIdentifier is returned for dataset or column names that are not plain identifiers.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// Row is one record with every value rendered as a string. Missing or NULL
// values are "".
type Row map[string]string

// Rows is the result of a fetch.
type Rows []Row

// Op is a filter operator.
type Op string

const (
	OpEq      Op = "="
	OpNotIn   Op = "!"
	OpGte     Op = ">="
	OpIn      Op = "in"
	OpLike    Op = "like"
	OpNotNull Op = "notnull"
)

// Filter restricts a fetch on one column.
type Filter struct {
	Column string
	Op     Op
	Values []any
}

// Eq keeps rows whose column equals v.
func Eq(column string, v any) Filter { return Filter{Column: column, Op: OpEq, Values: []any{v}} }

// NotIn drops rows whose column equals any of vs.
func NotIn[T any](column string, vs ...T) Filter {
	return Filter{Column: column, Op: OpNotIn, Values: toAny(vs)}
}

// In keeps rows whose column equals one of vs.
func In[T any](column string, vs ...T) Filter {
	return Filter{Column: column, Op: OpIn, Values: toAny(vs)}
}

// Gte keeps rows whose column is greater than or equal to v. A time.Time
// value compares chronologically.
func Gte(column string, v any) Filter { return Filter{Column: column, Op: OpGte, Values: []any{v}} }

// Like keeps rows matching a SQL LIKE pattern (% and _ wildcards).
func Like(column, pattern string) Filter {
	return Filter{Column: column, Op: OpLike, Values: []any{pattern}}
}

// Prefix keeps rows whose column starts with p.
func Prefix(column, p string) Filter {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return Like(column, r.Replace(p)+"%")
}

// NotNull keeps rows where column has a value.
func NotNull(column string) Filter { return Filter{Column: column, Op: OpNotNull} }

func toAny[T any](vs []T) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}

// Query describes one fetch.
type Query struct {
	Dataset string
	Columns []string
	Filters []Filter
}

// Validate checks identifiers and operator arity.
func (q Query) Validate() error {
	if !identPattern.MatchString(q.Dataset) {
		return fmt.Errorf("%w: dataset %q", ErrInvalidIdentifier, q.Dataset)
	}
	if len(q.Columns) == 0 {
		return fmt.Errorf("query on %s selects no columns", q.Dataset)
	}
	for _, c := range q.Columns {
		if !columnPattern.MatchString(c) {
			return fmt.Errorf("%w: column %q", ErrInvalidIdentifier, c)
		}
	}
	for _, f := range q.Filters {
		if !columnPattern.MatchString(f.Column) {
			return fmt.Errorf("%w: filter column %q", ErrInvalidIdentifier, f.Column)
		}
		switch f.Op {
		case OpNotNull:
		case OpEq, OpGte, OpLike:
			if len(f.Values) != 1 {
				return fmt.Errorf("filter %s %s takes one value, got %d", f.Column, f.Op, len(f.Values))
			}
		case OpIn, OpNotIn:
			if len(f.Values) == 0 {
				return fmt.Errorf("filter %s %s needs at least one value", f.Column, f.Op)
			}
		default:
			return fmt.Errorf("unknown filter operator %q on %s", f.Op, f.Column)
		}
	}
	return nil
}

var (
	identPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
	columnPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// DataSource returns rows for a query. Implementations treat a fetch as
// atomic and side-effect free; an empty result is not an error.
type DataSource interface {
	Fetch(ctx context.Context, q Query) (Rows, error)
}

// TimeLayout is how time values are rendered into Row strings.
const TimeLayout = time.RFC3339Nano

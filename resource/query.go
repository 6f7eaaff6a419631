package resource

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-router"
)

// Operator is a filter comparison
type Operator string

const (
	OpEq  Operator = "eq"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
	OpIn  Operator = "in"
)

// Filter restricts a list to records whose Field compares to Value.
// For OpIn Value holds a []any.
type Filter struct {
	Field string
	Op    Operator
	Value any
}

// SortField orders a list by Field
type SortField struct {
	Field string
	Desc  bool
}

// Query is the storage neutral description of a list request
type Query struct {
	Filters []Filter
	Sort    []SortField
	Fields  []string
	Page    int
	Limit   int
}

// Offset is the number of records skipped for the current page
func (q Query) Offset() int {
	if q.Page <= 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// Where appends an equality filter
func (q *Query) Where(field string, value any) *Query {
	q.Filters = append(q.Filters, Filter{Field: field, Op: OpEq, Value: value})
	return q
}

// QueryOptions tunes ParseQuery
type QueryOptions struct {
	DefaultSort  string
	DefaultLimit int
	MaxLimit     int
	// Whitelist lists the fields that may be repeated in a query string,
	// repeated values become an OpIn filter. Other repeated keys keep
	// the last value.
	Whitelist []string
}

// DefaultQueryOptions mirrors the public API defaults
var DefaultQueryOptions = QueryOptions{
	DefaultSort:  "-createdAt",
	DefaultLimit: 100,
	MaxLimit:     1000,
}

var reserved = map[string]bool{
	"page":   true,
	"sort":   true,
	"limit":  true,
	"fields": true,
}

var (
	fieldName   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	operatorKey = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\[(gte|gt|lte|lt)\]$`)
)

// ParseQuery turns query string values into a Query. Unknown or unsafe
// keys are dropped instead of failing the request.
func ParseQuery(values url.Values, opts QueryOptions) Query {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultQueryOptions.DefaultLimit
	}

	q := Query{
		Page:  positiveInt(last(values["page"]), 1),
		Limit: positiveInt(last(values["limit"]), opts.DefaultLimit),
	}

	if opts.MaxLimit > 0 && q.Limit > opts.MaxLimit {
		q.Limit = opts.MaxLimit
	}

	whitelist := make(map[string]bool, len(opts.Whitelist))
	for _, w := range opts.Whitelist {
		whitelist[w] = true
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		vals := values[key]
		if reserved[key] || len(vals) == 0 {
			continue
		}

		if m := operatorKey.FindStringSubmatch(key); m != nil {
			q.Filters = append(q.Filters, Filter{
				Field: m[1],
				Op:    Operator(m[2]),
				Value: ParseScalar(last(vals)),
			})
			continue
		}

		if !fieldName.MatchString(key) {
			continue
		}

		if len(vals) > 1 && whitelist[key] {
			in := make([]any, 0, len(vals))
			for _, v := range vals {
				in = append(in, ParseScalar(v))
			}
			q.Filters = append(q.Filters, Filter{Field: key, Op: OpIn, Value: in})
			continue
		}

		q.Filters = append(q.Filters, Filter{Field: key, Op: OpEq, Value: ParseScalar(last(vals))})
	}

	sortExpr := last(values["sort"])
	if sortExpr == "" {
		sortExpr = opts.DefaultSort
	}
	q.Sort = parseSort(sortExpr)
	q.Fields = parseFields(last(values["fields"]))

	return q
}

// QueryValues collects the request query string, keeping repeated keys
func QueryValues(c router.Context) url.Values {
	u, err := url.Parse(c.OriginalURL())
	if err != nil {
		return url.Values{}
	}
	// malformed pairs are dropped, the rest still apply
	values, _ := url.ParseQuery(u.RawQuery)
	return values
}

// ParseScalar converts numeric and boolean literals, leaving anything
// else as a string
func ParseScalar(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

func parseSort(expr string) []SortField {
	var out []SortField
	for _, part := range splitList(expr) {
		desc := strings.HasPrefix(part, "-")
		name := strings.TrimPrefix(part, "-")
		if !fieldName.MatchString(name) {
			continue
		}
		out = append(out, SortField{Field: name, Desc: desc})
	}
	return out
}

func parseFields(expr string) []string {
	var out []string
	for _, part := range splitList(expr) {
		if fieldName.MatchString(part) {
			out = append(out, part)
		}
	}
	return out
}

func splitList(expr string) []string {
	var out []string
	for _, part := range strings.Split(expr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func last(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[len(vals)-1]
}

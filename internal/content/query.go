package content

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/brizzai/blogctl/internal/logger"
	"go.uber.org/zap"
)

type queryMethod string

const (
	methodEqual       queryMethod = "equal"
	methodNotEqual    queryMethod = "notEqual"
	methodLessThan    queryMethod = "lessThan"
	methodGreaterThan queryMethod = "greaterThan"
	methodSearch      queryMethod = "search"
	methodOrderAsc    queryMethod = "orderAsc"
	methodOrderDesc   queryMethod = "orderDesc"
	methodLimit       queryMethod = "limit"
	methodRaw         queryMethod = "raw"
)

// Query is a single list filter
type Query struct {
	method    queryMethod
	attribute string
	value     string
}

// Equal filters on attribute == value
func Equal(attribute, value string) Query {
	return Query{method: methodEqual, attribute: attribute, value: value}
}

// NotEqual filters on attribute != value
func NotEqual(attribute, value string) Query {
	return Query{method: methodNotEqual, attribute: attribute, value: value}
}

// LessThan is accepted for compatibility, the backend ignores it
func LessThan(attribute, value string) Query {
	return Query{method: methodLessThan, attribute: attribute, value: value}
}

// GreaterThan is accepted for compatibility, the backend ignores it
func GreaterThan(attribute, value string) Query {
	return Query{method: methodGreaterThan, attribute: attribute, value: value}
}

// Search is accepted for compatibility, the backend ignores it
func Search(attribute, value string) Query {
	return Query{method: methodSearch, attribute: attribute, value: value}
}

// OrderAsc is accepted for compatibility, the backend ignores it
func OrderAsc(attribute string) Query {
	return Query{method: methodOrderAsc, attribute: attribute}
}

// OrderDesc is accepted for compatibility, the backend ignores it
func OrderDesc(attribute string) Query {
	return Query{method: methodOrderDesc, attribute: attribute}
}

// Limit is accepted for compatibility, the backend ignores it
func Limit(n int) Query {
	return Query{method: methodLimit, value: strconv.Itoa(n)}
}

// Raw parses a "key=value" filter
func Raw(expr string) Query {
	return Query{method: methodRaw, value: expr}
}

func (q Query) String() string {
	switch q.method {
	case methodRaw:
		return q.value
	case methodLimit:
		return "limit(" + q.value + ")"
	default:
		return string(q.method) + "(" + q.attribute + "," + q.value + ")"
	}
}

// buildQuery maps queries onto backend query parameters
func buildQuery(queries []Query) url.Values {
	values := url.Values{}
	for _, q := range queries {
		switch q.method {
		case methodEqual:
			if q.attribute != "" {
				values.Add(q.attribute, q.value)
			}
		case methodNotEqual:
			if q.attribute != "" {
				values.Add(q.attribute+"__ne", q.value)
			}
		case methodRaw:
			key, value, ok := strings.Cut(q.value, "=")
			key, value = strings.TrimSpace(key), strings.TrimSpace(value)
			if !ok || key == "" || value == "" {
				logger.Debug("ignoring malformed query", zap.String("query", q.value))
				continue
			}
			values.Add(key, value)
		default:
			logger.Debug("query not supported by backend, ignoring", zap.Stringer("query", q))
		}
	}
	return values
}

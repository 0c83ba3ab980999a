// Package sqlxrepos implements every repository on PostgreSQL with sqlx.
package sqlxrepos

import (
	"database/sql/driver"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/etudier/etudier/core"
)

const uniqueViolation = "23505"

// jsonb maps a JSONB column onto a Go value.
type jsonb[T any] struct {
	V T
}

func (j jsonb[T]) Value() (driver.Value, error) {
	b, err := sonic.Marshal(j.V)
	if err != nil {
		return nil, errors.Wrap(err, "encoding jsonb")
	}
	return b, nil
}

func (j *jsonb[T]) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("jsonb: cannot scan %T", src)
	}
	return errors.Wrap(sonic.Unmarshal(data, &j.V), "decoding jsonb")
}

// uniqueConstraint returns the name of the unique constraint violated by err, if any.
func uniqueConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// likePattern escapes s for a "contains" ILIKE.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// orderBy renders an ORDER BY clause; fields must have been whitelisted by core.ParseOrdering.
// Fields in nullsLast sort their NULLs last whatever the direction.
func orderBy(orderings []core.DBOrdering, nullsLast ...string) string {
	if len(orderings) == 0 {
		return ""
	}
	clauses := make([]string, len(orderings))
	for i, ord := range orderings {
		clauses[i] = ord.String()
		for _, f := range nullsLast {
			if f == ord.Field {
				clauses[i] += " NULLS LAST"
				break
			}
		}
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

func stringArray(ss []string) pq.StringArray {
	if ss == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(ss)
}

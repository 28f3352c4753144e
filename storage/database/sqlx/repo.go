package sqlxrepos

import (
	"database/sql/driver"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/orgalumni/alumni/core"
)

type baseRepository struct {
	exec core.DBExecutor
}

func (repo baseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// jsonList stores a list of strings as a JSON array in a text column.
type jsonList []string

func (l jsonList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *jsonList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = jsonList{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.Errorf("cannot scan %T into jsonList", src)
	}

	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "decoding jsonList")
	}
	if items == nil {
		items = []string{}
	}
	*l = items
	return nil
}

// orderBy renders the ORDER BY clause of the allowed fields found in ordering, or def when none is.
func orderBy(ordering []core.DBOrdering, allowed map[string]string, def string) string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := allowed[ord.Field]
		if !ok {
			continue
		}
		ord.Field = col
		clauses = append(clauses, ord.String())
	}
	if len(clauses) == 0 {
		return " ORDER BY " + def
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

// containsPattern builds a LIKE pattern matching s anywhere, case-insensitively when compared with LOWER(col).
func containsPattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}

// whereClause joins conditions with AND.
func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func rowsAffected(res interface{ RowsAffected() (int64, error) }) (int64, error) {
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "reading rows affected")
}

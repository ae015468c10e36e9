// Package sqlxrepos provides PostgreSQL implementations of the core
// repositories, built on sqlx.
package sqlxrepos

import (
	"strings"

	"github.com/stackschool/academy/core"
)

// orderingClause renders an ORDER BY clause from ordering, falling back to
// deflt (a raw "col DIR" string) when none is given.
func orderingClause(ordering []core.DBOrdering, deflt string) string {
	if len(ordering) == 0 {
		if deflt == "" {
			return ""
		}
		return " ORDER BY " + deflt
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}

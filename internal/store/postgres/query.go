package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/tickerbot/internal/domain"
)

// listQuery appends time-window filters, ordering and pagination to a
// SELECT whose WHERE clause is already open.
type listQuery struct {
	sb   strings.Builder
	args []any
}

func newListQuery(base string, args ...any) *listQuery {
	q := &listQuery{args: args}
	q.sb.WriteString(base)
	return q
}

func (q *listQuery) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

func (q *listQuery) where(cond string, v any) {
	q.sb.WriteString(" AND " + cond + " " + q.arg(v))
}

// page applies opts on timeCol, newest first.
func (q *listQuery) page(timeCol string, opts domain.ListOpts) {
	if opts.Since != nil {
		q.where(timeCol+" >=", *opts.Since)
	}
	if opts.Until != nil {
		q.where(timeCol+" <=", *opts.Until)
	}
	q.sb.WriteString(" ORDER BY " + timeCol + " DESC")
	if opts.Limit > 0 {
		q.sb.WriteString(" LIMIT " + q.arg(opts.Limit))
	}
	if opts.Offset > 0 {
		q.sb.WriteString(" OFFSET " + q.arg(opts.Offset))
	}
}

func (q *listQuery) String() string { return q.sb.String() }

package specification

import (
	"fmt"

	"gorm.io/gorm"
)

// DefaultSummaryOrder is the column used when an OrderBy names a column
// transfer_summaries cannot be sorted on.
const DefaultSummaryOrder = "ended_at"

var sortableSummaryColumns = map[string]struct{}{
	"ended_at":         {},
	"started_at":       {},
	"created_at":       {},
	"duration_ms":      {},
	"valid_samples":    {},
	"rejected_samples": {},
}

// NewestFirst orders summaries by completion time, latest first.
var NewestFirst = OrderBy{Field: DefaultSummaryOrder, Desc: true}

// OrderBy sorts transfer summaries by one whitelisted column.
type OrderBy struct {
	Field string
	Desc  bool
}

// Column returns Field when it is sortable, DefaultSummaryOrder otherwise.
func (s OrderBy) Column() string {
	if _, ok := sortableSummaryColumns[s.Field]; ok {
		return s.Field
	}
	return DefaultSummaryOrder
}

func (s OrderBy) Apply(db *gorm.DB) *gorm.DB {
	direction := "ASC"
	if s.Desc {
		direction = "DESC"
	}
	return db.Order(fmt.Sprintf("%s %s", s.Column(), direction))
}

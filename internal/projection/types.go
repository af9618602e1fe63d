package projection

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/aevon-lab/aevon-rollup/internal/core/aggregation"
)

// BucketQueryRequest selects bucket rows of one type at one period.
type BucketQueryRequest struct {
	Type   string
	Period string
	Key    []string // leading key parts, in primary-key order
	Total  bool     // fold the matched rows into one total
}

// BucketRow is one row in a bucket query response.
type BucketRow struct {
	Key         string                     `json:"key"`
	Keys        map[string]string          `json:"keys"`
	WindowStart time.Time                  `json:"window_start"`
	Values      map[string]decimal.Decimal `json:"values"`
	Attrs       map[string]string          `json:"attrs,omitempty"`
}

// BucketQueryResponse is the response body of the bucket read API.
type BucketQueryResponse struct {
	Type   string      `json:"type"`
	Period string      `json:"period"`
	Object string      `json:"object"`
	Rows   []BucketRow `json:"rows"`
	Total  *BucketRow  `json:"total,omitempty"`
}

func toBucketRow(r aggregation.Row) BucketRow {
	return BucketRow{
		Key:         r.Key,
		Keys:        r.Keys,
		WindowStart: r.WindowStart.UTC(),
		Values:      r.Values,
		Attrs:       r.Attrs,
	}
}

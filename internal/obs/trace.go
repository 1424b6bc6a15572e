package obs

import (
	"fmt"
	"sync/atomic"
	"time"
)

// RequestIDs hands out process-unique request identifiers for access
// logging. IDs are monotonically increasing, so log lines from one run
// sort in arrival order.
type RequestIDs struct {
	next uint64
}

// NewRequestIDs returns a generator seeded from the given value, or the
// current time when zero.
func NewRequestIDs(seed uint64) *RequestIDs {
	if seed == 0 {
		seed = uint64(time.Now().UTC().UnixNano())
	}
	return &RequestIDs{next: seed}
}

// Next returns the next request ID, formatted for log correlation.
func (g *RequestIDs) Next() string {
	if g == nil {
		return ""
	}
	return fmt.Sprintf("req-%x", atomic.AddUint64(&g.next, 1))
}

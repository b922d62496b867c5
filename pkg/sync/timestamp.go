package sync

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

var monotonicCounter uint64

// newTimestamp formats the current UTC time as YYYY-MM-DD_HH-MM-SS,
// replacing colons and dots per §4.5, and appends a monotonic counter
// suffix to disambiguate runs that land in the same second.
func newTimestamp(now time.Time) string {
	base := now.UTC().Format("2006-01-02_15-04-05")
	base = strings.ReplaceAll(base, ":", "-")
	base = strings.ReplaceAll(base, ".", "-")

	n := atomic.AddUint64(&monotonicCounter, 1)
	return fmt.Sprintf("%s-%04d", base, n%10000)
}

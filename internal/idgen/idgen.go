// Package idgen generates the per-session output file name. The core only
// needs a monotonic duration clock and a name generator; the exact textual
// format is cosmetic and lives here rather than in pkg/session.
package idgen

import (
	"fmt"
	"sync/atomic"
	"time"
)

var sequence uint64

// FileName returns a name of the form "<unix-nano>-<sequence>.hex". Each
// call is guaranteed unique within a process even when called back to back
// on the same clock tick, via the sequence number.
func FileName() string {
	n := atomic.AddUint64(&sequence, 1)
	return fmt.Sprintf("%d-%d.hex", time.Now().UnixNano(), n)
}

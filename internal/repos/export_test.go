package repos

import "time"

// SetNow swaps the store clock and returns a func restoring it.
func SetNow(f func() time.Time) (restore func()) {
	old := now
	now = f
	return func() { now = old }
}

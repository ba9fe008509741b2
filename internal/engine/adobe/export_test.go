package adobe

import "time"

// SetPollInterval overrides the job polling interval in tests.
func SetPollInterval(e *Engine, d time.Duration) {
	e.pollInterval = d
}

package syncengine

import (
	"testing"
	"time"
)

// setStabilityDwellForTest overrides the package's stability dwell for the
// duration of a test; production code always uses the real 5s value.
func setStabilityDwellForTest(t *testing.T, d time.Duration) {
	t.Helper()

	stabilityDwell = d
}

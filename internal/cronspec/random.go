package cronspec

import (
	"fmt"
	"math/rand"
)

// Random generates a daily cron expression firing once at a random
// minute/hour, spreading load across tasks that all request "once a day"
// scheduling. Exposed via the control plane's random-cron endpoint (§6.4).
func Random(r *rand.Rand) string {
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}

	minute := r.Intn(60)
	hour := r.Intn(24)

	return fmt.Sprintf("%d %d * * *", minute, hour)
}

package cronspec

import "time"

// ValidationResult is returned by Validate: the expression text as parsed
// (Expr.String, not weekday-folded) and the next fire time computed from now.
type ValidationResult struct {
	Canonical string    `json:"canonical"`
	NextFire  time.Time `json:"next_fire"`
}

// Validate parses expr and computes its next fire time from now. It is the
// control-plane's cron-validation endpoint (§6.4) and satisfies the
// idempotence property in §8.1.7: Validate(Validate(e).Canonical) ==
// Validate(e), because Canonical is the very text Parse accepted and Next
// depends only on the compiled field sets.
func Validate(expr string, now time.Time) (ValidationResult, error) {
	e, err := Parse(expr)
	if err != nil {
		return ValidationResult{}, err
	}

	next, err := e.Next(now)
	if err != nil {
		return ValidationResult{}, err
	}

	return ValidationResult{Canonical: e.String(), NextFire: next}, nil
}

// Presets are commonly used schedules exposed by the control plane's preset
// list endpoint (§6.4).
var Presets = map[string]string{
	"every_minute":  "* * * * *",
	"every_5_min":   "*/5 * * * *",
	"every_15_min":  "*/15 * * * *",
	"every_30_min":  "*/30 * * * *",
	"hourly":        "0 * * * *",
	"daily_midnight": "0 0 * * *",
	"daily_3am":     "0 3 * * *",
	"weekly_sunday": "0 0 * * 0",
	"monthly_first": "0 0 1 * *",
}

package protect

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudgather/cloudgather/internal/model"
)

func setOf(n int, prefix string) map[string]bool {
	m := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		m[prefix+string(rune('a'+i%26))+"/"+itoa(i)] = true
	}

	return m
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}

	digits := ""
	for i > 0 {
		digits = string(rune('0'+i%10)) + digits
		i /= 10
	}

	return digits
}

// TestSmartProtection_S5FullScenario reproduces spec §8.3 S5 literally:
// threshold=100, graceScans=3, a sustained large-orphan outage across
// three scans before release, then full recovery resets the state.
func TestSmartProtection_S5FullScenario(t *testing.T) {
	dir := t.TempDir()

	g, err := Load(dir, model.SmartProtection{Threshold: 100, GraceScans: 3})
	require.NoError(t, err)

	full := setOf(10000, "path-")

	// R1: remote listing full, no orphans.
	ready := g.Process(map[string]bool{}, full)
	assert.Empty(t, ready)

	// R2: remote listing empty, all 10000 orphaned; exceeds threshold.
	ready = g.Process(full, map[string]bool{})
	assert.Empty(t, ready, "first confirmation must not release anything")

	// R3: same; second confirmation.
	ready = g.Process(full, map[string]bool{})
	assert.Empty(t, ready, "second confirmation must not release anything")

	// R4: same; third confirmation reaches graceScans=3.
	ready = g.Process(full, map[string]bool{})
	assert.Len(t, ready, 10000, "third confirmation must release everything")

	stats := g.Stats()
	assert.Equal(t, 0, stats.Total, "released paths must be cleared from tracking")

	// R5: full set returns; nothing left to reset (already cleared by R4's release).
	ready = g.Process(map[string]bool{}, full)
	assert.Empty(t, ready)
	assert.Equal(t, 0, g.Stats().Total)
}

// TestSmartProtection_S6MidRunRecovery reproduces spec §8.3 S6: a subset of
// orphans reappearing between confirmations resets only those paths'
// counters, while the remainder continue accumulating toward release.
func TestSmartProtection_S6MidRunRecovery(t *testing.T) {
	dir := t.TempDir()

	g, err := Load(dir, model.SmartProtection{Threshold: 100, GraceScans: 3})
	require.NoError(t, err)

	full := setOf(200, "path-")

	g.Process(full, map[string]bool{}) // R1: confirmation 1 for all 200

	half := make(map[string]bool)
	i := 0

	for p := range full {
		if i%2 == 0 {
			half[p] = true
		}

		i++
	}

	otherHalf := make(map[string]bool)

	for p := range full {
		if !half[p] {
			otherHalf[p] = true
		}
	}

	// Between R2 and R3: half the files return (present), half remain orphaned.
	ready := g.Process(otherHalf, half)
	assert.Empty(t, ready, "second confirmation for the still-missing half")

	ready = g.Process(otherHalf, map[string]bool{})
	assert.Len(t, ready, len(otherHalf), "still-missing half reaches graceScans and releases")

	assert.Equal(t, 0, g.Stats().Total)
}

func TestSmartProtection_BelowThresholdBypassesProtection(t *testing.T) {
	dir := t.TempDir()

	g, err := Load(dir, model.SmartProtection{Threshold: 100, GraceScans: 3})
	require.NoError(t, err)

	small := setOf(5, "p-")

	ready := g.Process(small, map[string]bool{})
	assert.Len(t, ready, 5, "below-threshold orphans pass straight through")
	assert.Equal(t, 0, g.Stats().Total, "bypassed orphans are never tracked")
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	g, err := Load(dir, model.SmartProtection{Threshold: 100, GraceScans: 3})
	require.NoError(t, err)

	big := setOf(150, "q-")
	g.Process(big, map[string]bool{})
	require.NoError(t, g.Save())

	reloaded, err := Load(dir, model.SmartProtection{Threshold: 100, GraceScans: 3})
	require.NoError(t, err)
	assert.Equal(t, 150, reloaded.Stats().Total)

	_, err = filepath.Abs(dir)
	require.NoError(t, err)
}

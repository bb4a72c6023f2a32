// Package protect implements the smart-protection confirmation-counter
// gate that prevents a single bad remote-listing read from wiping a large
// stub library (spec §4.5), ported from the Python
// StrmProtectionManager.process algorithm.
package protect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloudgather/cloudgather/internal/model"
)

// stateFileName is the document written beside the stub target root (§3
// Smart-protection counter, §6.5).
const stateFileName = ".cloudgather-protection.json"

// Gate tracks, per stub task, a relative-path -> confirmation-count map.
// Gate is not safe for concurrent use by design: stub-task executions are
// serialized by the scheduler (§5 Shared-resource policy), so a Gate is
// only ever touched by one goroutine at a time.
type Gate struct {
	targetRoot string
	threshold  int
	graceScans int
	counts     map[string]int
}

type stateDoc struct {
	Protected  map[string]int `json:"protected"`
	Threshold  int            `json:"threshold"`
	GraceScans int            `json:"grace_scans"`
}

// Load reads (or initializes) the Gate for a stub task's target root and
// protection config. A missing state file starts with an empty map.
func Load(targetRoot string, cfg model.SmartProtection) (*Gate, error) {
	g := &Gate{
		targetRoot: targetRoot,
		threshold:  cfg.Threshold,
		graceScans: cfg.GraceScans,
		counts:     make(map[string]int),
	}

	raw, err := os.ReadFile(filepath.Join(targetRoot, stateFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return g, nil
		}

		return nil, fmt.Errorf("protect: read state file: %w", err)
	}

	var doc stateDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("protect: parse state file: %w", err)
	}

	if doc.Protected != nil {
		g.counts = doc.Protected
	}

	return g, nil
}

// Save persists the current counters beside the target root.
func (g *Gate) Save() error {
	if err := os.MkdirAll(g.targetRoot, 0o755); err != nil {
		return fmt.Errorf("protect: create target root: %w", err)
	}

	doc := stateDoc{Protected: g.counts, Threshold: g.threshold, GraceScans: g.graceScans}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("protect: marshal state: %w", err)
	}

	return os.WriteFile(filepath.Join(g.targetRoot, stateFileName), data, 0o644)
}

// Process runs one scan's worth of the gate (§4.5 "Per-scan update"):
//
//  1. Any tracked path now present is dropped from the map (reset).
//  2. If len(orphans) < threshold, the protection mechanism is bypassed —
//     orphans pass straight through as ready to delete.
//  3. Otherwise every orphan's counter is incremented (starting at 1); any
//     path whose counter has reached graceScans is released (returned, and
//     removed from the tracked map).
//
// orphans and present are both keyed by the stub's path relative to the
// target root, matching the Python implementation's relative-path keying
// (absolute paths are a caller concern, not the gate's).
func (g *Gate) Process(orphans, present map[string]bool) []string {
	for rel := range g.counts {
		if present[rel] {
			delete(g.counts, rel)
		}
	}

	if len(orphans) < g.threshold {
		ready := make([]string, 0, len(orphans))
		for rel := range orphans {
			ready = append(ready, rel)
		}

		return ready
	}

	for rel := range orphans {
		g.counts[rel]++
	}

	var ready []string

	for rel, count := range g.counts {
		if count >= g.graceScans {
			ready = append(ready, rel)
		}
	}

	for _, rel := range ready {
		delete(g.counts, rel)
	}

	return ready
}

// Stats mirrors get_protection_stats: total tracked paths, and a histogram
// of confirmation counts.
type Stats struct {
	Total   int
	ByCount map[int]int
}

func (g *Gate) Stats() Stats {
	s := Stats{Total: len(g.counts), ByCount: make(map[int]int)}

	for _, count := range g.counts {
		s.ByCount[count]++
	}

	return s
}

// Reset clears all tracked counters.
func (g *Gate) Reset() {
	g.counts = make(map[string]int)
}

// ForceApproveAll releases every currently-tracked path regardless of its
// confirmation count (mirrors force_approve_all — an explicit, rarely-used
// escape hatch for operator-initiated cleanup).
func (g *Gate) ForceApproveAll() []string {
	all := make([]string, 0, len(g.counts))
	for rel := range g.counts {
		all = append(all, rel)
	}

	g.counts = make(map[string]int)

	return all
}

// Package model defines the typed task records shared by the scheduler,
// sync engine, and stub generator. Unlike the legacy dictionary-based task
// records it replaces, every field here is a concrete Go type; the lenient
// JSON boundary lives in lenient.go.
package model

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// System identifies which task namespace a task belongs to. Sync and stub
// tasks are disjoint: the same UUID may exist in both without conflict.
type System string

const (
	SystemSync System = "sync"
	SystemStub System = "stub"
)

// Status is the task state machine's current state. See scheduler package
// for the transition table.
type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusQueued  Status = "QUEUED"
	StatusRunning Status = "RUNNING"
	StatusError   Status = "ERROR"
)

// ScheduleType selects between interval and cron triggers.
type ScheduleType string

const (
	ScheduleInterval ScheduleType = "INTERVAL"
	ScheduleCron     ScheduleType = "CRON"
)

// MinIntervalSync and MinIntervalStub are the floor values for
// INTERVAL.Seconds, enforced at validation time (§3 Schedule descriptor).
const (
	MinIntervalSync = 5
	MinIntervalStub = 60
)

// Schedule is a tagged union: either an interval in seconds or a five-field
// cron expression. Exactly one of IntervalSeconds/CronExpr is meaningful,
// selected by Type.
type Schedule struct {
	Type            ScheduleType `json:"schedule_type"`
	IntervalSeconds int          `json:"interval_seconds,omitempty"`
	CronExpr        string       `json:"cron_expr,omitempty"`
}

// ExtensionFilterMode controls whether the extension list is a pass-list,
// a block-list, or inert.
type ExtensionFilterMode string

const (
	ExtNone    ExtensionFilterMode = "NONE"
	ExtInclude ExtensionFilterMode = "INCLUDE"
	ExtExclude ExtensionFilterMode = "EXCLUDE"
)

// ExtensionFilter evaluates a lowercased, dot-free extension against a mode
// and a suffix list.
type ExtensionFilter struct {
	Mode     ExtensionFilterMode `json:"mode"`
	Suffixes []string            `json:"suffixes,omitempty"`
}

// Passes implements the extension-filter evaluation shared by the sync
// engine (§4.2 step 2) and the stub generator (§4.3 "Task-level extension
// filter applies on top"): NONE passes everything; INCLUDE requires the
// lowercased, dot-free extension to be listed; EXCLUDE requires it to be
// absent. An extensionless name fails INCLUDE and passes EXCLUDE.
func (f ExtensionFilter) Passes(name string) bool {
	if f.Mode == ExtNone {
		return true
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))

	in := false

	for _, s := range f.Suffixes {
		if s == ext {
			in = true

			break
		}
	}

	switch f.Mode {
	case ExtInclude:
		return ext != "" && in
	case ExtExclude:
		return !in
	default:
		return true
	}
}

// SizeFilter bounds a file's byte size; either bound may be absent (nil).
type SizeFilter struct {
	MinBytes *int64 `json:"min_bytes,omitempty"`
	MaxBytes *int64 `json:"max_bytes,omitempty"`
}

// TimeBase selects the reference instant a delete record's maturation delay
// is added to.
type TimeBase string

const (
	TimeBaseSyncComplete TimeBase = "SYNC_COMPLETE"
	TimeBaseFileCreate   TimeBase = "FILE_CREATE"
)

// DeletionPolicy configures the deferred-deletion subsystem for a sync task.
type DeletionPolicy struct {
	Enabled              bool     `json:"enabled"`
	DelayDays            int      `json:"delay_days"`
	TimeBase             TimeBase `json:"time_base"`
	DeleteParent         bool     `json:"delete_parent"`
	ParentLevels         int      `json:"parent_levels"`
	ForceDeleteNonEmpty  bool     `json:"force_delete_non_empty"`
}

// SyncRules are the per-file decision flags evaluated in §4.2 step 4.
type SyncRules struct {
	SyncIfAbsent      bool `json:"sync_if_absent"`
	SyncIfSizeDiffers bool `json:"sync_if_size_differs"`
	SyncIfSourceNewer bool `json:"sync_if_source_newer"`
	OverwriteAll      bool `json:"overwrite_all"`
}

// SyncTask is the sync-variant task record (§3 Task (sync variant)).
type SyncTask struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Source     string    `json:"source"`
	Target     string    `json:"target"`
	Schedule   Schedule  `json:"schedule"`
	Enabled    bool      `json:"enabled"`
	Status     Status    `json:"status"`
	LastRun    *time.Time `json:"last_run,omitempty"`

	Rules          SyncRules       `json:"rules"`
	Workers        int             `json:"workers"`
	SlowStorage    bool            `json:"slow_storage"`
	SizeFilter     SizeFilter      `json:"size_filter"`
	ExtFilter      ExtensionFilter `json:"ext_filter"`
	Deletion       DeletionPolicy  `json:"deletion"`
	RetryCount     int             `json:"retry_count"`
}

// EffectiveWorkers clamps Workers to [1,2] when SlowStorage is set, and to a
// floor of 1 otherwise (§3, §8.2 boundary: slow storage clamps to 2).
func (t *SyncTask) EffectiveWorkers() int {
	w := t.Workers
	if w < 1 {
		w = 1
	}

	if t.SlowStorage && w > 2 {
		w = 2
	}

	return w
}

// StubContentMode selects what a stub file's single line of content holds.
type StubContentMode string

const (
	StubContentDownloadURL StubContentMode = "REMOTE_DOWNLOAD_URL"
	StubContentRawURL      StubContentMode = "REMOTE_RAW_URL"
	StubContentPath        StubContentMode = "REMOTE_PATH"
)

// RemoteCredentials describes how to authenticate to the abstract remote
// host capability (§6.3).
type RemoteCredentials struct {
	URL       string `json:"url"`
	User      string `json:"user,omitempty"`
	Password  string `json:"password,omitempty"`
	Token     string `json:"token,omitempty"`
	PublicURL string `json:"public_url,omitempty"`
}

// StubFlags are the boolean sidecar/echo behaviors for a stub task.
type StubFlags struct {
	Flatten                bool `json:"flatten"`
	CopySubtitles           bool `json:"copy_subtitles"`
	CopyImages              bool `json:"copy_images"`
	CopyNfo                 bool `json:"copy_nfo"`
	Overwrite               bool `json:"overwrite"`
	SyncServerDeletes       bool `json:"sync_server_deletes"`
	SyncLocalDeletesToServer bool `json:"sync_local_deletes_to_server"`
}

// SmartProtection configures the orphan-deletion confirmation gate (§4.5).
type SmartProtection struct {
	Threshold   int `json:"threshold"`
	GraceScans  int `json:"grace_scans"`
}

// StubTask is the stub-variant task record (§3 Task (stub variant)).
type StubTask struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Source   string    `json:"source"` // remote root
	Target   string    `json:"target"` // local root
	Schedule Schedule  `json:"schedule"`
	Enabled  bool      `json:"enabled"`
	Status   Status    `json:"status"`
	LastRun  *time.Time `json:"last_run,omitempty"`

	Credentials RemoteCredentials `json:"credentials"`
	ContentMode StubContentMode   `json:"content_mode"`
	Flags       StubFlags         `json:"flags"`
	ListWorkers int               `json:"list_workers"`
	CopyWorkers int               `json:"copy_workers"`
	ExtFilter   ExtensionFilter   `json:"ext_filter"`
	Protection  SmartProtection   `json:"protection"`
}

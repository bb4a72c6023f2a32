package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ParseLenientBool accepts the legacy spellings the original Python config
// files used: native JSON booleans, "true"/"false"/"1"/"0"/"yes"/"no"
// strings (any case), and numeric 0/1. Absent (nil) defaults to false.
func ParseLenientBool(v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case float64:
		return t != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "false", "0", "no":
			return false, nil
		case "true", "1", "yes":
			return true, nil
		}

		return false, fmt.Errorf("model: invalid boolean string %q", t)
	default:
		return false, fmt.Errorf("model: invalid boolean value %#v", v)
	}
}

// ParseLenientInt accepts both JSON numbers and numeric strings, which the
// legacy format emitted inconsistently depending on which code path wrote
// the file.
func ParseLenientInt(v any, def int) (int, error) {
	switch t := v.(type) {
	case nil:
		return def, nil
	case float64:
		return int(t), nil
	case string:
		if t == "" {
			return def, nil
		}

		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("model: invalid integer string %q: %w", t, err)
		}

		return n, nil
	default:
		return 0, fmt.Errorf("model: invalid integer value %#v", v)
	}
}

// ParseLenientEnum uppercases a string enum spelling and validates it is one
// of allowed. Accepts integer indices into allowed as a fallback, matching
// the legacy format's occasional use of ordinal enum values.
func ParseLenientEnum(v any, allowed []string, def string) (string, error) {
	switch t := v.(type) {
	case nil:
		return def, nil
	case string:
		if t == "" {
			return def, nil
		}

		up := strings.ToUpper(strings.TrimSpace(t))
		for _, a := range allowed {
			if a == up {
				return a, nil
			}
		}

		return "", fmt.Errorf("model: unrecognized enum value %q (want one of %v)", t, allowed)
	case float64:
		idx := int(t)
		if idx < 0 || idx >= len(allowed) {
			return "", fmt.Errorf("model: enum ordinal %d out of range (want 0-%d)", idx, len(allowed)-1)
		}

		return allowed[idx], nil
	default:
		return "", fmt.Errorf("model: invalid enum value %#v", v)
	}
}

// ParseLenientUUID accepts a UUID string, or generates a fresh one when the
// field is absent — matching the control plane's create-task flow where the
// caller omits ID.
func ParseLenientUUID(v any) (uuid.UUID, error) {
	s, _ := v.(string)
	if s == "" {
		return uuid.New(), nil
	}

	return uuid.Parse(s)
}

// LenientSyncTask parses a raw JSON object (as produced by an older writer,
// or a hand-edited file) into a strict SyncTask. Unknown fields are ignored;
// missing fields default. This is the single boundary function described in
// the design notes; the scheduler's file loaders (loadSyncFile in
// internal/scheduler/persist.go) call it directly for every task record,
// with no strict unmarshal attempted first.
func LenientSyncTask(raw map[string]any) (SyncTask, error) {
	var t SyncTask

	id, err := ParseLenientUUID(raw["id"])
	if err != nil {
		return t, fmt.Errorf("model: task id: %w", err)
	}

	t.ID = id
	t.Name, _ = raw["name"].(string)
	t.Source, _ = raw["source"].(string)
	t.Target, _ = raw["target"].(string)

	if t.Enabled, err = ParseLenientBool(raw["enabled"]); err != nil {
		return t, err
	}

	statusStr, err := ParseLenientEnum(raw["status"], []string{
		string(StatusIdle), string(StatusQueued), string(StatusRunning), string(StatusError),
	}, string(StatusIdle))
	if err != nil {
		return t, err
	}

	t.Status = Status(statusStr)

	if t.Schedule, err = parseLenientSchedule(raw["schedule"]); err != nil {
		return t, err
	}

	if rules, ok := raw["rules"].(map[string]any); ok {
		if t.Rules.SyncIfAbsent, err = ParseLenientBool(rules["sync_if_absent"]); err != nil {
			return t, err
		}

		if t.Rules.SyncIfSizeDiffers, err = ParseLenientBool(rules["sync_if_size_differs"]); err != nil {
			return t, err
		}

		if t.Rules.SyncIfSourceNewer, err = ParseLenientBool(rules["sync_if_source_newer"]); err != nil {
			return t, err
		}

		if t.Rules.OverwriteAll, err = ParseLenientBool(rules["overwrite_all"]); err != nil {
			return t, err
		}
	}

	if t.Workers, err = ParseLenientInt(raw["workers"], 1); err != nil {
		return t, err
	}

	if t.SlowStorage, err = ParseLenientBool(raw["slow_storage"]); err != nil {
		return t, err
	}

	if t.RetryCount, err = ParseLenientInt(raw["retry_count"], 2); err != nil {
		return t, err
	}

	if t.SizeFilter, err = parseLenientSizeFilter(raw["size_filter"]); err != nil {
		return t, err
	}

	if t.ExtFilter, err = parseLenientExtFilter(raw["ext_filter"]); err != nil {
		return t, err
	}

	if t.Deletion, err = parseLenientDeletion(raw["deletion"]); err != nil {
		return t, err
	}

	return t, nil
}

func parseLenientSchedule(v any) (Schedule, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Schedule{Type: ScheduleInterval, IntervalSeconds: MinIntervalSync}, nil
	}

	typ, err := ParseLenientEnum(m["schedule_type"], []string{string(ScheduleInterval), string(ScheduleCron)}, string(ScheduleInterval))
	if err != nil {
		return Schedule{}, err
	}

	sched := Schedule{Type: ScheduleType(typ)}

	if sched.IntervalSeconds, err = ParseLenientInt(m["interval_seconds"], MinIntervalSync); err != nil {
		return Schedule{}, err
	}

	sched.CronExpr, _ = m["cron_expr"].(string)

	return sched, nil
}

func parseLenientSizeFilter(v any) (SizeFilter, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return SizeFilter{}, nil
	}

	var f SizeFilter

	if raw, present := m["min_bytes"]; present && raw != nil {
		n, err := parseLenientSizeField(raw)
		if err != nil {
			return f, err
		}

		f.MinBytes = &n
	}

	if raw, present := m["max_bytes"]; present && raw != nil {
		n, err := parseLenientSizeField(raw)
		if err != nil {
			return f, err
		}

		f.MaxBytes = &n
	}

	return f, nil
}

func parseLenientSizeField(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return ParseSize(t)
	default:
		return 0, fmt.Errorf("model: invalid size value %#v", v)
	}
}

func parseLenientExtFilter(v any) (ExtensionFilter, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return ExtensionFilter{Mode: ExtNone}, nil
	}

	mode, err := ParseLenientEnum(m["mode"], []string{string(ExtNone), string(ExtInclude), string(ExtExclude)}, string(ExtNone))
	if err != nil {
		return ExtensionFilter{}, err
	}

	f := ExtensionFilter{Mode: ExtensionFilterMode(mode)}

	if list, ok := m["suffixes"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				f.Suffixes = append(f.Suffixes, strings.ToLower(strings.TrimPrefix(s, ".")))
			}
		}
	}

	return f, nil
}

func parseLenientDeletion(v any) (DeletionPolicy, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return DeletionPolicy{TimeBase: TimeBaseSyncComplete}, nil
	}

	var (
		d   DeletionPolicy
		err error
	)

	if d.Enabled, err = ParseLenientBool(m["enabled"]); err != nil {
		return d, err
	}

	if d.DelayDays, err = ParseLenientInt(m["delay_days"], 0); err != nil {
		return d, err
	}

	if d.DelayDays < 0 {
		d.DelayDays = 0 // negatives clamp to zero (§4.4 Enqueue)
	}

	base, err := ParseLenientEnum(m["time_base"], []string{string(TimeBaseSyncComplete), string(TimeBaseFileCreate)}, string(TimeBaseSyncComplete))
	if err != nil {
		return d, err
	}

	d.TimeBase = TimeBase(base)

	if d.DeleteParent, err = ParseLenientBool(m["delete_parent"]); err != nil {
		return d, err
	}

	if d.ParentLevels, err = ParseLenientInt(m["parent_levels"], 0); err != nil {
		return d, err
	}

	if d.ForceDeleteNonEmpty, err = ParseLenientBool(m["force_delete_non_empty"]); err != nil {
		return d, err
	}

	return d, nil
}

// LenientStubTask parses a raw JSON object into a strict StubTask, following
// the same tolerant-boundary contract as LenientSyncTask.
func LenientStubTask(raw map[string]any) (StubTask, error) {
	var t StubTask

	id, err := ParseLenientUUID(raw["id"])
	if err != nil {
		return t, fmt.Errorf("model: task id: %w", err)
	}

	t.ID = id
	t.Name, _ = raw["name"].(string)
	t.Source, _ = raw["source"].(string)
	t.Target, _ = raw["target"].(string)

	if t.Enabled, err = ParseLenientBool(raw["enabled"]); err != nil {
		return t, err
	}

	statusStr, err := ParseLenientEnum(raw["status"], []string{
		string(StatusIdle), string(StatusQueued), string(StatusRunning), string(StatusError),
	}, string(StatusIdle))
	if err != nil {
		return t, err
	}

	t.Status = Status(statusStr)

	if t.Schedule, err = parseLenientScheduleStub(raw["schedule"]); err != nil {
		return t, err
	}

	if creds, ok := raw["credentials"].(map[string]any); ok {
		t.Credentials.URL, _ = creds["url"].(string)
		t.Credentials.User, _ = creds["user"].(string)
		t.Credentials.Password, _ = creds["password"].(string)
		t.Credentials.Token, _ = creds["token"].(string)
		t.Credentials.PublicURL, _ = creds["public_url"].(string)
	}

	mode, err := ParseLenientEnum(raw["content_mode"], []string{
		string(StubContentDownloadURL), string(StubContentRawURL), string(StubContentPath),
	}, string(StubContentDownloadURL))
	if err != nil {
		return t, err
	}

	t.ContentMode = StubContentMode(mode)

	if flags, ok := raw["flags"].(map[string]any); ok {
		if t.Flags.Flatten, err = ParseLenientBool(flags["flatten"]); err != nil {
			return t, err
		}

		if t.Flags.CopySubtitles, err = ParseLenientBool(flags["copy_subtitles"]); err != nil {
			return t, err
		}

		if t.Flags.CopyImages, err = ParseLenientBool(flags["copy_images"]); err != nil {
			return t, err
		}

		if t.Flags.CopyNfo, err = ParseLenientBool(flags["copy_nfo"]); err != nil {
			return t, err
		}

		if t.Flags.Overwrite, err = ParseLenientBool(flags["overwrite"]); err != nil {
			return t, err
		}

		if t.Flags.SyncServerDeletes, err = ParseLenientBool(flags["sync_server_deletes"]); err != nil {
			return t, err
		}

		if t.Flags.SyncLocalDeletesToServer, err = ParseLenientBool(flags["sync_local_deletes_to_server"]); err != nil {
			return t, err
		}
	}

	if t.ListWorkers, err = ParseLenientInt(raw["list_workers"], 4); err != nil {
		return t, err
	}

	if t.CopyWorkers, err = ParseLenientInt(raw["copy_workers"], 4); err != nil {
		return t, err
	}

	if t.ExtFilter, err = parseLenientExtFilter(raw["ext_filter"]); err != nil {
		return t, err
	}

	if protection, ok := raw["protection"].(map[string]any); ok {
		if t.Protection.Threshold, err = ParseLenientInt(protection["threshold"], 100); err != nil {
			return t, err
		}

		if t.Protection.GraceScans, err = ParseLenientInt(protection["grace_scans"], 3); err != nil {
			return t, err
		}
	} else {
		t.Protection = SmartProtection{Threshold: 100, GraceScans: 3}
	}

	return t, nil
}

func parseLenientScheduleStub(v any) (Schedule, error) {
	sched, err := parseLenientSchedule(v)
	if err != nil {
		return sched, err
	}

	if sched.Type == ScheduleInterval && sched.IntervalSeconds < MinIntervalStub {
		sched.IntervalSeconds = MinIntervalStub
	}

	return sched, nil
}

// DecodeRawObject unmarshals JSON bytes into a map[string]any, the
// intermediate representation the lenient parsers above consume.
func DecodeRawObject(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("model: decoding raw task object: %w", err)
	}

	return m, nil
}

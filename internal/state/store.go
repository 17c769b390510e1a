package state

import (
	"log/slog"
	"sync"
)

// Store owns the shared [Snapshot]. All three operations (Get, Update,
// Replace) are serialized by a single mutex, so every read observes a
// fully applied prefix of writes and no caller ever sees a half-merged
// snapshot. There is no I/O inside the store; nothing here blocks
// longer than the copy or merge cost.
//
// Construct one Store at process start and pass it by reference to
// every component that needs it.
type Store struct {
	mu       sync.Mutex
	snapshot Snapshot
	logger   *slog.Logger

	// maxRecent bounds the Recent task history; oldest entries are
	// dropped first. Tunable, not a contract.
	maxRecent int
}

// DefaultMaxRecentTasks is the default bound on the recent-task history.
const DefaultMaxRecentTasks = 20

// NewStore creates a Store with an empty snapshot.
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		logger:    logger,
		maxRecent: DefaultMaxRecentTasks,
		snapshot: Snapshot{
			Runtime: RuntimeInfo{BackendRunning: true},
		},
	}
}

// SetMaxRecentTasks overrides the recent-task retention bound.
// Values below 1 are ignored.
func (s *Store) SetMaxRecentTasks(n int) {
	if n < 1 {
		return
	}
	s.mu.Lock()
	s.maxRecent = n
	s.mu.Unlock()
}

// Get returns a deep, independent copy of the current snapshot.
// Callers may read (or even mutate) the returned value freely; the
// store's own state is unaffected.
func (s *Store) Get() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.clone()
}

// Replace swaps the entire snapshot atomically.
func (s *Store) Replace(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap.clone()
}

// Update applies a partial update, merging field-wise into each named
// sub-record. Fields left nil in a patch are untouched, so a watcher
// updating runtime.active_model never resets runtime.persona. Update
// cannot fail; it only ever merges in-memory values.
func (s *Store) Update(p Partial) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.System != nil {
		p.System.apply(&s.snapshot.System)
	}
	if p.Runtime != nil {
		p.Runtime.apply(&s.snapshot.Runtime)
	}
	if p.Device != nil {
		p.Device.apply(&s.snapshot.Device)
	}
	if p.Notifications != nil {
		p.Notifications.apply(&s.snapshot.Notifications)
	}
}

// Partial names the sub-records to merge. Nil sub-patches are skipped.
// The task board is not patchable this way; task mutations go through
// the dedicated task operations so lifecycle invariants hold.
type Partial struct {
	System        *SystemPatch
	Runtime       *RuntimePatch
	Device        *DevicePatch
	Notifications *NotificationsPatch
}

// SystemPatch holds optional replacement values for [SystemMetrics].
type SystemPatch struct {
	CPUUsage        *float64
	RAMUsage        *float64
	DiskFreeGB      *float64
	DiskUsedGB      *float64
	DiskTotalGB     *float64
	NetworkStatus   *string
	NetworkSentMBps *float64
	NetworkRecvMBps *float64
	UptimeSeconds   *int64
	BatteryPercent  *float64
	BatteryPlugged  *bool
	CPUTempC        *float64
	RunningApps     []string
}

func (p *SystemPatch) apply(m *SystemMetrics) {
	setFloat(&m.CPUUsage, p.CPUUsage)
	setFloat(&m.RAMUsage, p.RAMUsage)
	setFloat(&m.DiskFreeGB, p.DiskFreeGB)
	setFloat(&m.DiskUsedGB, p.DiskUsedGB)
	setFloat(&m.DiskTotalGB, p.DiskTotalGB)
	setString(&m.NetworkStatus, p.NetworkStatus)
	setFloat(&m.NetworkSentMBps, p.NetworkSentMBps)
	setFloat(&m.NetworkRecvMBps, p.NetworkRecvMBps)
	if p.UptimeSeconds != nil {
		m.UptimeSeconds = *p.UptimeSeconds
	}
	setFloat(&m.BatteryPercent, p.BatteryPercent)
	if p.BatteryPlugged != nil {
		v := *p.BatteryPlugged
		m.BatteryPlugged = &v
	}
	setFloat(&m.CPUTempC, p.CPUTempC)
	if p.RunningApps != nil {
		m.RunningApps = cloneSlice(p.RunningApps)
	}
}

// RuntimePatch holds optional replacement values for [RuntimeInfo].
type RuntimePatch struct {
	BackendRunning  *bool
	OllamaRunning   *bool
	PlexRunning     *bool
	ActiveModel     *string
	AvailableModels []string
	Persona         *string
	PowersLoaded    []string
	TokensToday     *int64
}

func (p *RuntimePatch) apply(r *RuntimeInfo) {
	setBool(&r.BackendRunning, p.BackendRunning)
	setBool(&r.OllamaRunning, p.OllamaRunning)
	setBool(&r.PlexRunning, p.PlexRunning)
	setString(&r.ActiveModel, p.ActiveModel)
	if p.AvailableModels != nil {
		r.AvailableModels = cloneSlice(p.AvailableModels)
	}
	setString(&r.Persona, p.Persona)
	if p.PowersLoaded != nil {
		r.PowersLoaded = cloneSlice(p.PowersLoaded)
	}
	if p.TokensToday != nil {
		r.TokensToday = *p.TokensToday
	}
}

// DevicePatch holds optional replacement values for [DeviceInfo].
type DevicePatch struct {
	FrontmostApp *string
	Clipboard    *string
	DiscMounted  *bool
	DiscPath     *string
	RecentFiles  []string
}

func (p *DevicePatch) apply(d *DeviceInfo) {
	setString(&d.FrontmostApp, p.FrontmostApp)
	setString(&d.Clipboard, p.Clipboard)
	setBool(&d.DiscMounted, p.DiscMounted)
	setString(&d.DiscPath, p.DiscPath)
	if p.RecentFiles != nil {
		d.RecentFiles = cloneSlice(p.RecentFiles)
	}
}

// NotificationsPatch holds optional replacement values for [Notifications].
type NotificationsPatch struct {
	DiscInserted *bool
	DiscPath     *string
	Timestamp    *string
}

func (p *NotificationsPatch) apply(n *Notifications) {
	setBool(&n.DiscInserted, p.DiscInserted)
	setString(&n.DiscPath, p.DiscPath)
	setString(&n.Timestamp, p.Timestamp)
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

// Pointer helpers for building patches inline.

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Str returns a pointer to v.
func Str(v string) *string { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Package state provides the shared snapshot of system, runtime, device,
// and task state that the router, watchers, and API handlers all consult.
// All mutation goes through the [Store]; nothing else holds a mutable
// reference into a snapshot.
package state

import "time"

// SystemMetrics holds host resource gauges. Watchers refresh these
// periodically; the router core only reads them.
type SystemMetrics struct {
	CPUUsage        float64  `json:"cpu_usage"` // 0–1
	RAMUsage        float64  `json:"ram_usage"` // 0–1
	DiskFreeGB      float64  `json:"disk_free_gb"`
	DiskUsedGB      float64  `json:"disk_used_gb"`
	DiskTotalGB     float64  `json:"disk_total_gb"`
	NetworkStatus   string   `json:"network_status"` // connected / offline / unknown
	NetworkSentMBps float64  `json:"network_sent_mb_per_sec"`
	NetworkRecvMBps float64  `json:"network_recv_mb_per_sec"`
	UptimeSeconds   int64    `json:"uptime_seconds"`
	BatteryPercent  float64  `json:"battery_percent,omitempty"`
	BatteryPlugged  *bool    `json:"battery_plugged,omitempty"`
	CPUTempC        float64  `json:"cpu_temp_c,omitempty"`
	RunningApps     []string `json:"running_apps,omitempty"`
}

// RuntimeInfo describes the assistant's own runtime: which model and
// persona are active, which capabilities loaded, and whether the
// services it fronts are alive.
type RuntimeInfo struct {
	BackendRunning  bool     `json:"backend_running"`
	OllamaRunning   bool     `json:"ollama_running"`
	PlexRunning     bool     `json:"plex_running"`
	ActiveModel     string   `json:"active_model,omitempty"`
	AvailableModels []string `json:"available_models,omitempty"`
	Persona         string   `json:"persona,omitempty"`
	PowersLoaded    []string `json:"powers_loaded,omitempty"`
	TokensToday     int64    `json:"tokens_today"`
}

// DeviceInfo describes the host device's user-facing surface. The
// validator consults DiscMounted before allowing a rip.
type DeviceInfo struct {
	FrontmostApp string   `json:"frontmost_app,omitempty"`
	Clipboard    string   `json:"clipboard,omitempty"`
	DiscMounted  bool     `json:"disc_mounted"`
	DiscPath     string   `json:"disc_path,omitempty"`
	RecentFiles  []string `json:"recent_files,omitempty"`
}

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

// Task lifecycle states. A task only ever moves running→done or
// running→error; restart creates a fresh Task reusing the old id.
const (
	StatusPending TaskStatus = "pending"
	StatusRunning TaskStatus = "running"
	StatusDone    TaskStatus = "done"
	StatusError   TaskStatus = "error"
)

// Task records one tool invocation's lifecycle and progress.
type Task struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"` // tool name, e.g. "rip_disc"
	Status     TaskStatus `json:"status"`
	Progress   float64    `json:"progress"` // 0–1, monotonic while running
	Message    string     `json:"message,omitempty"`
	StartedAt  time.Time  `json:"started_at,omitzero"`
	FinishedAt time.Time  `json:"finished_at,omitzero"`
}

// TaskBoard tracks in-flight and recently finished tasks. Finished
// tasks move from Active to Recent; Recent is bounded (oldest dropped).
type TaskBoard struct {
	Active []Task `json:"active"`
	Recent []Task `json:"recent"`
}

// Notifications carries transient flags cleared by explicit
// acknowledgment from the frontend.
type Notifications struct {
	DiscInserted bool   `json:"disc_inserted"`
	DiscPath     string `json:"disc_path,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
}

// Snapshot is the full shared state aggregate. Values returned by
// [Store.Get] are deep copies; callers may read them freely without
// racing a concurrent writer.
type Snapshot struct {
	System        SystemMetrics `json:"system"`
	Runtime       RuntimeInfo   `json:"runtime"`
	Device        DeviceInfo    `json:"device"`
	Tasks         TaskBoard     `json:"tasks"`
	Notifications Notifications `json:"notifications"`
}

// clone returns a deep copy of the snapshot. Slices are the only
// reference types in the aggregate, so copying them suffices.
func (s Snapshot) clone() Snapshot {
	out := s
	out.System.RunningApps = cloneSlice(s.System.RunningApps)
	out.Runtime.AvailableModels = cloneSlice(s.Runtime.AvailableModels)
	out.Runtime.PowersLoaded = cloneSlice(s.Runtime.PowersLoaded)
	out.Device.RecentFiles = cloneSlice(s.Device.RecentFiles)
	out.Tasks.Active = cloneTasks(s.Tasks.Active)
	out.Tasks.Recent = cloneTasks(s.Tasks.Recent)
	return out
}

func cloneSlice(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneTasks(in []Task) []Task {
	if in == nil {
		return nil
	}
	out := make([]Task, len(in))
	copy(out, in)
	return out
}

package state

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func runningTask(id, typ string) Task {
	return Task{ID: id, Type: typ, Status: StatusRunning, StartedAt: time.Now().UTC()}
}

func TestCompleteTaskRetiresToRecent(t *testing.T) {
	s := newTestStore()
	s.InsertTask(runningTask("t1", "scan_plex"))

	if !s.CompleteTask("t1") {
		t.Fatal("CompleteTask returned false for a running task")
	}

	board := s.Get().Tasks
	if len(board.Active) != 0 {
		t.Errorf("active = %d tasks, want 0", len(board.Active))
	}
	if len(board.Recent) != 1 {
		t.Fatalf("recent = %d tasks, want 1", len(board.Recent))
	}
	got := board.Recent[0]
	if got.Status != StatusDone {
		t.Errorf("status = %q, want %q", got.Status, StatusDone)
	}
	if got.Progress != 1.0 {
		t.Errorf("progress = %v, want 1.0", got.Progress)
	}
	if got.FinishedAt.IsZero() {
		t.Error("finished_at not set on completion")
	}
}

func TestFailTaskRecordsMessage(t *testing.T) {
	s := newTestStore()
	s.InsertTask(runningTask("t1", "download"))

	if !s.FailTask("t1", "yt-dlp exited with status 1") {
		t.Fatal("FailTask returned false for a running task")
	}

	got := s.Get().Tasks.Recent[0]
	if got.Status != StatusError {
		t.Errorf("status = %q, want %q", got.Status, StatusError)
	}
	if got.Message != "yt-dlp exited with status 1" {
		t.Errorf("message = %q", got.Message)
	}
}

func TestStatusNeverMovesBackward(t *testing.T) {
	s := newTestStore()
	s.InsertTask(runningTask("t1", "rip_disc"))
	s.CompleteTask("t1")

	// A late failure report must not flip a done task to error,
	// and progress callbacks must not touch it either.
	if s.FailTask("t1", "late error") {
		t.Error("FailTask succeeded on an already-finished task")
	}
	if s.UpdateTaskProgress("t1", 0.5, "late progress") {
		t.Error("UpdateTaskProgress succeeded on a finished task")
	}
	if got := s.Get().Tasks.Recent[0].Status; got != StatusDone {
		t.Errorf("status = %q, want %q", got, StatusDone)
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	s := newTestStore()
	s.InsertTask(runningTask("t1", "rip_disc"))

	s.UpdateTaskProgress("t1", 0.6, "ripping title 1")
	s.UpdateTaskProgress("t1", 0.4, "stale callback")

	if got := s.Get().Tasks.Active[0].Progress; got != 0.6 {
		t.Errorf("progress = %v, want 0.6 (decreases ignored)", got)
	}
}

func TestStopTask(t *testing.T) {
	s := newTestStore()
	s.InsertTask(runningTask("t1", "download"))

	if err := s.StopTask("missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("StopTask(missing) = %v, want ErrTaskNotFound", err)
	}

	if err := s.StopTask("t1"); err != nil {
		t.Fatalf("StopTask: %v", err)
	}
	got := s.Get().Tasks.Recent[0]
	if got.Status != StatusError || got.Message != "Stopped by user" {
		t.Errorf("stopped task = %+v", got)
	}
}

func TestRestartReusesID(t *testing.T) {
	s := newTestStore()
	s.InsertTask(runningTask("t1", "rip_disc"))
	s.FailTask("t1", "disc read error")

	fresh, err := s.RestartTask("t1")
	if err != nil {
		t.Fatalf("RestartTask: %v", err)
	}
	if fresh.ID != "t1" || fresh.Type != "rip_disc" {
		t.Errorf("restarted task = %+v", fresh)
	}
	if fresh.Status != StatusRunning || fresh.Progress != 0 {
		t.Errorf("restarted task not reset: %+v", fresh)
	}

	// The id must be unique across both lists after restart.
	board := s.Get().Tasks
	count := 0
	for _, task := range append(board.Active, board.Recent...) {
		if task.ID == "t1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("found %d tasks with id t1, want 1", count)
	}

	if _, err := s.RestartTask("missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("RestartTask(missing) = %v, want ErrTaskNotFound", err)
	}
}

func TestRecentHistoryIsBounded(t *testing.T) {
	s := newTestStore()
	s.SetMaxRecentTasks(3)

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("t%d", i)
		s.InsertTask(runningTask(id, "scan_plex"))
		s.CompleteTask(id)
	}

	recent := s.Get().Tasks.Recent
	if len(recent) != 3 {
		t.Fatalf("recent = %d tasks, want 3", len(recent))
	}
	// Oldest dropped first: t0 and t1 are gone.
	if recent[0].ID != "t2" || recent[2].ID != "t4" {
		t.Errorf("unexpected retention order: %v, %v, %v", recent[0].ID, recent[1].ID, recent[2].ID)
	}
}

func TestHasRunningTask(t *testing.T) {
	s := newTestStore()
	if s.HasRunningTask() {
		t.Error("empty board reports a running task")
	}
	s.InsertTask(runningTask("t1", "download"))
	if !s.HasRunningTask() {
		t.Error("running task not reported")
	}
	s.CompleteTask("t1")
	if s.HasRunningTask() {
		t.Error("finished task still reported as running")
	}
}

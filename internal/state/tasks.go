package state

import (
	"errors"
	"time"
)

// ErrTaskNotFound is returned by task operations when no task with the
// given id exists on the board.
var ErrTaskNotFound = errors.New("task not found")

// InsertTask adds a task to the active list. The caller is responsible
// for minting a unique id; ids are unique across active and recent at
// any instant.
func (s *Store) InsertTask(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Tasks.Active = append(s.snapshot.Tasks.Active, t)
}

// UpdateTaskProgress records progress reported by a running tool.
// Progress is monotonic while a task is running: a value lower than the
// current one is ignored. Updates to tasks that are not running are
// dropped, so a late progress callback can never resurrect a finished
// task. Returns false if the task is not active.
func (s *Store) UpdateTaskProgress(id string, progress float64, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.snapshot.Tasks.Active {
		t := &s.snapshot.Tasks.Active[i]
		if t.ID != id {
			continue
		}
		if t.Status != StatusRunning {
			return false
		}
		if progress > t.Progress {
			t.Progress = progress
		}
		if message != "" {
			t.Message = message
		}
		return true
	}
	return false
}

// CompleteTask marks an active running task as done (progress 1.0,
// finished now) and retires it to the recent list. A task that is not
// running anymore, stopped by the user for example, is left alone.
func (s *Store) CompleteTask(id string) bool {
	return s.finishTask(id, StatusDone, "")
}

// FailTask marks an active running task as errored with the given
// message and retires it to the recent list.
func (s *Store) FailTask(id, message string) bool {
	return s.finishTask(id, StatusError, message)
}

func (s *Store) finishTask(id string, status TaskStatus, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.snapshot.Tasks.Active {
		t := s.snapshot.Tasks.Active[i]
		if t.ID != id {
			continue
		}
		if t.Status != StatusRunning && t.Status != StatusPending {
			// Already finished; done→running and error→done are illegal.
			return false
		}
		t.Status = status
		t.FinishedAt = time.Now().UTC()
		if status == StatusDone {
			t.Progress = 1.0
		}
		if message != "" {
			t.Message = message
		}
		s.snapshot.Tasks.Active = append(s.snapshot.Tasks.Active[:i], s.snapshot.Tasks.Active[i+1:]...)
		s.retire(t)
		return true
	}
	return false
}

// StopTask marks an active task as errored with a user-visible message.
// The underlying tool process is not killed; this only updates the
// board. The task remains discoverable at the same id in the recent
// list. Returns ErrTaskNotFound if the id is not active.
func (s *Store) StopTask(id string) error {
	if !s.finishTask(id, StatusError, "Stopped by user") {
		return ErrTaskNotFound
	}
	return nil
}

// RestartTask creates a fresh running task reusing the id of an
// existing task (active or recent) and inserts it into the active
// list. The old record is removed from both lists first, preserving
// the id-uniqueness invariant. Returns the new task, or
// ErrTaskNotFound if no task with the id exists.
func (s *Store) RestartTask(id string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *Task
	for i := range s.snapshot.Tasks.Active {
		if s.snapshot.Tasks.Active[i].ID == id {
			found = &s.snapshot.Tasks.Active[i]
			break
		}
	}
	if found == nil {
		for i := range s.snapshot.Tasks.Recent {
			if s.snapshot.Tasks.Recent[i].ID == id {
				found = &s.snapshot.Tasks.Recent[i]
				break
			}
		}
	}
	if found == nil {
		return Task{}, ErrTaskNotFound
	}

	fresh := Task{
		ID:        id,
		Type:      found.Type,
		Status:    StatusRunning,
		Progress:  0,
		StartedAt: time.Now().UTC(),
	}

	s.snapshot.Tasks.Active = removeTask(s.snapshot.Tasks.Active, id)
	s.snapshot.Tasks.Recent = removeTask(s.snapshot.Tasks.Recent, id)
	s.snapshot.Tasks.Active = append(s.snapshot.Tasks.Active, fresh)
	return fresh, nil
}

// HasRunningTask reports whether any task is currently running.
// The classifier includes this bit in its state summary.
func (s *Store) HasRunningTask() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.snapshot.Tasks.Active {
		if t.Status == StatusRunning {
			return true
		}
	}
	return false
}

// retire appends a finished task onto the recent list, dropping the
// oldest entries when the retention bound is exceeded. Callers must
// hold s.mu.
func (s *Store) retire(t Task) {
	s.snapshot.Tasks.Recent = append(s.snapshot.Tasks.Recent, t)
	if over := len(s.snapshot.Tasks.Recent) - s.maxRecent; over > 0 {
		s.snapshot.Tasks.Recent = append([]Task(nil), s.snapshot.Tasks.Recent[over:]...)
	}
}

func removeTask(list []Task, id string) []Task {
	out := list[:0]
	for _, t := range list {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

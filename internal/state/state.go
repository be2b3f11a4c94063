package state

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sokinpui/jsxkit/model"
)

const (
	stateDirName  = ".jsxkit"
	stateFileName = "jobs.journal"
)

// Job statuses as written to the journal.
const (
	StatusDispatched  = "dispatched"
	StatusCompleted   = "completed"
	StatusTimedOut    = "timed-out"
	StatusInterrupted = "interrupted"
	StatusFailed      = "failed"
)

// fieldsPerJob is the number of lines one journal block holds.
const fieldsPerJob = 6

const (
	lockWait       = 5 * time.Second
	lockRetry      = 20 * time.Millisecond
	lockStaleAfter = 30 * time.Second
)

// Job is one dispatched script as recorded in the journal.
type Job struct {
	ID        string
	Timestamp int64
	Status    string
	Script    string
	Input     string
	Output    string
}

// StatusFor maps a completion outcome to its journal status.
func StatusFor(c model.Completion) string {
	switch c {
	case model.Completed:
		return StatusCompleted
	case model.TimedOut:
		return StatusTimedOut
	case model.Interrupted:
		return StatusInterrupted
	default:
		return StatusFailed
	}
}

// Manager handles the lifecycle of the journal file.
type Manager struct {
	journalPath string
	jobs        []Job
	StateDir    string
}

// findGitRoot finds the root of the git repository.
func findGitRoot() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// New creates and loads a journal manager rooted at dir. An empty dir
// selects the git root, falling back to the working directory.
func New(dir string) (*Manager, error) {
	rootDir := dir
	if rootDir == "" {
		var err error
		rootDir, err = findGitRoot()
		if err != nil {
			rootDir, err = os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("could not get current working directory: %w", err)
			}
		}
	}

	stateDir := filepath.Join(rootDir, stateDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: could not create state directory: %v", model.ErrIOFailure, err)
	}
	m := &Manager{
		journalPath: filepath.Join(stateDir, stateFileName),
		StateDir:    stateDir,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.journalPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.jobs = []Job{}
			return nil
		}
		return fmt.Errorf("%w: could not read journal: %v", model.ErrIOFailure, err)
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	m.jobs = []Job{}
	for _, block := range strings.Split(content, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		if len(lines) != fieldsPerJob {
			return fmt.Errorf("invalid journal: expected %d lines per job, got %d", fieldsPerJob, len(lines))
		}
		ts, err := strconv.ParseInt(lines[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid journal: could not parse timestamp from '%s': %w", lines[1], err)
		}
		m.jobs = append(m.jobs, Job{
			ID:        lines[0],
			Timestamp: ts,
			Status:    lines[2],
			Script:    lines[3],
			Input:     lines[4],
			Output:    lines[5],
		})
	}
	return nil
}

func (m *Manager) save() error {
	blocks := make([]string, 0, len(m.jobs))
	for _, job := range m.jobs {
		blocks = append(blocks, strings.Join([]string{
			job.ID,
			strconv.FormatInt(job.Timestamp, 10),
			job.Status,
			job.Script,
			job.Input,
			job.Output,
		}, "\n"))
	}

	content := strings.Join(blocks, "\n\n")
	if content != "" {
		content += "\n"
	}

	// Write beside the journal and rename, so readers never see a partial file.
	tmp, err := os.CreateTemp(m.StateDir, stateFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: could not write journal: %v", model.ErrIOFailure, err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: could not write journal: %v", model.ErrIOFailure, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: could not write journal: %v", model.ErrIOFailure, err)
	}
	if err := os.Rename(tmp.Name(), m.journalPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: could not replace journal: %v", model.ErrIOFailure, err)
	}
	return nil
}

// lock takes the journal lock file, waiting for another invocation to
// release it. A lock older than lockStaleAfter is assumed abandoned.
func (m *Manager) lock() (func(), error) {
	lockPath := m.journalPath + ".lock"
	deadline := time.Now().Add(lockWait)
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			f.Close()
			return func() { os.Remove(lockPath) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: could not lock journal: %v", model.ErrIOFailure, err)
		}
		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > lockStaleAfter {
			os.Remove(lockPath)
			continue
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: journal is locked by another process (%s)", model.ErrIOFailure, lockPath)
		}
		time.Sleep(lockRetry)
	}
}

// update re-reads the journal under the lock, applies fn to the fresh job
// list and writes the result back. Changes made by other invocations since
// this Manager was loaded are kept.
func (m *Manager) update(fn func(jobs []Job) ([]Job, error)) error {
	unlock, err := m.lock()
	if err != nil {
		return err
	}
	defer unlock()

	if err := m.load(); err != nil {
		return err
	}
	jobs, fnErr := fn(m.jobs)
	m.jobs = jobs
	if err := m.save(); err != nil {
		return err
	}
	return fnErr
}

// Record appends a dispatched job built from h. A job with the same ID is
// replaced.
func (m *Manager) Record(h model.Handle, input, output string) (Job, error) {
	ts := h.StartedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	job := Job{
		ID:        h.ID,
		Timestamp: ts.UTC().Unix(),
		Status:    StatusDispatched,
		Script:    h.Script,
		Input:     input,
		Output:    output,
	}
	err := m.update(func(jobs []Job) ([]Job, error) {
		for i := range jobs {
			if jobs[i].ID == job.ID {
				jobs[i] = job
				return jobs, nil
			}
		}
		return append(jobs, job), nil
	})
	return job, err
}

// SetStatus updates the status of the job with the given id.
func (m *Manager) SetStatus(id, status string) error {
	return m.update(func(jobs []Job) ([]Job, error) {
		for i := range jobs {
			if jobs[i].ID == id {
				jobs[i].Status = status
				return jobs, nil
			}
		}
		return jobs, fmt.Errorf("%w: job %s", model.ErrNotFound, id)
	})
}

// Jobs returns a copy of the journal in recorded order.
func (m *Manager) Jobs() []Job {
	out := make([]Job, len(m.jobs))
	copy(out, m.jobs)
	return out
}

// finished reports whether job's script is no longer needed: it completed
// while awaited, or it was dispatched without waiting and its output exists.
func finished(job Job) bool {
	switch job.Status {
	case StatusCompleted:
		return true
	case StatusDispatched:
		if job.Output == "" {
			return false
		}
		_, err := os.Stat(job.Output)
		return err == nil
	default:
		return false
	}
}

// Clean deletes the temporary scripts of finished jobs and drops those
// jobs from the journal. It returns the removed script paths.
func (m *Manager) Clean() ([]string, error) {
	var removed []string
	err := m.update(func(jobs []Job) ([]Job, error) {
		var firstErr error
		kept := make([]Job, 0, len(jobs))
		for _, job := range jobs {
			if !finished(job) {
				kept = append(kept, job)
				continue
			}
			if err := os.Remove(job.Script); err != nil && !errors.Is(err, os.ErrNotExist) {
				kept = append(kept, job)
				if firstErr == nil {
					firstErr = fmt.Errorf("%w: could not remove %s: %v", model.ErrIOFailure, job.Script, err)
				}
				continue
			}
			removed = append(removed, job.Script)
		}
		return kept, firstErr
	})
	return removed, err
}

// Package state holds the node-wide job state that the scheduler and the
// execution server both mutate: the worker's active-jobs ledger, the
// submitter's index counter, and the set of job IDs already finished.
//
// All access goes through Store.Transact, which serialises callers and
// persists the result before returning.
package state

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ygrid/ygrid/job"
	"github.com/ygrid/ygrid/os/temp"
)

// MaxIndex is the last index issued before the counter wraps back to 1.
const MaxIndex = 0xFFFFFFFF

// Admission is a ledger entry for a job a worker has accepted.
type Admission struct {
	ID     job.ID    `json:"id"`
	Grid   string    `json:"grid,omitempty"`
	Opened time.Time `json:"opened"`
}

// State is the persisted document.
type State struct {
	// Index is the last job index handed out by this node.
	Index uint32 `json:"index,omitempty"`

	// Active is the worker's ledger, in admission order.
	Active []Admission `json:"active,omitempty"`

	// Finished holds every job this node, as submitter, has finished.
	Finished map[job.ID]time.Time `json:"finished,omitempty"`
}

// NextIndex advances and returns the index counter. 0 is never issued.
func (s *State) NextIndex() uint32 {
	if s.Index >= MaxIndex {
		s.Index = 1
	} else {
		s.Index++
	}
	return s.Index
}

func (s *State) IsActive(id job.ID) bool {
	for _, a := range s.Active {
		if a.ID == id {
			return true
		}
	}
	return false
}

func (s *State) Admission(id job.ID) (Admission, bool) {
	for _, a := range s.Active {
		if a.ID == id {
			return a, true
		}
	}
	return Admission{}, false
}

// SetGrid records the grid of an admitted job once its record has arrived.
func (s *State) SetGrid(id job.ID, grid string) {
	for i := range s.Active {
		if s.Active[i].ID == id {
			s.Active[i].Grid = grid
		}
	}
}

// Admit adds id to the ledger unless it is present or the ledger already holds capacity jobs.
func (s *State) Admit(a Admission, capacity int) bool {
	if s.IsActive(a.ID) || len(s.Active) >= capacity {
		return false
	}
	s.Active = append(s.Active, a)
	return true
}

// Release removes id from the ledger, returning whether it was there.
func (s *State) Release(id job.ID) bool {
	for i, a := range s.Active {
		if a.ID == id {
			s.Active = append(s.Active[:i], s.Active[i+1:]...)
			return true
		}
	}
	return false
}

// MarkFinished records id as finished, returning false if it already was.
func (s *State) MarkFinished(id job.ID, now time.Time) bool {
	if _, ok := s.Finished[id]; ok {
		return false
	}
	if s.Finished == nil {
		s.Finished = make(map[job.ID]time.Time)
	}
	s.Finished[id] = now
	return true
}

func (s *State) copy() State {
	c := State{Index: s.Index}
	c.Active = append([]Admission(nil), s.Active...)
	if s.Finished != nil {
		c.Finished = make(map[job.ID]time.Time, len(s.Finished))
		for k, v := range s.Finished {
			c.Finished[k] = v
		}
	}
	return c
}

// Store is a State guarded by a mutex and mirrored to a file.
type Store struct {
	mu    sync.Mutex
	path  string
	state State
}

// Open loads the store at path, starting empty if it doesn't exist.
// An empty path gives an in-memory store.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "reading state %v", path)
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		return nil, errors.Wrapf(err, "parsing state %v", path)
	}
	return s, nil
}

// Transact runs fn with exclusive access to the state. If fn returns nil the
// modified state is persisted; otherwise every change fn made is discarded.
func (s *Store) Transact(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.copy()
	if err := fn(&working); err != nil {
		return err
	}
	if err := s.save(&working); err != nil {
		return err
	}
	s.state = working
	return nil
}

// View runs fn against a snapshot of the state.
func (s *Store) View(fn func(State)) {
	s.mu.Lock()
	snapshot := s.state.copy()
	s.mu.Unlock()
	fn(snapshot)
}

// Reset discards everything but the index counter, so a restarted node never
// reissues an index that might still be in flight elsewhere.
func (s *Store) Reset() error {
	return s.Transact(func(st *State) error {
		if len(st.Active) > 0 {
			log.Infof("Discarding %d stale active jobs", len(st.Active))
		}
		*st = State{Index: st.Index}
		return nil
	})
}

func (s *Store) save(st *State) error {
	if s.path == "" {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return errors.Wrapf(temp.WriteFile(s.path, data, 0644), "writing state %v", s.path)
}

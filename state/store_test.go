package state

import (
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/ygrid/ygrid/job"
)

func makeStore(t *testing.T) (*Store, string) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "state.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s, path
}

func testID(i uint32) job.ID {
	return job.EncodeID(i, net.ParseIP("10.0.0.1"))
}

func TestNextIndexWraps(t *testing.T) {
	st := State{}
	assert.Equal(t, uint32(1), st.NextIndex())
	assert.Equal(t, uint32(2), st.NextIndex())

	st.Index = MaxIndex - 1
	assert.Equal(t, uint32(MaxIndex), st.NextIndex())
	assert.Equal(t, uint32(1), st.NextIndex())
}

func TestTransactPersists(t *testing.T) {
	s, path := makeStore(t)
	err := s.Transact(func(st *State) error {
		st.NextIndex()
		st.Admit(Admission{ID: testID(1)}, 2)
		st.MarkFinished(testID(7), time.Now())
		return nil
	})
	if err != nil {
		t.Fatalf("Transact failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	reopened.View(func(st State) {
		assert.Equal(t, uint32(1), st.Index)
		assert.True(t, st.IsActive(testID(1)))
		assert.Contains(t, st.Finished, testID(7))
	})
}

func TestTransactRollsBack(t *testing.T) {
	s, _ := makeStore(t)
	err := s.Transact(func(st *State) error {
		st.Admit(Admission{ID: testID(1)}, 2)
		return errors.New("nope")
	})
	if err == nil {
		t.Fatalf("Expected transaction error")
	}
	s.View(func(st State) {
		if len(st.Active) != 0 {
			t.Fatalf("Expected rolled back ledger, got %v", st.Active)
		}
	})
}

func TestResetKeepsIndex(t *testing.T) {
	s, _ := makeStore(t)
	s.Transact(func(st *State) error {
		st.Index = 41
		st.Admit(Admission{ID: testID(1)}, 1)
		st.MarkFinished(testID(2), time.Now())
		return nil
	})
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	s.View(func(st State) {
		assert.Equal(t, State{Index: 41}, st)
	})
}

func TestAdmitCapacity(t *testing.T) {
	st := State{}
	assert.True(t, st.Admit(Admission{ID: testID(1)}, 1))
	assert.False(t, st.Admit(Admission{ID: testID(2)}, 1))
	assert.False(t, st.Admit(Admission{ID: testID(1)}, 5), "duplicate admission")
	assert.True(t, st.Release(testID(1)))
	assert.False(t, st.Release(testID(1)))
	assert.True(t, st.Admit(Admission{ID: testID(2)}, 1))
}

func TestMarkFinishedOnce(t *testing.T) {
	st := State{}
	assert.True(t, st.MarkFinished(testID(1), time.Now()))
	assert.False(t, st.MarkFinished(testID(1), time.Now()))
}

// Concurrent admissions against a ledger of capacity N: exactly N win.
func TestConcurrentAdmission(t *testing.T) {
	s, _ := makeStore(t)
	const capacity, callers = 4, 32

	var wg sync.WaitGroup
	results := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var admitted bool
			s.Transact(func(st *State) error {
				admitted = st.Admit(Admission{ID: testID(uint32(i + 1))}, capacity)
				return nil
			})
			results <- admitted
		}(i)
	}
	wg.Wait()
	close(results)

	accepted := 0
	for ok := range results {
		if ok {
			accepted++
		}
	}
	if accepted != capacity {
		t.Fatalf("Expected %d admissions, got %d", capacity, accepted)
	}
	s.View(func(st State) {
		assert.Len(t, st.Active, capacity, fmt.Sprintf("%v", st.Active))
	})
}

func TestSetGrid(t *testing.T) {
	var st State
	st.Admit(Admission{ID: testID(1)}, 2)
	st.SetGrid(testID(1), "render")
	st.SetGrid(testID(2), "other")
	a, ok := st.Admission(testID(1))
	assert.True(t, ok)
	assert.Equal(t, "render", a.Grid)
	assert.Len(t, st.Active, 1)
}

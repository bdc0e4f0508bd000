package job

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Progress is how far along a worker is with a job: Active, Done, or a percentage.
type Progress string

const (
	Active Progress = "A"
	Done   Progress = "D"
)

// Percent returns the progress for a task reporting pct percent complete.
func Percent(pct int) Progress {
	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}
	return Progress(strconv.Itoa(pct))
}

func (p Progress) IsDone() bool {
	return p == Done
}

// Percent returns the reported percentage, if p is one.
func (p Progress) Percent() (int, bool) {
	pct, err := strconv.Atoi(string(p))
	if err != nil {
		return 0, false
	}
	return pct, true
}

func (p Progress) Valid() bool {
	if p == Active || p == Done {
		return true
	}
	_, ok := p.Percent()
	return ok
}

func (p Progress) String() string {
	switch p {
	case Active:
		return "Active"
	case Done:
		return "Done"
	}
	if pct, ok := p.Percent(); ok {
		return fmt.Sprintf("%d%%", pct)
	}
	return "Unknown"
}

// Status is a worker's report on one job, as gossiped through the jobs tag.
type Status struct {
	ID       ID
	Progress Progress
	// Host is the worker reporting the status.
	Host net.IP
}

func (s Status) String() string {
	return fmt.Sprintf("%s@%s=%s", s.ID, s.Host, s.Progress)
}

// FormatStatuses packs statuses reported by host into a single tag value.
// Entries are sorted by ID so equal sets always produce equal values.
func FormatStatuses(host net.IP, statuses []Status) (string, error) {
	sorted := append([]Status(nil), statuses...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	parts := make([]string, 0, len(sorted))
	for _, s := range sorted {
		packed, err := PackID(host, s.ID)
		if err != nil {
			return "", err
		}
		if !s.Progress.Valid() {
			return "", errors.Errorf("invalid progress %q for %v", s.Progress, s.ID)
		}
		parts = append(parts, packed+"."+string(s.Progress))
	}
	return strings.Join(parts, ","), nil
}

// ParseStatuses unpacks a tag value written by FormatStatuses on host.
func ParseStatuses(host net.IP, value string) ([]Status, error) {
	if value == "" {
		return nil, nil
	}
	var statuses []Status
	for _, entry := range strings.Split(value, ",") {
		fields := strings.SplitN(entry, ".", 3)
		if len(fields) != 3 {
			return nil, errors.Wrapf(ErrMalformedID, "status entry %q", entry)
		}
		id, err := UnpackID(host, fields[0]+"."+fields[1])
		if err != nil {
			return nil, err
		}
		progress := Progress(fields[2])
		if !progress.Valid() {
			return nil, errors.Errorf("status entry %q has invalid progress", entry)
		}
		statuses = append(statuses, Status{ID: id, Progress: progress, Host: host})
	}
	return statuses, nil
}

// Info is what a worker reports about one of its jobs when asked directly.
type Info struct {
	Grid     string     `json:"grid"`
	Status   Progress   `json:"status"`
	Started  time.Time  `json:"started"`
	Finished *time.Time `json:"finished,omitempty"`
}

// Package workspace lays out a node's on-disk state.
//
//	<root>/jobs/queued/<id>.job      submitted, waiting for a worker
//	<root>/jobs/opened/<id>/         accepted by a worker, results pending
//	<root>/jobs/active/<id>/         admitted on this node as a worker
//	<root>/jobs/completed/<id>/      results fetched back to the submitter
//	<root>/data/                     the node's transactional state
//	<root>/run/                      logs and config for this session
//
// The submitter owns queued, opened and completed; the worker owns active.
// Other nodes only reach these files through the file-sync service.
package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ygrid/ygrid/job"
	"github.com/ygrid/ygrid/os/temp"
)

const DefaultRoot = "/tmp/ygrid"

// Files inside a job directory.
const (
	JobFile      = "job.json"
	StdoutFile   = "stdout.txt"
	StderrFile   = "stderr.txt"
	StatusFile   = "status.txt"
	ProgressFile = "progress.txt"
	// HookFile collects the done hook's output in the completed directory.
	HookFile = "hook.txt"
)

const queuedSuffix = ".job"

const (
	queuedDir    = "jobs/queued"
	openedDir    = "jobs/opened"
	activeDir    = "jobs/active"
	completedDir = "jobs/completed"
	dataDir      = "data"
	runDir       = "run"
)

type Workspace struct {
	Root string
}

func New(root string) *Workspace {
	if root == "" {
		root = DefaultRoot
	}
	return &Workspace{Root: root}
}

// Create makes every workspace directory.
func (w *Workspace) Create() error {
	for _, dir := range []string{queuedDir, openedDir, activeDir, completedDir, dataDir, runDir} {
		if err := os.MkdirAll(w.Path(dir), 0755); err != nil {
			return errors.Wrapf(err, "creating workspace %v", w.Root)
		}
	}
	return nil
}

// Purge removes job records left behind by a previous run. Queued, opened and
// active records are stale once the node restarts; completed results are kept.
func (w *Workspace) Purge() error {
	for _, dir := range []string{queuedDir, openedDir, activeDir} {
		entries, err := os.ReadDir(w.Path(dir))
		if os.IsNotExist(err) {
			continue
		} else if err != nil {
			return err
		}
		for _, entry := range entries {
			p := filepath.Join(w.Path(dir), entry.Name())
			if dir == openedDir {
				log.WithFields(log.Fields{"jobID": entry.Name()}).Warn("Discarding job that was never finished")
			}
			if err := os.RemoveAll(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// Path joins rel onto the workspace root.
func (w *Workspace) Path(rel ...string) string {
	return filepath.Join(append([]string{w.Root}, rel...)...)
}

// Rel returns path relative to the workspace root, using forward slashes.
func (w *Workspace) Rel(path string) (string, error) {
	rel, err := filepath.Rel(w.Root, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("%v is outside workspace %v", path, w.Root)
	}
	return filepath.ToSlash(rel), nil
}

// Resolve maps a workspace-relative path to an absolute one, refusing to escape the root.
func (w *Workspace) Resolve(rel string) (string, error) {
	cleaned := filepath.Clean("/" + filepath.FromSlash(rel))
	if cleaned == string(filepath.Separator) {
		return "", errors.Errorf("empty workspace path %q", rel)
	}
	return filepath.Join(w.Root, cleaned), nil
}

// InActiveJob reports whether path names a file inside some job's active
// directory. That's the only place peers may write.
func (w *Workspace) InActiveJob(path string) bool {
	rel, err := filepath.Rel(w.Path(activeDir), path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return len(strings.Split(filepath.ToSlash(rel), "/")) >= 2
}

func (w *Workspace) QueuedJob(id job.ID) string {
	return w.Path(queuedDir, string(id)+queuedSuffix)
}

func (w *Workspace) OpenedJob(id job.ID, file ...string) string {
	return w.Path(append([]string{openedDir, string(id)}, file...)...)
}

func (w *Workspace) ActiveJob(id job.ID, file ...string) string {
	return w.Path(append([]string{activeDir, string(id)}, file...)...)
}

func (w *Workspace) CompletedJob(id job.ID, file ...string) string {
	return w.Path(append([]string{completedDir, string(id)}, file...)...)
}

// JobPaths are the standard files inside the job directory dir.
func JobPaths(dir string) job.Paths {
	return job.Paths{
		Dir:      dir,
		Stdout:   filepath.Join(dir, StdoutFile),
		Stderr:   filepath.Join(dir, StderrFile),
		Progress: filepath.Join(dir, ProgressFile),
	}
}

// ActiveJobRel is the worker's job directory relative to its workspace, as
// addressed by the file-sync service.
func ActiveJobRel(id job.ID) string {
	return activeDir + "/" + string(id)
}

func OpenedJobRel(id job.ID) string {
	return openedDir + "/" + string(id)
}

func CompletedJobRel(id job.ID) string {
	return completedDir + "/" + string(id)
}

func (w *Workspace) StatePath() string {
	return w.Path(dataDir, "state.json")
}

func (w *Workspace) RunPath(name string) string {
	return w.Path(runDir, name)
}

// QueuedJobs lists the queued job IDs in submission order.
//
// IDs lead with the submitter's index in fixed width hex, so for the jobs
// of a single submitter lexical order is submission order, until the index
// wraps. See sortQueued.
func (w *Workspace) QueuedJobs() ([]job.ID, error) {
	entries, err := os.ReadDir(w.Path(queuedDir))
	if err != nil {
		return nil, err
	}
	var ids []job.ID
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || temp.IsTempName(name) || !strings.HasSuffix(name, queuedSuffix) {
			continue
		}
		ids = append(ids, job.ID(strings.TrimSuffix(name, queuedSuffix)))
	}
	sortQueued(ids)
	return ids, nil
}

// sortQueued orders ids by index. The queue only ever holds a narrow window
// of indices, so one that spans both ends of the index range has wrapped,
// and its low indices were issued after its high ones.
func sortQueued(ids []job.ID) {
	const quarter = 1 << 30
	keys := make(map[job.ID]uint64, len(ids))
	low, high := false, false
	for _, id := range ids {
		index, _, err := job.DecodeID(id)
		if err != nil {
			index = 0
		}
		keys[id] = uint64(index)
		low = low || index < quarter
		high = high || index >= 3*quarter
	}
	if low && high {
		for id, key := range keys {
			if key < 2*quarter {
				keys[id] = key + 1<<32
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if keys[ids[i]] != keys[ids[j]] {
			return keys[ids[i]] < keys[ids[j]]
		}
		return ids[i] < ids[j]
	})
}

// WriteStatus records a job's progress in its active directory.
func (w *Workspace) WriteStatus(id job.ID, progress job.Progress) error {
	return temp.WriteFile(w.ActiveJob(id, StatusFile), []byte(progress), 0644)
}

// ReadStatus returns a job's recorded progress and when it was written.
func (w *Workspace) ReadStatus(id job.ID) (job.Progress, os.FileInfo, error) {
	path := w.ActiveJob(id, StatusFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return "", nil, err
	}
	return job.Progress(strings.TrimSpace(string(data))), fi, nil
}

// MoveFile renames src to dst, creating dst's directory.
func MoveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

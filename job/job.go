// Package job defines the unit of work passed around a grid: the job record,
// its identifier codec, and the status a worker reports for it.
package job

import (
	"encoding/json"
	"net"
	"os"
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/ygrid/ygrid/os/temp"
)

const (
	DefaultLocalWeight  = 10.0
	DefaultCPUWeight    = 1.0
	DefaultMemoryWeight = 1.0
)

// Weights bias the node scorer for a job.
type Weights struct {
	Local  float64 `json:"local"`
	CPU    float64 `json:"cpu"`
	Memory float64 `json:"memory"`
}

func DefaultWeights() Weights {
	return Weights{Local: DefaultLocalWeight, CPU: DefaultCPUWeight, Memory: DefaultMemoryWeight}
}

// Job is a task plus the routing and weighting metadata needed to place it.
//
// SourceHost and SourceIndex are stamped by the submitting node and together
// form the job's ID. WorkerHost is set once a worker has accepted the job.
type Job struct {
	Grid        string
	SourceHost  net.IP
	SourceIndex uint32
	WorkerHost  net.IP
	Task        string
	DoneHook    string
	Stdin       string
	InputFiles  []string
	OutputFiles []string
	Environment map[string]string
	Weights     Weights
}

// New returns an empty job with default weights.
func New(task string) *Job {
	return &Job{Task: task, Weights: DefaultWeights()}
}

// ID returns the job's identifier. It is only meaningful once the job has been submitted.
func (j *Job) ID() ID {
	return EncodeID(j.SourceIndex, j.SourceHost)
}

// Submitted reports whether the job carries a submitter identity.
func (j *Job) Submitted() bool {
	return j.SourceIndex != 0 && j.SourceHost.To4() != nil
}

// ValidationError lists everything wrong with a submitted job.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid job: " + strings.Join(e.Problems, "; ")
}

// IsValidationError reports whether err, or its cause, is a *ValidationError.
func IsValidationError(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

// Validate returns a *ValidationError if the job can't be run, nil otherwise.
func (j *Job) Validate() error {
	var problems []string
	if strings.TrimSpace(j.Task) == "" {
		problems = append(problems, "job has empty 'task'")
	}
	for k := range j.Environment {
		if k == "" || strings.ContainsRune(k, '=') {
			problems = append(problems, "job has invalid environment name "+k)
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// record is the on-disk shape. Pointers and omitempty let MarshalJSON drop
// every field that still holds its default.
type record struct {
	Grid        string            `json:"grid,omitempty"`
	SourceHost  string            `json:"sourceHost,omitempty"`
	SourceIndex uint32            `json:"sourceIndex,omitempty"`
	WorkerHost  string            `json:"workerHost,omitempty"`
	Task        string            `json:"task,omitempty"`
	DoneHook    string            `json:"doneHook,omitempty"`
	Stdin       string            `json:"stdin,omitempty"`
	InputFiles  []string          `json:"inputFiles,omitempty"`
	OutputFiles []string          `json:"outputFiles,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Weights     *weightsRecord    `json:"weights,omitempty"`
}

type weightsRecord struct {
	Local  *float64 `json:"local,omitempty"`
	CPU    *float64 `json:"cpu,omitempty"`
	Memory *float64 `json:"memory,omitempty"`
}

func (j *Job) MarshalJSON() ([]byte, error) {
	r := record{
		Grid:        j.Grid,
		SourceIndex: j.SourceIndex,
		Task:        j.Task,
		DoneHook:    j.DoneHook,
		Stdin:       j.Stdin,
		InputFiles:  j.InputFiles,
		OutputFiles: j.OutputFiles,
		Environment: j.Environment,
	}
	if j.SourceHost != nil {
		r.SourceHost = j.SourceHost.String()
	}
	if j.WorkerHost != nil {
		r.WorkerHost = j.WorkerHost.String()
	}
	var w weightsRecord
	if j.Weights.Local != DefaultLocalWeight {
		w.Local = &j.Weights.Local
	}
	if j.Weights.CPU != DefaultCPUWeight {
		w.CPU = &j.Weights.CPU
	}
	if j.Weights.Memory != DefaultMemoryWeight {
		w.Memory = &j.Weights.Memory
	}
	if !reflect.DeepEqual(w, weightsRecord{}) {
		r.Weights = &w
	}
	return json.Marshal(r)
}

func (j *Job) UnmarshalJSON(data []byte) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	*j = Job{
		Grid:        r.Grid,
		SourceIndex: r.SourceIndex,
		Task:        r.Task,
		DoneHook:    r.DoneHook,
		Stdin:       r.Stdin,
		InputFiles:  r.InputFiles,
		OutputFiles: r.OutputFiles,
		Environment: r.Environment,
		Weights:     DefaultWeights(),
	}
	if r.SourceHost != "" {
		if j.SourceHost = net.ParseIP(r.SourceHost); j.SourceHost == nil {
			return errors.Errorf("invalid sourceHost %q", r.SourceHost)
		}
	}
	if r.WorkerHost != "" {
		if j.WorkerHost = net.ParseIP(r.WorkerHost); j.WorkerHost == nil {
			return errors.Errorf("invalid workerHost %q", r.WorkerHost)
		}
	}
	if r.Weights != nil {
		if r.Weights.Local != nil {
			j.Weights.Local = *r.Weights.Local
		}
		if r.Weights.CPU != nil {
			j.Weights.CPU = *r.Weights.CPU
		}
		if r.Weights.Memory != nil {
			j.Weights.Memory = *r.Weights.Memory
		}
	}
	return nil
}

// Parse decodes a job record.
func Parse(data []byte) (*Job, error) {
	j := New("")
	if err := json.Unmarshal(data, j); err != nil {
		return nil, errors.Wrap(err, "couldn't parse job")
	}
	return j, nil
}

// Load reads the job record at path.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	j, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %v", path)
	}
	return j, nil
}

// Save atomically writes the job record to path.
func (j *Job) Save(path string) error {
	data, err := json.MarshalIndent(j, "", "\t")
	if err != nil {
		return err
	}
	return temp.WriteFile(path, append(data, '\n'), 0644)
}

// Copy returns a deep copy of the job.
func (j *Job) Copy() *Job {
	c := *j
	c.SourceHost = append(net.IP(nil), j.SourceHost...)
	c.WorkerHost = append(net.IP(nil), j.WorkerHost...)
	if j.SourceHost == nil {
		c.SourceHost = nil
	}
	if j.WorkerHost == nil {
		c.WorkerHost = nil
	}
	c.InputFiles = append([]string(nil), j.InputFiles...)
	c.OutputFiles = append([]string(nil), j.OutputFiles...)
	if j.Environment != nil {
		c.Environment = make(map[string]string, len(j.Environment))
		for k, v := range j.Environment {
			c.Environment[k] = v
		}
	}
	return &c
}

// StagedFiles are the files sent to the worker alongside the job record:
// its inputs, plus its stdin file if that isn't already one of them.
func (j *Job) StagedFiles() []string {
	files := append([]string(nil), j.InputFiles...)
	if j.Stdin == "" {
		return files
	}
	for _, f := range files {
		if f == j.Stdin {
			return files
		}
	}
	return append(files, j.Stdin)
}

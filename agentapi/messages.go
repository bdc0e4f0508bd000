package agentapi

import (
	"github.com/ygrid/ygrid/cloud/cluster"
	"github.com/ygrid/ygrid/job"
)

type Empty struct{}

type SubmitJobRequest struct {
	Grid string
	Job  *job.Job
}

type SubmitJobResponse struct {
	ID job.ID
}

type JobRequest struct {
	ID job.ID
}

type OpenJobResponse struct {
	Accepted bool
}

// FinishedJobRequest is sent by a worker to a job's submitter.
type FinishedJobRequest struct {
	ID     job.ID
	Worker cluster.Node
}

type StatusResponse struct {
	Jobs map[job.ID]job.Info
}

type NodesRequest struct {
	Grid string
}

type NodesResponse struct {
	Nodes []cluster.Node
}

type GridsRequest struct {
	Grids []string
}

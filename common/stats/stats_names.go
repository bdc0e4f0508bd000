package stats

// Metric names. Each is recorded under its component's scope.
const (
	// Scheduler: dispatch attempts, by outcome.
	SchedDispatchAttempts    = "dispatchAttempts"
	SchedDispatchAccepted    = "dispatchAccepted"
	SchedDispatchRejected    = "dispatchRejected"
	SchedDispatchUnreachable = "dispatchUnreachable"
	// Grids skipped for the rest of a pass once they were found full.
	SchedGridsDeferred = "gridsDeferred"
	SchedQueuedJobs    = "queuedJobs"
	SchedJobsFinished  = "jobsFinished"
	// Accepted jobs that couldn't be sent and went back in the queue.
	SchedJobsRequeued = "jobsRequeued"
	// executeJob calls that failed without saying whether the task started.
	SchedExecuteUnconfirmed = "executeUnconfirmed"
	// Finish callbacks for a job that was already finished.
	SchedFinishDuplicates   = "finishDuplicates"
	SchedDispatchLatency_ms = "dispatchLatency_ms"

	// Agent: admission and execution.
	AgentOpenAccepted           = "openAccepted"
	AgentOpenRefused            = "openRefused"
	AgentJobsClosed             = "jobsClosed"
	AgentActiveJobs             = "activeJobs"
	AgentTagPublishes           = "tagPublishes"
	AgentTagPublishesSuppressed = "tagPublishesSuppressed"
	AgentExecLatency_ms         = "execLatency_ms"

	// Syncer: files served and transferred.
	SyncFilesServed  = "filesServed"
	SyncFilesSent    = "filesSent"
	SyncFilesFetched = "filesFetched"
	SyncThrottled    = "throttled"
)

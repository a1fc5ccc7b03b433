package constants

// RunStatus is the canonical status of a segmentation run.
type RunStatus string

// Stable values (stored as-is in the session store).
const (
	RunStatusQueued  RunStatus = "QUEUED"  // waiting for a batch worker
	RunStatusRunning RunStatus = "RUNNING" // in progress
	RunStatusOK      RunStatus = "OK"      // result table available
	RunStatusFailed  RunStatus = "FAILED"  // terminal failure
)

package task

// Status is the resolved state of a task. The builder assigns Runnable,
// Skip, Pending and Blocked; Done and Failed are terminal states assigned
// only by the executor.
type Status int

const (
	// StatusRunnable means all required inputs are bound and the output is
	// absent (or overwrite was requested).
	StatusRunnable Status = iota
	// StatusSkip means the output already exists and overwrite was not
	// requested.
	StatusSkip
	// StatusPending means required inputs are missing under requires="all";
	// the task records which named inputs are missing.
	StatusPending
	// StatusBlocked means parameter validation failed for this invocation.
	StatusBlocked
	// StatusDone means the task executed and its output was persisted.
	StatusDone
	// StatusFailed means the machine function or the output write errored.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRunnable:
		return "runnable"
	case StatusSkip:
		return "skip"
	case StatusPending:
		return "pending"
	case StatusBlocked:
		return "blocked"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether the status is final for this run.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusSkip || s == StatusBlocked
}

package types

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus is the status code stored on a TaskResult row.
type TaskStatus int

// Status codes. The numeric values are persisted and must not change.
const (
	StatusPending         TaskStatus = 0
	StatusEmptySuccess    TaskStatus = 1
	StatusSuccess         TaskStatus = 2
	StatusUnsatisfied     TaskStatus = 3
	StatusExecutionFailed TaskStatus = 4
	StatusSkipped         TaskStatus = 5
	StatusIndexingFailed  TaskStatus = 6
)

var statusNames = map[TaskStatus]string{
	StatusPending:         "PENDING",
	StatusEmptySuccess:    "EMPTY_SUCCESS",
	StatusSuccess:         "SUCCESS",
	StatusUnsatisfied:     "UNSATISFIED",
	StatusExecutionFailed: "EXECUTION_FAILED",
	StatusSkipped:         "SKIPPED",
	StatusIndexingFailed:  "INDEXING_FAILED",
}

// String implements fmt.Stringer.
func (s TaskStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}

// IsTerminal reports whether no further transition is permitted.
func (s TaskStatus) IsTerminal() bool {
	_, known := statusNames[s]
	return known && s != StatusPending
}

// ParseTaskStatus parses a status name such as "SUCCESS" or "empty_success".
func ParseTaskStatus(name string) (TaskStatus, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for status, n := range statusNames {
		if n == upper {
			return status, nil
		}
	}
	return StatusPending, fmt.Errorf("unknown task status: %q", name)
}

// AllStatuses returns every status in code order.
func AllStatuses() []TaskStatus {
	return []TaskStatus{
		StatusPending,
		StatusEmptySuccess,
		StatusSuccess,
		StatusUnsatisfied,
		StatusExecutionFailed,
		StatusSkipped,
		StatusIndexingFailed,
	}
}

// TaskResult 每个 (Artifact, Plugin) 对的持久化结果
type TaskResult struct {
	ArtifactID  string     `json:"artifact_id"`
	PluginName  string     `json:"plugin_name"`
	Status      TaskStatus `json:"status"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskSpec is one submitted unit of work. It is serialized onto the task
// queue, so it carries everything a remote worker needs.
type TaskSpec struct {
	Artifact Artifact         `json:"artifact"`
	Plugin   PluginDescriptor `json:"plugin"`
	// Path is the staged input path, shared by every task of the artifact.
	Path        string    `json:"path"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Key identifies the TaskResult row the task owns.
func (t TaskSpec) Key() string {
	return t.Artifact.ID + "/" + t.Plugin.Name
}

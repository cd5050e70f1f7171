package models

// Task status values as they appear in Confluence storage-format markup
const (
	TaskStatusIncomplete = "incomplete"
	TaskStatusComplete   = "complete"
)

// TaskRecord is one checkbox task extracted from a Confluence page.
// Records are immutable once extracted; the page version fields capture
// the provenance snapshot the task was read from.
type TaskRecord struct {
	PageID            string `json:"page_id"`
	PageTitle         string `json:"page_title"`
	PageURL           string `json:"page_url"`
	TaskID            string `json:"task_id"`
	Summary           string `json:"summary"`
	Status            string `json:"status"`
	AssigneeAccountID string `json:"assignee_account_id,omitempty"`
	DueDate           string `json:"due_date,omitempty"` // YYYY-MM-DD, empty when the task carries no date
	PageVersion       int    `json:"page_version"`
	VersionAuthor     string `json:"version_author,omitempty"`
	VersionTimestamp  string `json:"version_timestamp,omitempty"`

	// ContextIssueKey is set when the task body references another
	// issue's context (leading "KEY-1:" token). The field builder chains
	// that issue's description into the new issue.
	ContextIssueKey string `json:"context_issue_key,omitempty"`
}

// IsComplete reports whether the task was already checked off on the page.
func (t *TaskRecord) IsComplete() bool {
	return t.Status == TaskStatusComplete
}

// SyncContext carries the per-run parameters supplied by the caller.
// It is read-only for the duration of a run.
type SyncContext struct {
	RequestingUser string `json:"requesting_user"`
	DaysToDueDate  int    `json:"days_to_due_date"`
}

// SyncRequest is the input to a synchronization run.
type SyncRequest struct {
	PageURLs       []string    `json:"page_urls"`
	ParentIssueKey string      `json:"parent_issue_key,omitempty"`
	Context        SyncContext `json:"context"`
}

// UndoItem is the flattened form of a prior TaskCreationResult, carrying
// everything the undo engine needs to reverse one synchronized task.
type UndoItem struct {
	Task                TaskRecord `json:"task"`
	IssueKey            string     `json:"issue_key"`
	OriginalPageVersion int        `json:"original_page_version"`
	RequestingUser      string     `json:"requesting_user"`
}

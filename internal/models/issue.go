package models

// IssueFields is the complete issue-creation payload derived from one
// TaskRecord plus a SyncContext. It is never persisted; it exists only
// between the field builder and the create call.
type IssueFields struct {
	ProjectKey        string `json:"project_key"`
	Summary           string `json:"summary"`
	Description       string `json:"description"`
	IssueTypeID       string `json:"issue_type_id"`
	DueDate           string `json:"due_date"` // YYYY-MM-DD
	AssigneeAccountID string `json:"assignee_account_id,omitempty"`
	ParentIssueKey    string `json:"parent_issue_key"`
}

// Status category keys as reported by the Jira status field.
const (
	StatusCategoryTodo       = "new"
	StatusCategoryInProgress = "indeterminate"
	StatusCategoryDone       = "done"
)

// IssueDetails is the subset of issue data read back from Jira. It is
// not cached beyond a single logical operation.
type IssueDetails struct {
	Key            string `json:"key"`
	Summary        string `json:"summary"`
	Description    string `json:"description,omitempty"`
	StatusName     string `json:"status_name"`
	StatusCategory string `json:"status_category"`
	IssueType      string `json:"issue_type"`
}

package models

// Overall run/undo status values, computed per target system by the
// aggregation rule: all succeeded, some succeeded, none succeeded, or
// nothing was eligible to process.
const (
	StatusSuccess        = "Success"
	StatusPartialSuccess = "Partial Success"
	StatusFailed         = "Failed"
	StatusNoItems        = "No items to process"
	StatusSkipped        = "Skipped - no actions processed"
)

// TaskCreationResult records the outcome of creating one issue for one
// task. OriginalPageVersion is captured strictly before the page is
// mutated so a later undo can detect staleness.
type TaskCreationResult struct {
	Success             bool       `json:"success"`
	IssueKey            string     `json:"issue_key,omitempty"`
	OriginalPageVersion int        `json:"original_page_version"`
	Task                TaskRecord `json:"task"`
	Reason              string     `json:"reason,omitempty"`
}

// PageUpdateResult records the outcome of rewriting one page's task
// markup into issue-link macros.
type PageUpdateResult struct {
	Success bool   `json:"success"`
	PageID  string `json:"page_id"`
	Reason  string `json:"reason,omitempty"`
}

// RunResult aggregates one synchronization run. The two status fields
// are independent: JiraStatus covers issue creations, ConfluenceStatus
// covers page updates.
type RunResult struct {
	RunID            string               `json:"run_id,omitempty"`
	JiraStatus       string               `json:"jira_status"`
	ConfluenceStatus string               `json:"confluence_status"`
	TaskResults      []TaskCreationResult `json:"task_results"`
	PageResults      []PageUpdateResult   `json:"page_results"`
}

// UndoItems flattens the run's successful task creations into the form
// the undo engine consumes.
func (r *RunResult) UndoItems(requestingUser string) []UndoItem {
	var items []UndoItem
	for _, tr := range r.TaskResults {
		if !tr.Success || tr.IssueKey == "" {
			continue
		}
		items = append(items, UndoItem{
			Task:                tr.Task,
			IssueKey:            tr.IssueKey,
			OriginalPageVersion: tr.OriginalPageVersion,
			RequestingUser:      requestingUser,
		})
	}
	return items
}

// Undo action kinds.
const (
	UndoActionIssueTransition = "issue-transition"
	UndoActionPageRevert      = "page-revert"
)

// UndoActionResult records one compensating sub-action of an undo run.
type UndoActionResult struct {
	Action  string `json:"action"`
	Target  string `json:"target"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// UndoResult aggregates one undo run.
type UndoResult struct {
	RunID         string             `json:"run_id,omitempty"`
	OverallStatus string             `json:"overall_status"`
	ActionResults []UndoActionResult `json:"action_results"`
}

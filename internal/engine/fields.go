package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/interfaces"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/models"
)

// Jira field length maxima.
const (
	maxSummaryLength     = 255
	maxDescriptionLength = 32767
)

const (
	ellipsis   = "..."
	dateLayout = "2006-01-02"
)

// FieldBuilder turns one TaskRecord into a complete issue-creation
// payload. The current user's display name is fetched once and cached
// for the builder's lifetime (one run's staleness is acceptable).
type FieldBuilder struct {
	issues      interfaces.IssueStore
	logger      arbor.ILogger
	displayName string
	now         func() time.Time
}

// NewFieldBuilder creates a builder bound to one issue store.
func NewFieldBuilder(issues interfaces.IssueStore, logger arbor.ILogger) *FieldBuilder {
	return &FieldBuilder{
		issues: issues,
		logger: logger,
		now:    time.Now,
	}
}

// Build derives the issue fields for one task under the given parent.
func (b *FieldBuilder) Build(ctx context.Context, task models.TaskRecord, parentKey string, sctx models.SyncContext) models.IssueFields {
	dueDate := task.DueDate
	if dueDate == "" {
		dueDate = b.now().AddDate(0, 0, sctx.DaysToDueDate).Format(dateLayout)
	}

	return models.IssueFields{
		ProjectKey:        projectKeyOf(parentKey),
		Summary:           b.truncate(task.Summary, maxSummaryLength, "summary", task.TaskID),
		Description:       b.buildDescription(ctx, task, sctx),
		DueDate:           dueDate,
		AssigneeAccountID: task.AssigneeAccountID,
		ParentIssueKey:    parentKey,
	}
}

// buildDescription chains the referenced issue's context text (its
// description, falling back to its summary, falling back to a
// placeholder) and appends the provenance footer.
func (b *FieldBuilder) buildDescription(ctx context.Context, task models.TaskRecord, sctx models.SyncContext) string {
	var body string
	if task.ContextIssueKey != "" {
		body = b.contextText(ctx, task.ContextIssueKey)
	} else {
		body = fmt.Sprintf("Task synchronized from Confluence page %q (%s).", task.PageTitle, task.PageURL)
	}

	footer := fmt.Sprintf("Created by %s on %s requested by %s",
		b.DisplayName(ctx),
		b.now().Format("2006-01-02 15:04"),
		sctx.RequestingUser)

	return b.truncate(body+"\n\n"+footer, maxDescriptionLength, "description", task.TaskID)
}

func (b *FieldBuilder) contextText(ctx context.Context, issueKey string) string {
	issue, err := b.issues.GetIssue(ctx, issueKey)
	if err != nil {
		b.logger.Warn().Err(err).Str("issue_key", issueKey).Msg("Context issue unreachable")
		return fmt.Sprintf("Could not retrieve context from %s", issueKey)
	}
	if issue.Description != "" {
		return issue.Description
	}
	if issue.Summary != "" {
		return issue.Summary
	}
	return fmt.Sprintf("Could not retrieve context from %s", issueKey)
}

// DisplayName returns the current user's display name, fetching it on
// first use only. Lookup failures are not cached.
func (b *FieldBuilder) DisplayName(ctx context.Context) string {
	if b.displayName != "" {
		return b.displayName
	}
	name, err := b.issues.Myself(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Could not resolve current user display name")
		return "unknown"
	}
	b.displayName = name
	return b.displayName
}

// truncate caps s at max runes, replacing the last three characters
// with an ellipsis marker when it overflows. Truncation is expected
// occasionally and logged as a warning, not an error.
func (b *FieldBuilder) truncate(s string, max int, field, taskID string) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	b.logger.Warn().
		Str("field", field).
		Str("task_id", taskID).
		Int("length", len(runes)).
		Int("max", max).
		Msg("Field truncated")
	return string(runes[:max-len(ellipsis)]) + ellipsis
}

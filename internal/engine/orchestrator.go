package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/client"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/common"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/interfaces"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/markup"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/models"
)

// Orchestrator drives the end-to-end create+rewrite flow for one run.
// Pages are processed sequentially in request order; within a page,
// tasks are processed sequentially because each successful page update
// bumps the page version.
type Orchestrator struct {
	pages       interfaces.PageStore
	issues      interfaces.IssueStore
	codec       *markup.Codec
	fields      *FieldBuilder
	logger      arbor.ILogger
	notifier    ProgressNotifier
	defaultDays int

	// parent keys already looked up during this run
	knownParents map[string]error
}

// NewOrchestrator creates a sync orchestrator. One instance serves one
// run; the field builder's cached display name lives exactly that long.
func NewOrchestrator(pages interfaces.PageStore, issues interfaces.IssueStore, codec *markup.Codec, defaultDays int, logger arbor.ILogger) *Orchestrator {
	return &Orchestrator{
		pages:        pages,
		issues:       issues,
		codec:        codec,
		fields:       NewFieldBuilder(issues, logger),
		logger:       logger,
		notifier:     noopNotifier{},
		defaultDays:  defaultDays,
		knownParents: make(map[string]error),
	}
}

// WithNotifier attaches a progress notifier.
func (o *Orchestrator) WithNotifier(n ProgressNotifier) *Orchestrator {
	if n != nil {
		o.notifier = n
	}
	return o
}

// Run executes one synchronization run. Per-task and per-page failures
// are captured in the result; only invalid input and page-resolution
// failures abort the run.
func (o *Orchestrator) Run(ctx context.Context, req models.SyncRequest) (*models.RunResult, error) {
	if len(req.PageURLs) == 0 {
		return nil, common.NewInvalidInputError("NO_PAGES", "request carries no page URLs")
	}
	if req.Context.RequestingUser == "" {
		return nil, common.NewInvalidInputError("NO_USER", "request carries no requesting user")
	}
	if req.Context.DaysToDueDate <= 0 {
		req.Context.DaysToDueDate = o.defaultDays
	}

	runID := uuid.NewString()
	ctx = client.WithCorrelationID(ctx, runID)

	// Resolve every page up front: a page that cannot be resolved stops
	// the run before any remote mutation.
	pageIDs := make([]string, len(req.PageURLs))
	for i, ref := range req.PageURLs {
		id, err := o.pages.ResolvePageID(ctx, ref)
		if err != nil {
			return nil, err
		}
		pageIDs[i] = id
	}

	result := &models.RunResult{RunID: runID}
	o.notifier.RunStarted(runID, len(pageIDs))
	o.logger.Info().
		Str("run_id", runID).
		Int("pages", len(pageIDs)).
		Str("user", req.Context.RequestingUser).
		Msg("Sync run started")

	taskOK, taskFail := 0, 0
	pageOK, pageFail := 0, 0

	for _, pageID := range pageIDs {
		pr, taskResults := o.syncPage(ctx, pageID, req)
		for _, tr := range taskResults {
			if tr.Success {
				taskOK++
			} else {
				taskFail++
			}
			result.TaskResults = append(result.TaskResults, tr)
			o.notifier.TaskSynced(runID, tr)
		}
		if pr != nil {
			if pr.Success {
				pageOK++
			} else {
				pageFail++
			}
			result.PageResults = append(result.PageResults, *pr)
			o.notifier.PageUpdated(runID, *pr)
		}
	}

	result.JiraStatus = aggregateStatus(taskOK, taskFail)
	result.ConfluenceStatus = aggregateStatus(pageOK, pageFail)

	o.logger.Info().
		Str("run_id", runID).
		Str("jira_status", result.JiraStatus).
		Str("confluence_status", result.ConfluenceStatus).
		Int("tasks_created", taskOK).
		Int("tasks_failed", taskFail).
		Msg("Sync run finished")
	o.notifier.RunFinished(result)

	return result, nil
}

// syncPage processes one page: extract, create issues per incomplete
// task, then rewrite the page once if anything succeeded. A nil page
// result means no update was attempted (nothing eligible).
func (o *Orchestrator) syncPage(ctx context.Context, pageID string, req models.SyncRequest) (*models.PageUpdateResult, []models.TaskCreationResult) {
	page, err := o.pages.GetPage(ctx, pageID)
	if err != nil {
		o.logger.Error().Err(err).Str("page_id", pageID).Msg("Page fetch failed")
		return &models.PageUpdateResult{
			PageID: pageID,
			Reason: fmt.Sprintf("could not fetch page: %v", err),
		}, nil
	}

	tasks, err := markup.ExtractTasks(page)
	if err != nil {
		return &models.PageUpdateResult{
			PageID: pageID,
			Reason: fmt.Sprintf("could not parse page body: %v", err),
		}, nil
	}

	var taskResults []models.TaskCreationResult
	links := make(map[string]string)
	for _, task := range tasks {
		// Extraction returns all tasks; already-completed ones are
		// filtered here, by policy.
		if task.IsComplete() {
			continue
		}
		tr := o.syncTask(ctx, task, page.Version.Number, req)
		if tr.Success {
			links[task.TaskID] = tr.IssueKey
		}
		taskResults = append(taskResults, tr)
	}

	if len(links) == 0 {
		return nil, taskResults
	}

	newBody, replaced := o.codec.AddJiraLinks(page.Body, links)
	o.logger.Debug().
		Str("page_id", pageID).
		Int("links", replaced).
		Msg("Rewriting task markup")

	// The version captured at fetch time is the concurrency token; a
	// mismatch means someone else changed the page and is reported as a
	// failure, never silently refetched.
	if err := o.pages.UpdatePage(ctx, page.ID, page.Title, newBody, page.Version.Number); err != nil {
		reason := fmt.Sprintf("page update failed: %v", err)
		if errors.Is(err, interfaces.ErrVersionConflict) {
			reason = fmt.Sprintf("page modified concurrently (fetched version %d): %v", page.Version.Number, err)
		}
		return &models.PageUpdateResult{PageID: pageID, Reason: reason}, taskResults
	}

	return &models.PageUpdateResult{PageID: pageID, Success: true}, taskResults
}

// syncTask creates one issue for one task, capturing any failure in the
// result so sibling tasks keep processing.
func (o *Orchestrator) syncTask(ctx context.Context, task models.TaskRecord, pageVersion int, req models.SyncRequest) models.TaskCreationResult {
	tr := models.TaskCreationResult{
		Task:                task,
		OriginalPageVersion: pageVersion,
	}

	parentKey := task.ContextIssueKey
	if parentKey == "" {
		parentKey = req.ParentIssueKey
	}
	if parentKey == "" {
		tr.Reason = "no parent issue key: request has no default and the task references none"
		return tr
	}

	if err := o.checkParent(ctx, parentKey); err != nil {
		tr.Reason = err.Error()
		return tr
	}

	fields := o.fields.Build(ctx, task, parentKey, req.Context)
	key, err := o.issues.CreateIssue(ctx, fields)
	if err != nil {
		o.logger.Error().Err(err).
			Str("page_id", task.PageID).
			Str("task_id", task.TaskID).
			Msg("Issue creation failed")
		tr.Reason = fmt.Sprintf("issue creation failed: %v", err)
		return tr
	}

	tr.Success = true
	tr.IssueKey = key
	return tr
}

// checkParent verifies the parent issue exists, memoizing per run.
func (o *Orchestrator) checkParent(ctx context.Context, parentKey string) error {
	if err, seen := o.knownParents[parentKey]; seen {
		return err
	}

	var result error
	if _, err := o.issues.GetIssue(ctx, parentKey); err != nil {
		if client.IsNotFound(err) {
			result = common.NewParentNotFoundError("PARENT_NOT_FOUND",
				fmt.Sprintf("parent issue %s does not exist", parentKey))
		} else {
			result = common.WrapError(err, common.ErrorTypeSync, "PARENT_LOOKUP",
				fmt.Sprintf("could not verify parent issue %s", parentKey))
		}
	}
	o.knownParents[parentKey] = result
	return result
}

package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/client"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/interfaces"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/markup"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/models"
)

// UndoOrchestrator reverses a prior run's effects using the version and
// identity data recorded in its Task Creation Results. Issues are
// transitioned (never deleted, preserving audit history); page bodies
// are reverted under the recorded original version as the staleness
// token.
type UndoOrchestrator struct {
	pages  interfaces.PageStore
	issues interfaces.IssueStore
	codec  *markup.Codec
	logger arbor.ILogger
}

// NewUndoOrchestrator creates an undo orchestrator.
func NewUndoOrchestrator(pages interfaces.PageStore, issues interfaces.IssueStore, codec *markup.Codec, logger arbor.ILogger) *UndoOrchestrator {
	return &UndoOrchestrator{
		pages:  pages,
		issues: issues,
		codec:  codec,
		logger: logger,
	}
}

// Run reverses each undo item. Every item yields two independent
// sub-actions — an issue transition and a page revert — and no failure
// blocks the other sub-action or subsequent items. Reverts are grouped
// per page and submitted as one version-checked update: all items on a
// page share the page-revert outcome.
func (u *UndoOrchestrator) Run(ctx context.Context, items []models.UndoItem) *models.UndoResult {
	runID := uuid.NewString()
	result := &models.UndoResult{RunID: runID}

	if len(items) == 0 {
		result.OverallStatus = models.StatusSkipped
		return result
	}

	ctx = client.WithCorrelationID(ctx, runID)
	u.logger.Info().
		Str("run_id", runID).
		Int("items", len(items)).
		Msg("Undo run started")

	for _, item := range items {
		result.ActionResults = append(result.ActionResults, u.transitionIssue(ctx, item))
	}

	// Group page reverts by page id, preserving first-seen order.
	var pageOrder []string
	byPage := make(map[string][]models.UndoItem)
	for _, item := range items {
		id := item.Task.PageID
		if _, seen := byPage[id]; !seen {
			pageOrder = append(pageOrder, id)
		}
		byPage[id] = append(byPage[id], item)
	}

	for _, pageID := range pageOrder {
		result.ActionResults = append(result.ActionResults, u.revertPage(ctx, pageID, byPage[pageID])...)
	}

	succeeded, failed := 0, 0
	for _, ar := range result.ActionResults {
		if ar.Success {
			succeeded++
		} else {
			failed++
		}
	}
	result.OverallStatus = aggregateStatus(succeeded, failed)

	u.logger.Info().
		Str("run_id", runID).
		Str("status", result.OverallStatus).
		Msg("Undo run finished")
	return result
}

func (u *UndoOrchestrator) transitionIssue(ctx context.Context, item models.UndoItem) models.UndoActionResult {
	ar := models.UndoActionResult{
		Action: models.UndoActionIssueTransition,
		Target: item.IssueKey,
	}

	status, err := u.issues.TransitionToDone(ctx, item.IssueKey)
	if err != nil {
		u.logger.Error().Err(err).Str("issue_key", item.IssueKey).Msg("Issue transition failed")
		ar.Message = fmt.Sprintf("transition failed: %v", err)
		return ar
	}

	ar.Success = true
	ar.Message = fmt.Sprintf("transitioned to %q", status)
	return ar
}

// revertPage restores the original task markup for every undone item on
// one page, in a single update. The page is revertable only when its
// current version is exactly one past the recorded original version:
// the sync rewrite accounts for that one increment, anything further
// means someone else has modified the page and the revert must not
// overwrite their content.
func (u *UndoOrchestrator) revertPage(ctx context.Context, pageID string, items []models.UndoItem) []models.UndoActionResult {
	failAll := func(reason string) []models.UndoActionResult {
		results := make([]models.UndoActionResult, len(items))
		for i := range items {
			results[i] = models.UndoActionResult{
				Action:  models.UndoActionPageRevert,
				Target:  pageID,
				Message: reason,
			}
		}
		return results
	}

	page, err := u.pages.GetPage(ctx, pageID)
	if err != nil {
		return failAll(fmt.Sprintf("could not fetch page: %v", err))
	}

	originalVersion := items[0].OriginalPageVersion
	if page.Version.Number != originalVersion+1 {
		return failAll(fmt.Sprintf(
			"page modified since sync: version is %d, expected %d (original %d)",
			page.Version.Number, originalVersion+1, originalVersion))
	}

	results := make([]models.UndoActionResult, len(items))
	body := page.Body
	restoredAny := false
	for i, item := range items {
		results[i] = models.UndoActionResult{
			Action: models.UndoActionPageRevert,
			Target: pageID,
		}
		newBody, found := u.codec.RestoreTask(body, item.IssueKey, item.Task)
		if !found {
			results[i].Message = fmt.Sprintf("no issue macro for %s found on page", item.IssueKey)
			continue
		}
		body = newBody
		restoredAny = true
	}

	if !restoredAny {
		return results
	}

	if err := u.pages.UpdatePage(ctx, page.ID, page.Title, body, page.Version.Number); err != nil {
		for i := range results {
			if results[i].Message == "" {
				results[i].Message = fmt.Sprintf("page update failed: %v", err)
			}
		}
		return results
	}

	for i, item := range items {
		if results[i].Message == "" {
			results[i].Success = true
			results[i].Message = fmt.Sprintf("restored task %s", item.Task.TaskID)
		}
	}
	return results
}

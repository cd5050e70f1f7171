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

// HierarchyUpdater walks a page tree and bulk-rewrites issue macros
// when an issue's parent project changes. Traversal uses an explicit
// worklist rather than recursion, bounding stack depth on deep trees
// and making mid-traversal cancellation a plain loop check.
type HierarchyUpdater struct {
	pages  interfaces.PageStore
	logger arbor.ILogger
}

// NewHierarchyUpdater creates a hierarchy updater.
func NewHierarchyUpdater(pages interfaces.PageStore, logger arbor.ILogger) *HierarchyUpdater {
	return &HierarchyUpdater{pages: pages, logger: logger}
}

// RekeyResult aggregates one project-rekey operation.
type RekeyResult struct {
	RunID         string                    `json:"run_id"`
	OverallStatus string                    `json:"overall_status"`
	PageResults   []models.PageUpdateResult `json:"page_results"`
	PagesVisited  int                       `json:"pages_visited"`
	MacrosChanged int                       `json:"macros_changed"`
}

// Run rewrites, on the root page and every descendant, each issue macro
// belonging to oldProjectKey so it points at the new project's
// equivalent issue. Everything else on a page is left untouched.
func (h *HierarchyUpdater) Run(ctx context.Context, rootRef, oldProjectKey, newParentIssueKey string) (*RekeyResult, error) {
	if rootRef == "" || oldProjectKey == "" || newParentIssueKey == "" {
		return nil, common.NewInvalidInputError("REKEY_INPUT",
			"root page, old project key and new parent issue key are all required")
	}

	rootID, err := h.pages.ResolvePageID(ctx, rootRef)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = client.WithCorrelationID(ctx, runID)
	newProject := projectKeyOf(newParentIssueKey)
	result := &RekeyResult{RunID: runID}

	h.logger.Info().
		Str("run_id", runID).
		Str("root_page", rootID).
		Str("old_project", oldProjectKey).
		Str("new_project", newProject).
		Msg("Hierarchy rekey started")

	root, err := h.pages.GetPage(ctx, rootID)
	if err != nil {
		return nil, common.NewSetupError("ROOT_FETCH",
			fmt.Sprintf("could not fetch root page %s", rootID)).WithCause(err)
	}

	queue := []*models.Page{root}
	succeeded, failed := 0, 0

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			result.OverallStatus = aggregateStatus(succeeded, failed)
			return result, err
		}

		page := queue[0]
		queue = queue[1:]
		result.PagesVisited++

		children, err := h.pages.GetChildPages(ctx, page.ID)
		if err != nil {
			h.logger.Error().Err(err).Str("page_id", page.ID).Msg("Child enumeration failed")
			failed++
			result.PageResults = append(result.PageResults, models.PageUpdateResult{
				PageID: page.ID,
				Reason: fmt.Sprintf("could not list child pages: %v", err),
			})
			continue
		}
		for i := range children {
			queue = append(queue, &children[i])
		}

		if !markup.HasProjectMacro(page.Body, oldProjectKey) {
			continue
		}

		newBody, changed := markup.RekeyMacros(page.Body, oldProjectKey, newProject)
		if err := h.pages.UpdatePage(ctx, page.ID, page.Title, newBody, page.Version.Number); err != nil {
			failed++
			reason := fmt.Sprintf("page update failed: %v", err)
			if errors.Is(err, interfaces.ErrVersionConflict) {
				reason = fmt.Sprintf("page modified concurrently (fetched version %d): %v", page.Version.Number, err)
			}
			result.PageResults = append(result.PageResults, models.PageUpdateResult{
				PageID: page.ID,
				Reason: reason,
			})
			continue
		}

		succeeded++
		result.MacrosChanged += changed
		result.PageResults = append(result.PageResults, models.PageUpdateResult{
			PageID:  page.ID,
			Success: true,
		})
	}

	result.OverallStatus = aggregateStatus(succeeded, failed)
	h.logger.Info().
		Str("run_id", runID).
		Str("status", result.OverallStatus).
		Int("pages_visited", result.PagesVisited).
		Int("macros_changed", result.MacrosChanged).
		Msg("Hierarchy rekey finished")
	return result, nil
}

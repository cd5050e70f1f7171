package interfaces

import (
	"context"
	"errors"

	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/models"
)

// ErrVersionConflict is returned (wrapped) by PageStore.UpdatePage when
// the page's current version no longer matches the fetched version the
// update was built against.
var ErrVersionConflict = errors.New("page version conflict")

// PageStore is the capability surface of the document-collaboration
// platform. One concrete adapter talks to Confluence; tests supply a
// double implementing the same interface.
type PageStore interface {
	// ResolvePageID turns a page URL (or bare id) into a page identifier
	// without fetching the body.
	ResolvePageID(ctx context.Context, urlOrID string) (string, error)
	// GetPage fetches a page with its body in storage representation and
	// its version block.
	GetPage(ctx context.Context, pageID string) (*models.Page, error)
	// UpdatePage submits a new body using the supplied fetched version as
	// the optimistic-concurrency token. A remote version mismatch returns
	// an error wrapping ErrVersionConflict.
	UpdatePage(ctx context.Context, pageID, title, body string, fetchedVersion int) error
	// GetChildPages enumerates the direct children of a page.
	GetChildPages(ctx context.Context, pageID string) ([]models.Page, error)
	// HealthCheck performs a minimal side-effect-free read to verify
	// reachability and credentials.
	HealthCheck(ctx context.Context) error
}

// IssueStore is the capability surface of the issue-tracking platform.
type IssueStore interface {
	// CreateIssue creates an issue and returns its key.
	CreateIssue(ctx context.Context, fields models.IssueFields) (string, error)
	// GetIssue reads back summary/description/status for one issue.
	GetIssue(ctx context.Context, key string) (*models.IssueDetails, error)
	// TransitionToDone moves the issue to a done-category status,
	// preserving its audit history. Returns the status reached.
	TransitionToDone(ctx context.Context, key string) (string, error)
	// Myself returns the display name of the authenticated user.
	Myself(ctx context.Context) (string, error)
	// HealthCheck performs a minimal side-effect-free read to verify
	// reachability and credentials.
	HealthCheck(ctx context.Context) error
}

// History persists run and undo results so the API can list prior runs
// and replay a stored run into an undo request.
type History interface {
	SaveRun(result *models.RunResult) error
	LoadRun(runID string) (*models.RunResult, error)
	LoadAllRuns() ([]*models.RunResult, error)
	SaveUndo(result *models.UndoResult) error
	Close() error
}

// WebService controls the HTTP server lifecycle.
type WebService interface {
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool
}

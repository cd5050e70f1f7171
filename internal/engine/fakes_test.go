package engine

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/client"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/common"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/interfaces"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/markup"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/models"
)

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func testCodec() *markup.Codec {
	return markup.NewCodec("Jira", "test-server-id")
}

type updateCall struct {
	PageID         string
	Title          string
	Body           string
	FetchedVersion int
}

// fakePageStore implements interfaces.PageStore in memory. Updates
// enforce optimistic concurrency the way the real platform does: a
// stale fetched version is rejected, a good one bumps the version.
type fakePageStore struct {
	pages    map[string]*models.Page
	children map[string][]string

	resolveErr map[string]error
	fetchErr   map[string]error
	updateErr  map[string]error

	updates []updateCall
}

func newFakePageStore(pages ...*models.Page) *fakePageStore {
	s := &fakePageStore{
		pages:      make(map[string]*models.Page),
		children:   make(map[string][]string),
		resolveErr: make(map[string]error),
		fetchErr:   make(map[string]error),
		updateErr:  make(map[string]error),
	}
	for _, p := range pages {
		copied := *p
		s.pages[p.ID] = &copied
	}
	return s
}

func (s *fakePageStore) ResolvePageID(ctx context.Context, urlOrID string) (string, error) {
	if err := s.resolveErr[urlOrID]; err != nil {
		return "", err
	}
	if _, ok := s.pages[urlOrID]; ok {
		return urlOrID, nil
	}
	return "", common.NewSetupError("UNRESOLVED_PAGE", fmt.Sprintf("no page id found in %q", urlOrID))
}

func (s *fakePageStore) GetPage(ctx context.Context, pageID string) (*models.Page, error) {
	if err := s.fetchErr[pageID]; err != nil {
		return nil, err
	}
	page, ok := s.pages[pageID]
	if !ok {
		return nil, &client.APIError{Kind: client.KindNotFound, StatusCode: http.StatusNotFound, Message: pageID}
	}
	copied := *page
	return &copied, nil
}

func (s *fakePageStore) UpdatePage(ctx context.Context, pageID, title, body string, fetchedVersion int) error {
	s.updates = append(s.updates, updateCall{pageID, title, body, fetchedVersion})
	if err := s.updateErr[pageID]; err != nil {
		return err
	}
	page, ok := s.pages[pageID]
	if !ok {
		return &client.APIError{Kind: client.KindNotFound, StatusCode: http.StatusNotFound, Message: pageID}
	}
	if page.Version.Number != fetchedVersion {
		return fmt.Errorf("updating page %s at version %d: %w", pageID, fetchedVersion, interfaces.ErrVersionConflict)
	}
	page.Body = body
	page.Version.Number++
	return nil
}

func (s *fakePageStore) GetChildPages(ctx context.Context, pageID string) ([]models.Page, error) {
	var result []models.Page
	for _, childID := range s.children[pageID] {
		if page, ok := s.pages[childID]; ok {
			result = append(result, *page)
		}
	}
	return result, nil
}

func (s *fakePageStore) HealthCheck(ctx context.Context) error { return nil }

// fakeIssueStore implements interfaces.IssueStore in memory.
type fakeIssueStore struct {
	issues      map[string]*models.IssueDetails
	createErr   map[string]error // keyed by summary
	created     []models.IssueFields
	nextIssue   int
	myselfName  string
	myselfCalls int
	myselfErr   error

	transitionErr map[string]error
	transitioned  []string
}

func newFakeIssueStore() *fakeIssueStore {
	return &fakeIssueStore{
		issues:        make(map[string]*models.IssueDetails),
		createErr:     make(map[string]error),
		transitionErr: make(map[string]error),
		myselfName:    "Robot Account",
	}
}

func (s *fakeIssueStore) addIssue(key, summary, description string) {
	s.issues[key] = &models.IssueDetails{
		Key:            key,
		Summary:        summary,
		Description:    description,
		StatusName:     "To Do",
		StatusCategory: models.StatusCategoryTodo,
		IssueType:      "Task",
	}
}

func (s *fakeIssueStore) CreateIssue(ctx context.Context, fields models.IssueFields) (string, error) {
	if err := s.createErr[fields.Summary]; err != nil {
		return "", err
	}
	s.nextIssue++
	key := fmt.Sprintf("%s-%d", fields.ProjectKey, 100+s.nextIssue)
	s.created = append(s.created, fields)
	s.addIssue(key, fields.Summary, fields.Description)
	return key, nil
}

func (s *fakeIssueStore) GetIssue(ctx context.Context, key string) (*models.IssueDetails, error) {
	issue, ok := s.issues[key]
	if !ok {
		return nil, &client.APIError{Kind: client.KindNotFound, StatusCode: http.StatusNotFound, Message: key}
	}
	copied := *issue
	return &copied, nil
}

func (s *fakeIssueStore) TransitionToDone(ctx context.Context, key string) (string, error) {
	if err := s.transitionErr[key]; err != nil {
		return "", err
	}
	if _, ok := s.issues[key]; !ok {
		return "", &client.APIError{Kind: client.KindNotFound, StatusCode: http.StatusNotFound, Message: key}
	}
	s.transitioned = append(s.transitioned, key)
	s.issues[key].StatusName = "Done"
	s.issues[key].StatusCategory = models.StatusCategoryDone
	return "Done", nil
}

func (s *fakeIssueStore) Myself(ctx context.Context) (string, error) {
	s.myselfCalls++
	if s.myselfErr != nil {
		return "", s.myselfErr
	}
	return s.myselfName, nil
}

func (s *fakeIssueStore) HealthCheck(ctx context.Context) error { return nil }

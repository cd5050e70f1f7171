package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/common"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/interfaces"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/models"
)

func macroPage(id string, version int, issueKeys ...string) *models.Page {
	codec := testCodec()
	body := `<p>Links</p>`
	for _, key := range issueKeys {
		body += codec.IssueMacro(key)
	}
	return &models.Page{
		ID:      id,
		Title:   "Page " + id,
		Body:    body,
		Version: models.PageVersion{Number: version},
	}
}

func TestRekey_WalksWholeTree(t *testing.T) {
	root := macroPage("1", 2, "OLD-10")
	child := macroPage("2", 5, "OLD-20", "KEEP-5")
	grandchild := macroPage("3", 1, "OLD-30")
	untouched := macroPage("4", 7, "KEEP-9")
	pages := newFakePageStore(root, child, grandchild, untouched)
	pages.children["1"] = []string{"2", "4"}
	pages.children["2"] = []string{"3"}
	h := NewHierarchyUpdater(pages, testLogger())

	result, err := h.Run(context.Background(), "1", "OLD", "NEW-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.OverallStatus != models.StatusSuccess {
		t.Errorf("status = %q: %+v", result.OverallStatus, result.PageResults)
	}
	if result.PagesVisited != 4 {
		t.Errorf("pages visited = %d, want 4", result.PagesVisited)
	}
	if result.MacrosChanged != 3 {
		t.Errorf("macros changed = %d, want 3", result.MacrosChanged)
	}
	if len(pages.updates) != 3 {
		t.Fatalf("page updates = %d, want 3 (page 4 has no matching macro)", len(pages.updates))
	}

	for _, update := range pages.updates {
		if strings.Contains(update.Body, "OLD-") {
			t.Errorf("page %s still carries old project keys: %s", update.PageID, update.Body)
		}
	}
	childBody := pages.pages["2"].Body
	if !strings.Contains(childBody, `<ac:parameter ac:name="key">NEW-20</ac:parameter>`) {
		t.Errorf("child macro not rekeyed: %s", childBody)
	}
	if !strings.Contains(childBody, `<ac:parameter ac:name="key">KEEP-5</ac:parameter>`) {
		t.Errorf("unrelated macro on child was changed: %s", childBody)
	}
	if pages.pages["4"].Body != untouched.Body {
		t.Errorf("page without matching macros must not be written")
	}
}

func TestRekey_ValidatesInput(t *testing.T) {
	h := NewHierarchyUpdater(newFakePageStore(), testLogger())

	for _, tc := range []struct {
		name                    string
		root, oldKey, newParent string
	}{
		{"missing root", "", "OLD", "NEW-1"},
		{"missing old project", "1", "", "NEW-1"},
		{"missing new parent", "1", "OLD", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.Run(context.Background(), tc.root, tc.oldKey, tc.newParent)
			if !common.IsType(err, common.ErrorTypeInvalidInput) {
				t.Errorf("err = %v, want invalid input", err)
			}
		})
	}
}

func TestRekey_RootFetchFailure(t *testing.T) {
	pages := newFakePageStore(macroPage("1", 2, "OLD-10"))
	pages.fetchErr["1"] = context.DeadlineExceeded
	h := NewHierarchyUpdater(pages, testLogger())

	_, err := h.Run(context.Background(), "1", "OLD", "NEW-1")
	if !common.IsType(err, common.ErrorTypeSetup) {
		t.Errorf("err = %v, want setup error", err)
	}
}

func TestRekey_VersionConflictRecordedPerPage(t *testing.T) {
	root := macroPage("1", 2, "OLD-10")
	child := macroPage("2", 5, "OLD-20")
	pages := newFakePageStore(root, child)
	pages.children["1"] = []string{"2"}
	h := NewHierarchyUpdater(pages, testLogger())

	// Concurrent edit on the child between enumeration and update.
	pages.updateErr["2"] = fmt.Errorf("remote rejected version 5: %w", interfaces.ErrVersionConflict)

	result, err := h.Run(context.Background(), "1", "OLD", "NEW-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.OverallStatus != models.StatusPartialSuccess {
		t.Errorf("status = %q, want Partial Success", result.OverallStatus)
	}
	if len(result.PageResults) != 2 {
		t.Fatalf("page results = %d, want 2", len(result.PageResults))
	}
	if !result.PageResults[0].Success {
		t.Errorf("root should rekey cleanly: %+v", result.PageResults[0])
	}
	conflict := result.PageResults[1]
	if conflict.Success || !strings.Contains(conflict.Reason, "modified concurrently") {
		t.Errorf("child result = %+v, want version-conflict failure", conflict)
	}
}

func TestRekey_CancelledMidTraversal(t *testing.T) {
	root := macroPage("1", 2, "OLD-10")
	child := macroPage("2", 5, "OLD-20")
	pages := newFakePageStore(root, child)
	pages.children["1"] = []string{"2"}
	h := NewHierarchyUpdater(pages, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.Run(ctx, "1", "OLD", "NEW-1")
	if err == nil {
		t.Fatalf("want context error")
	}
	if result == nil {
		t.Fatalf("partial result must still be returned")
	}
	if result.PagesVisited != 0 {
		t.Errorf("pages visited = %d before cancellation took effect", result.PagesVisited)
	}
}

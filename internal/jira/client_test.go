package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/common"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/models"
)

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newTestClient(baseURL string) *Client {
	return NewClient(&common.JiraConfig{
		BaseURL:         baseURL,
		Username:        "bot",
		APIToken:        "token",
		Timeout:         5,
		IssueTypeID:     "10002",
		ParentLinkField: "customfield_10003",
	}, 1, arbor.NewLogger())
}

func TestCreateIssue_FieldMapping(t *testing.T) {
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&payload)
		writeJSON(w, map[string]string{"id": "10500", "key": "WP-101"})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	key, err := c.CreateIssue(context.Background(), models.IssueFields{
		ProjectKey:        "WP",
		Summary:           "Fix gauge",
		Description:       "Details",
		DueDate:           "2026-09-04",
		AssigneeAccountID: "abc123",
		ParentIssueKey:    "WP-1",
	})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if key != "WP-101" {
		t.Errorf("key = %q, want WP-101", key)
	}

	fields := payload["fields"].(map[string]interface{})
	if fields["project"].(map[string]interface{})["key"] != "WP" {
		t.Errorf("project = %v", fields["project"])
	}
	if fields["issuetype"].(map[string]interface{})["id"] != "10002" {
		t.Errorf("issuetype should fall back to the configured id: %v", fields["issuetype"])
	}
	if fields["summary"] != "Fix gauge" || fields["duedate"] != "2026-09-04" {
		t.Errorf("summary/duedate = %v/%v", fields["summary"], fields["duedate"])
	}
	if fields["assignee"].(map[string]interface{})["accountId"] != "abc123" {
		t.Errorf("assignee = %v", fields["assignee"])
	}
	if fields["customfield_10003"] != "WP-1" {
		t.Errorf("parent link field = %v, want WP-1", fields["customfield_10003"])
	}
}

func TestCreateIssue_OmitsAssigneeWhenUnset(t *testing.T) {
	var payload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		writeJSON(w, map[string]string{"key": "WP-102"})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.CreateIssue(context.Background(), models.IssueFields{
		ProjectKey:     "WP",
		Summary:        "No assignee",
		ParentIssueKey: "WP-1",
	})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	fields := payload["fields"].(map[string]interface{})
	if _, present := fields["assignee"]; present {
		t.Errorf("assignee must be omitted so the project default applies")
	}
}

func TestGetIssue_MapsStatusCategory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue/WP-7" {
			t.Errorf("path = %q", r.URL.Path)
		}
		writeJSON(w, map[string]interface{}{
			"key": "WP-7",
			"fields": map[string]interface{}{
				"summary":     "Calibration epic",
				"description": "Details",
				"status": map[string]interface{}{
					"name":           "In Progress",
					"statusCategory": map[string]string{"key": "indeterminate"},
				},
				"issuetype": map[string]string{"name": "Epic"},
			},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	issue, err := c.GetIssue(context.Background(), "WP-7")
	if err != nil {
		t.Fatalf("GetIssue: %v", err)
	}
	if issue.Key != "WP-7" || issue.Summary != "Calibration epic" {
		t.Errorf("issue = %+v", issue)
	}
	if issue.StatusCategory != models.StatusCategoryInProgress {
		t.Errorf("status category = %q", issue.StatusCategory)
	}
	if issue.IssueType != "Epic" {
		t.Errorf("issue type = %q", issue.IssueType)
	}
}

func TestTransitionToDone(t *testing.T) {
	t.Run("picks first done-category transition", func(t *testing.T) {
		var transitionPayload map[string]interface{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/rest/api/2/issue/WP-7" && r.Method == http.MethodGet:
				writeJSON(w, map[string]interface{}{
					"key": "WP-7",
					"fields": map[string]interface{}{
						"status": map[string]interface{}{
							"name":           "To Do",
							"statusCategory": map[string]string{"key": "new"},
						},
					},
				})
			case r.URL.Path == "/rest/api/2/issue/WP-7/transitions" && r.Method == http.MethodGet:
				writeJSON(w, map[string]interface{}{
					"transitions": []map[string]interface{}{
						{"id": "21", "name": "Start", "to": map[string]interface{}{
							"name": "In Progress", "statusCategory": map[string]string{"key": "indeterminate"}}},
						{"id": "31", "name": "Close", "to": map[string]interface{}{
							"name": "Done", "statusCategory": map[string]string{"key": "done"}}},
					},
				})
			case r.URL.Path == "/rest/api/2/issue/WP-7/transitions" && r.Method == http.MethodPost:
				json.NewDecoder(r.Body).Decode(&transitionPayload)
				w.WriteHeader(http.StatusNoContent)
			default:
				t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
			}
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		status, err := c.TransitionToDone(context.Background(), "WP-7")
		if err != nil {
			t.Fatalf("TransitionToDone: %v", err)
		}
		if status != "Done" {
			t.Errorf("status = %q, want Done", status)
		}
		if transitionPayload["transition"].(map[string]interface{})["id"] != "31" {
			t.Errorf("transition payload = %v, want id 31", transitionPayload)
		}
	})

	t.Run("already done is a no-op", func(t *testing.T) {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			writeJSON(w, map[string]interface{}{
				"key": "WP-7",
				"fields": map[string]interface{}{
					"status": map[string]interface{}{
						"name":           "Done",
						"statusCategory": map[string]string{"key": "done"},
					},
				},
			})
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		status, err := c.TransitionToDone(context.Background(), "WP-7")
		if err != nil {
			t.Fatalf("TransitionToDone: %v", err)
		}
		if status != "Done" {
			t.Errorf("status = %q", status)
		}
		if calls != 1 {
			t.Errorf("calls = %d, transitions should not be listed for a done issue", calls)
		}
	})

	t.Run("no done transition available", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/rest/api/2/issue/WP-7" {
				writeJSON(w, map[string]interface{}{
					"key": "WP-7",
					"fields": map[string]interface{}{
						"status": map[string]interface{}{
							"name":           "To Do",
							"statusCategory": map[string]string{"key": "new"},
						},
					},
				})
				return
			}
			writeJSON(w, map[string]interface{}{"transitions": []interface{}{}})
		}))
		defer server.Close()

		c := newTestClient(server.URL)
		_, err := c.TransitionToDone(context.Background(), "WP-7")
		if !common.IsType(err, common.ErrorTypeMissingData) {
			t.Errorf("err = %v, want missing-data error", err)
		}
	})
}

func TestMyself(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{
			"accountId":   "abc123",
			"displayName": "Robot Account",
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	name, err := c.Myself(context.Background())
	if err != nil {
		t.Fatalf("Myself: %v", err)
	}
	if name != "Robot Account" {
		t.Errorf("name = %q", name)
	}
}

func TestProjectKeyFromIssue(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"WP-1", "WP"},
		{"LONGKEY-12345", "LONGKEY"},
		{"NOKEY", "NOKEY"},
	}
	for _, tc := range tests {
		if got := ProjectKeyFromIssue(tc.in); got != tc.want {
			t.Errorf("ProjectKeyFromIssue(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

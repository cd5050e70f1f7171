package jira

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/client"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/common"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/models"
)

// Client is the issue-store adapter for Jira Cloud.
type Client struct {
	api             *client.Client
	issueTypeID     string
	parentLinkField string
	logger          arbor.ILogger
}

// NewClient creates a Jira adapter.
func NewClient(cfg *common.JiraConfig, maxRetries int, logger arbor.ILogger) *Client {
	return &Client{
		api: client.New(client.Config{
			BaseURL:    cfg.BaseURL,
			Username:   cfg.Username,
			APIToken:   cfg.APIToken,
			Timeout:    cfg.Timeout,
			MaxRetries: maxRetries,
		}, logger),
		issueTypeID:     cfg.IssueTypeID,
		parentLinkField: cfg.ParentLinkField,
		logger:          logger,
	}
}

type createIssueResponse struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

type issueResponse struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string `json:"summary"`
		Description string `json:"description"`
		Status      struct {
			Name           string `json:"name"`
			StatusCategory struct {
				Key string `json:"key"`
			} `json:"statusCategory"`
		} `json:"status"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
	} `json:"fields"`
}

type transitionsResponse struct {
	Transitions []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		To   struct {
			Name           string `json:"name"`
			StatusCategory struct {
				Key string `json:"key"`
			} `json:"statusCategory"`
		} `json:"to"`
	} `json:"transitions"`
}

type myselfResponse struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
}

// CreateIssue creates an issue from the flat field map the create
// endpoint expects and returns the new issue key.
func (c *Client) CreateIssue(ctx context.Context, fields models.IssueFields) (string, error) {
	issueTypeID := fields.IssueTypeID
	if issueTypeID == "" {
		issueTypeID = c.issueTypeID
	}

	fieldMap := map[string]interface{}{
		"project":         map[string]string{"key": fields.ProjectKey},
		"summary":         fields.Summary,
		"issuetype":       map[string]string{"id": issueTypeID},
		"description":     fields.Description,
		"duedate":         fields.DueDate,
		c.parentLinkField: fields.ParentIssueKey,
	}
	if fields.AssigneeAccountID != "" {
		fieldMap["assignee"] = map[string]string{"accountId": fields.AssigneeAccountID}
	}

	var resp createIssueResponse
	payload := map[string]interface{}{"fields": fieldMap}
	if err := c.api.Post(ctx, "/rest/api/2/issue", payload, &resp); err != nil {
		return "", fmt.Errorf("creating issue in project %s: %w", fields.ProjectKey, err)
	}

	c.logger.Info().
		Str("issue_key", resp.Key).
		Str("project", fields.ProjectKey).
		Msg("Issue created")
	return resp.Key, nil
}

// GetIssue reads one issue's display fields and status.
func (c *Client) GetIssue(ctx context.Context, key string) (*models.IssueDetails, error) {
	var resp issueResponse
	query := map[string]string{"fields": "summary,description,status,issuetype"}
	if err := c.api.Get(ctx, "/rest/api/2/issue/"+key, query, &resp); err != nil {
		return nil, fmt.Errorf("fetching issue %s: %w", key, err)
	}

	return &models.IssueDetails{
		Key:            resp.Key,
		Summary:        resp.Fields.Summary,
		Description:    resp.Fields.Description,
		StatusName:     resp.Fields.Status.Name,
		StatusCategory: resp.Fields.Status.StatusCategory.Key,
		IssueType:      resp.Fields.IssueType.Name,
	}, nil
}

// TransitionToDone moves the issue to a done-category status via the
// first available done transition, preserving audit history. Issues
// already in a done-category status are left alone.
func (c *Client) TransitionToDone(ctx context.Context, key string) (string, error) {
	details, err := c.GetIssue(ctx, key)
	if err != nil {
		return "", err
	}
	if details.StatusCategory == models.StatusCategoryDone {
		return details.StatusName, nil
	}

	var resp transitionsResponse
	if err := c.api.Get(ctx, "/rest/api/2/issue/"+key+"/transitions", nil, &resp); err != nil {
		return "", fmt.Errorf("listing transitions for %s: %w", key, err)
	}

	for _, tr := range resp.Transitions {
		if tr.To.StatusCategory.Key != models.StatusCategoryDone {
			continue
		}
		payload := map[string]interface{}{
			"transition": map[string]string{"id": tr.ID},
		}
		if err := c.api.Post(ctx, "/rest/api/2/issue/"+key+"/transitions", payload, nil); err != nil {
			return "", fmt.Errorf("transitioning %s via %q: %w", key, tr.Name, err)
		}
		c.logger.Info().
			Str("issue_key", key).
			Str("transition", tr.Name).
			Str("status", tr.To.Name).
			Msg("Issue transitioned")
		return tr.To.Name, nil
	}

	return "", common.NewMissingDataError("NO_DONE_TRANSITION",
		fmt.Sprintf("issue %s has no transition to a done-category status", key))
}

// Myself returns the authenticated user's display name.
func (c *Client) Myself(ctx context.Context) (string, error) {
	var resp myselfResponse
	if err := c.api.Get(ctx, "/rest/api/2/myself", nil, &resp); err != nil {
		return "", fmt.Errorf("fetching current user: %w", err)
	}
	if resp.DisplayName == "" {
		return resp.AccountID, nil
	}
	return resp.DisplayName, nil
}

// HealthCheck verifies reachability and credentials with a minimal read.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.api.HealthCheck(ctx, "/rest/api/2/myself", nil)
}

// ProjectKeyFromIssue derives the project key from an issue key by
// taking the prefix before the separator ("WP-1" -> "WP").
func ProjectKeyFromIssue(issueKey string) string {
	if idx := strings.Index(issueKey, "-"); idx > 0 {
		return issueKey[:idx]
	}
	return issueKey
}

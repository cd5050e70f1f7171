package confluence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/client"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/common"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/interfaces"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/models"
)

// pagePathPattern matches the numeric page id in Confluence page URLs
// such as /wiki/spaces/KEY/pages/123456/Title.
var pagePathPattern = regexp.MustCompile(`/pages/(\d+)(?:/|$)`)

// Client is the page-store adapter for Confluence Cloud.
type Client struct {
	api     *client.Client
	baseURL string
	logger  arbor.ILogger
}

// NewClient creates a Confluence adapter.
func NewClient(cfg *common.ConfluenceConfig, maxRetries int, logger arbor.ILogger) *Client {
	return &Client{
		api: client.New(client.Config{
			BaseURL:    cfg.BaseURL,
			Username:   cfg.Username,
			APIToken:   cfg.APIToken,
			Timeout:    cfg.Timeout,
			MaxRetries: maxRetries,
		}, logger),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

type contentBody struct {
	Storage struct {
		Value          string `json:"value"`
		Representation string `json:"representation"`
	} `json:"storage"`
}

type contentVersion struct {
	Number int    `json:"number"`
	When   string `json:"when"`
	By     struct {
		AccountID   string `json:"accountId"`
		DisplayName string `json:"displayName"`
	} `json:"by"`
}

type contentResponse struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Title   string         `json:"title"`
	Body    contentBody    `json:"body"`
	Version contentVersion `json:"version"`
	Links   struct {
		WebUI string `json:"webui"`
		Base  string `json:"base"`
	} `json:"_links"`
}

type childPagesResponse struct {
	Results []contentResponse `json:"results"`
	Start   int               `json:"start"`
	Limit   int               `json:"limit"`
	Size    int               `json:"size"`
}

// ResolvePageID extracts the page identifier from a page URL, a URL
// carrying a pageId query parameter, or a bare numeric id.
func (c *Client) ResolvePageID(ctx context.Context, urlOrID string) (string, error) {
	trimmed := strings.TrimSpace(urlOrID)
	if trimmed == "" {
		return "", common.NewInvalidInputError("EMPTY_PAGE_REF", "page URL or id is empty")
	}

	if _, err := strconv.Atoi(trimmed); err == nil {
		return trimmed, nil
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", common.NewSetupError("BAD_PAGE_URL", fmt.Sprintf("cannot parse page URL %q", urlOrID)).WithCause(err)
	}

	if id := parsed.Query().Get("pageId"); id != "" {
		return id, nil
	}

	if m := pagePathPattern.FindStringSubmatch(parsed.Path); m != nil {
		return m[1], nil
	}

	return "", common.NewSetupError("UNRESOLVED_PAGE", fmt.Sprintf("no page id found in %q", urlOrID))
}

// GetPage fetches a page with its storage-representation body and
// version block.
func (c *Client) GetPage(ctx context.Context, pageID string) (*models.Page, error) {
	var resp contentResponse
	query := map[string]string{"expand": "body.storage,version"}
	if err := c.api.Get(ctx, "/rest/api/content/"+pageID, query, &resp); err != nil {
		return nil, fmt.Errorf("fetching page %s: %w", pageID, err)
	}
	return c.toPage(&resp), nil
}

// UpdatePage submits a new body under optimistic concurrency: the
// update carries fetchedVersion+1, and the remote rejects it when the
// page's current version is no longer fetchedVersion.
func (c *Client) UpdatePage(ctx context.Context, pageID, title, body string, fetchedVersion int) error {
	payload := map[string]interface{}{
		"type":  "page",
		"title": title,
		"version": map[string]interface{}{
			"number": fetchedVersion + 1,
		},
		"body": map[string]interface{}{
			"storage": map[string]interface{}{
				"value":          body,
				"representation": "storage",
			},
		},
	}

	err := c.api.Put(ctx, "/rest/api/content/"+pageID, payload, nil)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
			return fmt.Errorf("updating page %s at version %d: %w", pageID, fetchedVersion, interfaces.ErrVersionConflict)
		}
		return fmt.Errorf("updating page %s: %w", pageID, err)
	}

	c.logger.Debug().
		Str("page_id", pageID).
		Int("version", fetchedVersion+1).
		Msg("Page updated")
	return nil
}

// GetChildPages enumerates the direct children of a page, bodies and
// versions included, following pagination.
func (c *Client) GetChildPages(ctx context.Context, pageID string) ([]models.Page, error) {
	const pageSize = 50

	var children []models.Page
	for start := 0; ; start += pageSize {
		var resp childPagesResponse
		query := map[string]string{
			"expand": "body.storage,version",
			"start":  strconv.Itoa(start),
			"limit":  strconv.Itoa(pageSize),
		}
		if err := c.api.Get(ctx, "/rest/api/content/"+pageID+"/child/page", query, &resp); err != nil {
			return nil, fmt.Errorf("listing children of page %s: %w", pageID, err)
		}

		for i := range resp.Results {
			children = append(children, *c.toPage(&resp.Results[i]))
		}

		if resp.Size < pageSize {
			return children, nil
		}
	}
}

// HealthCheck lists one space as a minimal authenticated read.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.api.HealthCheck(ctx, "/rest/api/space", map[string]string{"limit": "1"})
}

func (c *Client) toPage(resp *contentResponse) *models.Page {
	pageURL := resp.Links.WebUI
	if pageURL != "" {
		base := resp.Links.Base
		if base == "" {
			base = c.baseURL
		}
		pageURL = base + pageURL
	}

	return &models.Page{
		ID:    resp.ID,
		Title: resp.Title,
		URL:   pageURL,
		Body:  resp.Body.Storage.Value,
		Version: models.PageVersion{
			Number:    resp.Version.Number,
			Author:    resp.Version.By.DisplayName,
			Timestamp: resp.Version.When,
		},
	}
}

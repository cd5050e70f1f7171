package markup

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/models"
)

// Storage-format element and attribute names recognized by the extractor.
const (
	tagTask       = "ac:task"
	tagTaskID     = "ac:task-id"
	tagTaskStatus = "ac:task-status"
	tagTaskBody   = "ac:task-body"
	tagLink       = "ac:link"
	tagTime       = "time"
	attrAccountID = "ri:account-id"
	attrDatetime  = "datetime"
)

// selfClosingPattern matches self-closed storage-format and time
// elements. The HTML parser ignores the self-closing slash on
// non-void elements, which would swallow trailing siblings, so they
// are expanded to explicit open/close pairs before parsing.
var selfClosingPattern = regexp.MustCompile(`<((?:ac|ri):[a-z0-9-]+|time)((?:[^>"]|"[^"]*")*?)\s*/>`)

// contextRefPattern matches a leading issue-key back-reference in a
// task body ("WP-12: rest of summary").
var contextRefPattern = regexp.MustCompile(`^([A-Z][A-Z0-9]*-\d+):\s*(.*)$`)

// ExtractTasks parses a page's storage-representation body and returns
// its tasks in document order. All tasks are returned, completed ones
// included; filtering by status is the caller's policy. Each record
// carries the page's version snapshot as provenance.
func ExtractTasks(page *models.Page) ([]models.TaskRecord, error) {
	root, err := html.Parse(strings.NewReader(expandSelfClosing(page.Body)))
	if err != nil {
		return nil, fmt.Errorf("parsing body of page %s: %w", page.ID, err)
	}

	var tasks []models.TaskRecord
	for _, taskNode := range findNodesByTag(root, tagTask) {
		record := models.TaskRecord{
			PageID:           page.ID,
			PageTitle:        page.Title,
			PageURL:          page.URL,
			PageVersion:      page.Version.Number,
			VersionAuthor:    page.Version.Author,
			VersionTimestamp: page.Version.Timestamp,
		}

		record.TaskID = childText(taskNode, tagTaskID)
		record.Status = childText(taskNode, tagTaskStatus)

		if body := firstChildByTag(taskNode, tagTaskBody); body != nil {
			record.AssigneeAccountID = findAssignee(body)
			record.DueDate = findDueDate(body)

			summary := summaryText(body)
			if m := contextRefPattern.FindStringSubmatch(summary); m != nil {
				record.ContextIssueKey = m[1]
				summary = m[2]
			}
			record.Summary = summary
		}

		tasks = append(tasks, record)
	}

	return tasks, nil
}

func expandSelfClosing(body string) string {
	return selfClosingPattern.ReplaceAllString(body, "<$1$2></$1>")
}

// findNodesByTag finds all nodes with a specific tag name, in document order.
func findNodesByTag(root *html.Node, tagName string) []*html.Node {
	var nodes []*html.Node

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tagName {
			nodes = append(nodes, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}

	traverse(root)
	return nodes
}

// firstChildByTag returns the first direct or nested child with the tag.
func firstChildByTag(node *html.Node, tagName string) *html.Node {
	nodes := findNodesByTag(node, tagName)
	if len(nodes) == 0 {
		return nil
	}
	// findNodesByTag starting at node includes node itself
	for _, n := range nodes {
		if n != node {
			return n
		}
	}
	return nil
}

// getAttribute gets the value of an attribute from a node.
func getAttribute(node *html.Node, attrKey string) string {
	if node.Type != html.ElementNode {
		return ""
	}
	for _, attr := range node.Attr {
		if attr.Key == attrKey {
			return attr.Val
		}
	}
	return ""
}

// extractText gets all text content from a node and its children.
func extractText(node *html.Node) string {
	var text strings.Builder

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}

	traverse(node)
	return strings.TrimSpace(text.String())
}

func childText(node *html.Node, tagName string) string {
	child := firstChildByTag(node, tagName)
	if child == nil {
		return ""
	}
	return extractText(child)
}

// findAssignee returns the account id of the first user link in the
// task body, or empty when the task has no assignee.
func findAssignee(body *html.Node) string {
	for _, link := range findNodesByTag(body, tagLink) {
		for _, user := range findNodesByTag(link, "ri:user") {
			if id := getAttribute(user, attrAccountID); id != "" {
				return id
			}
		}
	}
	return ""
}

// findDueDate returns the YYYY-MM-DD value of the first date annotation
// in the task body, or empty when the task carries no date.
func findDueDate(body *html.Node) string {
	for _, t := range findNodesByTag(body, tagTime) {
		if d := getAttribute(t, attrDatetime); d != "" {
			return d
		}
	}
	return ""
}

// summaryText collects the free text of a task body, excluding the
// assignee link and date annotation markup, with whitespace collapsed.
func summaryText(body *html.Node) string {
	var text strings.Builder

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == tagLink || n.Data == tagTime) {
			return
		}
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}

	for c := body.FirstChild; c != nil; c = c.NextSibling {
		traverse(c)
	}

	return strings.Join(strings.Fields(text.String()), " ")
}

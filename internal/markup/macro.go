package markup

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/models"
)

// Codec generates and rewrites the Jira issue-reference macros embedded
// in storage-format page bodies. All rewrites are targeted string
// surgery: content outside the matched fragment is preserved
// byte-for-byte, and re-applying the same mapping is a no-op.
type Codec struct {
	serverName string
	serverID   string
}

// NewCodec creates a codec bound to one Jira application link.
func NewCodec(serverName, serverID string) *Codec {
	return &Codec{serverName: serverName, serverID: serverID}
}

// IssueMacro returns the minimal issue-reference fragment for a key.
func (c *Codec) IssueMacro(issueKey string) string {
	return c.macro(issueKey, false)
}

// IssueMacroWithSummary returns the annotated variant that asks
// Confluence to render the issue's live summary next to the key.
func (c *Codec) IssueMacroWithSummary(issueKey string) string {
	return c.macro(issueKey, true)
}

func (c *Codec) macro(issueKey string, showSummary bool) string {
	var b strings.Builder
	b.WriteString(`<ac:structured-macro ac:name="jira">`)
	b.WriteString(`<ac:parameter ac:name="server">` + html.EscapeString(c.serverName) + `</ac:parameter>`)
	b.WriteString(`<ac:parameter ac:name="serverId">` + html.EscapeString(c.serverID) + `</ac:parameter>`)
	b.WriteString(`<ac:parameter ac:name="key">` + html.EscapeString(issueKey) + `</ac:parameter>`)
	if showSummary {
		b.WriteString(`<ac:parameter ac:name="showSummary">true</ac:parameter>`)
	}
	b.WriteString(`</ac:structured-macro>`)
	return b.String()
}

// taskPattern matches the whole task element carrying the given id.
// Tasks do not nest, so the non-greedy close lands on the right tag.
func taskPattern(taskID string) *regexp.Regexp {
	return regexp.MustCompile(
		`(?s)<ac:task>\s*<ac:task-id>` + regexp.QuoteMeta(taskID) + `</ac:task-id>.*?</ac:task>`)
}

// jiraMacroPattern matches any whole jira macro element. Macros do not
// nest, so the non-greedy close lands on the right tag.
var jiraMacroPattern = regexp.MustCompile(
	`(?s)<ac:structured-macro[^>]*ac:name="jira"[^>]*>.*?</ac:structured-macro>`)

// findMacroForKey locates the jira macro whose key parameter equals
// issueKey, returning its start/end offsets or nil.
func findMacroForKey(body, issueKey string) []int {
	keyParam := `<ac:parameter ac:name="key">` + issueKey + `</ac:parameter>`
	for _, loc := range jiraMacroPattern.FindAllStringIndex(body, -1) {
		if strings.Contains(body[loc[0]:loc[1]], keyParam) {
			return loc
		}
	}
	return nil
}

// AddJiraLinks replaces, for each taskID->issueKey mapping, the
// matching task element with the annotated issue macro. Unmatched
// content, unrelated tasks included, is untouched; applying the same
// mapping twice yields the same body as applying it once. Returns the
// rewritten body and the number of tasks replaced.
func (c *Codec) AddJiraLinks(body string, links map[string]string) (string, int) {
	replaced := 0
	for taskID, issueKey := range links {
		pattern := taskPattern(taskID)
		if loc := pattern.FindStringIndex(body); loc != nil {
			body = body[:loc[0]] + c.IssueMacroWithSummary(issueKey) + body[loc[1]:]
			replaced++
		}
	}
	return body, replaced
}

// RestoreTask replaces the issue macro for issueKey with the rebuilt
// original task markup. Reports whether a macro was found.
func (c *Codec) RestoreTask(body, issueKey string, task models.TaskRecord) (string, bool) {
	loc := findMacroForKey(body, issueKey)
	if loc == nil {
		return body, false
	}
	return body[:loc[0]] + TaskMarkup(task) + body[loc[1]:], true
}

// TaskMarkup rebuilds the canonical storage-format element for a task
// record. The restored status is always "incomplete": undoing a sync
// returns the task to its pre-sync, unchecked state.
func TaskMarkup(task models.TaskRecord) string {
	var b strings.Builder
	b.WriteString(`<ac:task>`)
	b.WriteString(`<ac:task-id>` + html.EscapeString(task.TaskID) + `</ac:task-id>`)
	b.WriteString(`<ac:task-status>` + models.TaskStatusIncomplete + `</ac:task-status>`)
	b.WriteString(`<ac:task-body>`)
	if task.ContextIssueKey != "" {
		b.WriteString(html.EscapeString(task.ContextIssueKey) + ": ")
	}
	b.WriteString(html.EscapeString(task.Summary))
	if task.AssigneeAccountID != "" {
		b.WriteString(` <ac:link><ri:user ri:account-id="` + html.EscapeString(task.AssigneeAccountID) + `" /></ac:link>`)
	}
	if task.DueDate != "" {
		b.WriteString(` <time datetime="` + html.EscapeString(task.DueDate) + `" />`)
	}
	b.WriteString(`</ac:task-body>`)
	b.WriteString(`</ac:task>`)
	return b.String()
}

// keyParamPattern matches the key parameter of any jira macro.
var keyParamPattern = regexp.MustCompile(
	`(<ac:parameter ac:name="key">)([A-Z][A-Z0-9]*)-(\d+)(</ac:parameter>)`)

// HasProjectMacro reports whether the body contains an issue macro for
// the given project.
func HasProjectMacro(body, projectKey string) bool {
	for _, m := range keyParamPattern.FindAllStringSubmatch(body, -1) {
		if m[2] == projectKey {
			return true
		}
	}
	return false
}

// RekeyMacros rewrites every macro key belonging to oldProject to the
// new project's equivalent issue, preserving the issue number. Returns
// the rewritten body and the number of macros changed.
func RekeyMacros(body, oldProject, newProject string) (string, int) {
	changed := 0
	result := keyParamPattern.ReplaceAllStringFunc(body, func(match string) string {
		m := keyParamPattern.FindStringSubmatch(match)
		if m[2] != oldProject {
			return match
		}
		changed++
		return fmt.Sprintf("%s%s-%s%s", m[1], newProject, m[3], m[4])
	})
	return result, changed
}

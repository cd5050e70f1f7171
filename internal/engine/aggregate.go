package engine

import (
	"strings"

	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/models"
)

// aggregateStatus folds per-item outcomes into one overall status:
// all succeeded, mixed, none succeeded, or nothing was eligible.
func aggregateStatus(succeeded, failed int) string {
	switch {
	case succeeded == 0 && failed == 0:
		return models.StatusNoItems
	case failed == 0:
		return models.StatusSuccess
	case succeeded == 0:
		return models.StatusFailed
	default:
		return models.StatusPartialSuccess
	}
}

// projectKeyOf derives the project key from an issue key by taking the
// prefix before the separator ("WP-1" -> "WP").
func projectKeyOf(issueKey string) string {
	if idx := strings.Index(issueKey, "-"); idx > 0 {
		return issueKey[:idx]
	}
	return issueKey
}

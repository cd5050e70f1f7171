package engine

import "github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/models"

// ProgressNotifier receives run lifecycle events as they happen. The
// web layer streams them to connected clients; a nil notifier is valid.
type ProgressNotifier interface {
	RunStarted(runID string, pageCount int)
	TaskSynced(runID string, result models.TaskCreationResult)
	PageUpdated(runID string, result models.PageUpdateResult)
	RunFinished(result *models.RunResult)
}

type noopNotifier struct{}

func (noopNotifier) RunStarted(string, int)                       {}
func (noopNotifier) TaskSynced(string, models.TaskCreationResult) {}
func (noopNotifier) PageUpdated(string, models.PageUpdateResult)  {}
func (noopNotifier) RunFinished(*models.RunResult)                {}

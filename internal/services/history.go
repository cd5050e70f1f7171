package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/common"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/interfaces"
	"github.com/tdnguyen0403/confluence-jira-task-sync-sub001/internal/models"
)

const (
	runsBucket  = "runs"
	undosBucket = "undos"
)

// history persists run and undo results keyed by run id. It is a
// replay convenience for the API (list runs, undo-by-run-id), not a
// durable transaction log: undo correctness depends only on the data
// inside each stored result.
type history struct {
	db *bolt.DB
}

// NewHistory opens the history database, creating buckets as needed.
func NewHistory(config *common.StorageConfig) (interfaces.History, error) {
	dbDir := filepath.Dir(config.DatabasePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(config.DatabasePath, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(undosBucket)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &history{db: db}, nil
}

func (h *history) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

func (h *history) SaveRun(result *models.RunResult) error {
	if result.RunID == "" {
		return common.NewStorageError("NO_RUN_ID", "run result has no run id")
	}
	return h.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(runsBucket))
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal run %s: %w", result.RunID, err)
		}
		if err := bucket.Put([]byte(result.RunID), data); err != nil {
			return fmt.Errorf("failed to save run %s: %w", result.RunID, err)
		}
		return nil
	})
}

func (h *history) LoadRun(runID string) (*models.RunResult, error) {
	var result *models.RunResult
	err := h.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(runsBucket))
		data := bucket.Get([]byte(runID))
		if data == nil {
			return common.NewStorageError("RUN_NOT_FOUND", fmt.Sprintf("no stored run %s", runID))
		}
		result = &models.RunResult{}
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("failed to unmarshal run %s: %w", runID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (h *history) LoadAllRuns() ([]*models.RunResult, error) {
	var results []*models.RunResult
	err := h.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(runsBucket))
		return bucket.ForEach(func(k, v []byte) error {
			result := &models.RunResult{}
			if err := json.Unmarshal(v, result); err != nil {
				return fmt.Errorf("failed to unmarshal run %s: %w", string(k), err)
			}
			results = append(results, result)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (h *history) SaveUndo(result *models.UndoResult) error {
	if result.RunID == "" {
		return common.NewStorageError("NO_RUN_ID", "undo result has no run id")
	}
	return h.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(undosBucket))
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal undo %s: %w", result.RunID, err)
		}
		if err := bucket.Put([]byte(result.RunID), data); err != nil {
			return fmt.Errorf("failed to save undo %s: %w", result.RunID, err)
		}
		return nil
	})
}

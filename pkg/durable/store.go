/*
Package durable is the coordinator's durability sink: a BoltDB-backed
key-value store keyed by task id, the system of record the in-memory
cache is rebuilt from on startup and written back to asynchronously by
pkg/flush. A task is this coordinator's only durable entity, so it uses
a single bucket plus a second bucket for the conflict audit log.
*/
package durable

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/collabboard/coordinator/pkg/types"
)

var (
	bucketTasks = []byte("tasks")
	bucketAudit = []byte("conflict_audit_log")
)

// Store defines the durable upsert/delete sink a FlushQueue drains into.
type Store interface {
	PutTask(task *types.Task) error
	DeleteTask(id string) error
	GetTask(id string) (*types.Task, error)
	ListTasks() ([]*types.Task, error)
	Close() error
}

// AuditStore is the append-only sink for conflict audit records, written
// fire-and-forget whenever a TASK_MOVE lock acquisition has a loser.
type AuditStore interface {
	AppendAudit(record *types.ConflictAuditRecord) error
	ListAudit() ([]*types.ConflictAuditRecord, error)
}

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) a BoltDB file under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "board.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketTasks, bucketAudit} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// PutTask upserts a task.
func (s *BoltStore) PutTask(task *types.Task) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		data, err := json.Marshal(task)
		if err != nil {
			return err
		}
		return b.Put([]byte(task.ID), data)
	})
}

// GetTask retrieves a task by id.
func (s *BoltStore) GetTask(id string) (*types.Task, error) {
	var task types.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("task not found: %s", id)
		}
		return json.Unmarshal(data, &task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks returns every durably-stored task.
func (s *BoltStore) ListTasks() ([]*types.Task, error) {
	var tasks []*types.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		return b.ForEach(func(k, v []byte) error {
			var task types.Task
			if err := json.Unmarshal(v, &task); err != nil {
				return err
			}
			tasks = append(tasks, &task)
			return nil
		})
	})
	return tasks, err
}

// DeleteTask removes a task.
func (s *BoltStore) DeleteTask(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		return b.Delete([]byte(id))
	})
}

// AppendAudit writes one conflict audit record, keyed by its own id.
func (s *BoltStore) AppendAudit(record *types.ConflictAuditRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAudit)
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put([]byte(record.ID), data)
	})
}

// ListAudit returns every recorded conflict audit row.
func (s *BoltStore) ListAudit() ([]*types.ConflictAuditRecord, error) {
	var records []*types.ConflictAuditRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAudit)
		return b.ForEach(func(k, v []byte) error {
			var record types.ConflictAuditRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, &record)
			return nil
		})
	})
	return records, err
}

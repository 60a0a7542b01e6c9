// Package transferstore persists MetadataTransfer history across process
// restarts: a deploy or retrieve's id, status, and final
// result survive past the CLI invocation that started it, so `transfer
// list`/`transfer status <id>` can report on operations the current
// process didn't itself drive to completion. Records are JSON documents
// written through the pluggable Backend, keyed by operation id.
package transferstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/architect-io/mdpack/pkg/transfer"
	"github.com/architect-io/mdpack/pkg/transferstore/backend"
)

// TransferRecord is one transfer's persisted history.
type TransferRecord struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"` // "deploy" or "retrieve"
	Status     transfer.State `json:"status"`
	APIVersion string         `json:"apiVersion"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`

	DeployResult   *transfer.DeployResult   `json:"deployResult,omitempty"`
	RetrieveResult *transfer.RetrieveResult `json:"retrieveResult,omitempty"`
	Error          string                   `json:"error,omitempty"`
}

// Store persists TransferRecords through a backend.Backend.
type Store struct {
	b backend.Backend
}

// New constructs a Store over an already-created backend.
func New(b backend.Backend) *Store {
	return &Store{b: b}
}

// NewFromConfig constructs a Store, creating its backend from cfg.
func NewFromConfig(cfg backend.Config) (*Store, error) {
	b, err := backend.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer store backend: %w", err)
	}
	return New(b), nil
}

func recordPath(id string) string {
	return path.Join("transfers", id+".json")
}

// Save writes (or overwrites) a TransferRecord.
func (s *Store) Save(ctx context.Context, r *TransferRecord) error {
	content, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transfer record: %w", err)
	}
	return s.b.Write(ctx, recordPath(r.ID), bytes.NewReader(content))
}

// Get loads a TransferRecord by id.
func (s *Store) Get(ctx context.Context, id string) (*TransferRecord, error) {
	reader, err := s.b.Read(ctx, recordPath(id))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var r TransferRecord
	if err := json.NewDecoder(reader).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode transfer record: %w", err)
	}
	return &r, nil
}

// Delete removes a TransferRecord by id. Idempotent.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.b.Delete(ctx, recordPath(id))
}

// List returns every persisted transfer record, most-recently-started
// first. Records that cannot be read or decoded are skipped.
func (s *Store) List(ctx context.Context) ([]*TransferRecord, error) {
	paths, err := s.b.List(ctx, "transfers/")
	if err != nil {
		return nil, err
	}

	records := make([]*TransferRecord, 0, len(paths))
	for _, p := range paths {
		reader, err := s.b.Read(ctx, p)
		if err != nil {
			continue
		}
		var r TransferRecord
		err = json.NewDecoder(reader).Decode(&r)
		reader.Close()
		if err != nil {
			continue
		}
		records = append(records, &r)
	}

	sortRecordsByStartedAtDesc(records)
	return records, nil
}

func sortRecordsByStartedAtDesc(records []*TransferRecord) {
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && records[j].StartedAt.After(records[j-1].StartedAt); j-- {
			records[j], records[j-1] = records[j-1], records[j]
		}
	}
}

// RecordFromResult builds the terminal TransferRecord for a finished
// transfer, ready to Save.
func RecordFromResult(id, kind, apiVersion string, startedAt time.Time, result transfer.Result) *TransferRecord {
	finishedAt := time.Now()
	r := &TransferRecord{
		ID: id, Kind: kind, Status: result.Status,
		APIVersion: apiVersion, StartedAt: startedAt, FinishedAt: &finishedAt,
		DeployResult: result.Deploy, RetrieveResult: result.Retrieve,
	}
	if result.Err != nil {
		r.Error = result.Err.Error()
	}
	return r
}

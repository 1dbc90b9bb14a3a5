package service

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vanshika/purchasewatch/backend/internal/domain"
	"github.com/vanshika/purchasewatch/backend/internal/repository"
)

const friendshipBatchSize = 500

// TaskError accumulates multiple errors produced during a bulk export.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	b.WriteString("multiple errors:")
	for _, err := range e.Errors {
		b.WriteString(" ")
		b.WriteString(err.Error())
		b.WriteString(";")
	}
	return b.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *TaskError) Unwrap() []error {
	return e.Errors
}

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// GraphRepository is the storage contract required by the exporter.
type GraphRepository interface {
	UpsertFriendships(ctx context.Context, edges []domain.Friendship) error
	UpsertFlaggedPurchase(ctx context.Context, runID, flagID string, flag domain.FlaggedPurchase) error
}

// FlagStore reads back the flags stored for a run.
type FlagStore interface {
	CountFlaggedPurchases(ctx context.Context, runID string) (int64, error)
	FlaggedPurchases(ctx context.Context, runID string) ([]repository.FlagRecord, error)
}

// Exporter mirrors the final friendship graph and the flagged purchases of a
// run into the graph database using a pool of workers.
type Exporter struct {
	repo    GraphRepository
	runID   uuid.UUID
	workers int
}

// NewExporter creates a new Exporter with the provided concurrency.
func NewExporter(repo GraphRepository, runID uuid.UUID, workers int) *Exporter {
	if workers <= 0 {
		workers = 4
	}
	return &Exporter{
		repo:    repo,
		runID:   runID,
		workers: workers,
	}
}

// ExportFriendships writes edges in fixed-size batches concurrently.
func (e *Exporter) ExportFriendships(ctx context.Context, edges []domain.Friendship) error {
	batches := (len(edges) + friendshipBatchSize - 1) / friendshipBatchSize
	return e.run(ctx, batches, func(idx int) error {
		start := idx * friendshipBatchSize
		end := min(start+friendshipBatchSize, len(edges))
		return e.repo.UpsertFriendships(ctx, edges[start:end])
	})
}

// ExportFlags writes every flagged purchase concurrently. Flag IDs are derived
// from the run ID and the purchase sequence number, so re-exporting a run is
// idempotent.
func (e *Exporter) ExportFlags(ctx context.Context, flags []domain.FlaggedPurchase) error {
	runID := e.runID.String()
	return e.run(ctx, len(flags), func(idx int) error {
		return e.repo.UpsertFlaggedPurchase(ctx, runID, e.FlagID(flags[idx]), flags[idx])
	})
}

// FlagID returns the stable identifier used for flag in this run.
func (e *Exporter) FlagID(flag domain.FlaggedPurchase) string {
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], flag.Purchase.Sequence)
	return uuid.NewSHA1(e.runID, seq[:]).String()
}

// Reconcile compares the flags stored for this run with flags and returns the
// ones that are missing. The full listing is only read when the counts differ.
func (e *Exporter) Reconcile(ctx context.Context, store FlagStore, flags []domain.FlaggedPurchase) ([]domain.FlaggedPurchase, error) {
	runID := e.runID.String()
	total, err := store.CountFlaggedPurchases(ctx, runID)
	if err != nil {
		return nil, err
	}
	if total == int64(len(flags)) {
		return nil, nil
	}

	stored, err := store.FlaggedPurchases(ctx, runID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(stored))
	for _, rec := range stored {
		seen[rec.FlagID] = struct{}{}
	}

	var missing []domain.FlaggedPurchase
	for _, flag := range flags {
		if _, ok := seen[e.FlagID(flag)]; !ok {
			missing = append(missing, flag)
		}
	}
	return missing, nil
}

func (e *Exporter) run(ctx context.Context, total int, workerFn func(idx int) error) error {
	if total == 0 {
		return nil
	}
	indexCh := make(chan int)
	errCh := make(chan error, total)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			if err := workerFn(idx); err != nil {
				select {
				case errCh <- err:
				case <-ctx.Done():
					return
				}
			}
		}
	}

	for i := 0; i < min(e.workers, total); i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := 0; i < total; i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	var taskErr TaskError
	for err := range errCh {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		taskErr.append(err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return taskErr.asError()
}

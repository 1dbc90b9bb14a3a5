package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/purchasewatch/backend/internal/domain"
	"github.com/vanshika/purchasewatch/backend/internal/graph"
	"github.com/vanshika/purchasewatch/backend/internal/repository"
)

type stubGraphRepo struct {
	mu         sync.Mutex
	batchSizes []int
	edges      int
	flags      map[string]domain.FlaggedPurchase
	runIDs     map[string]struct{}
	failSeq    uint64
}

func newStubGraphRepo() *stubGraphRepo {
	return &stubGraphRepo{
		flags:  make(map[string]domain.FlaggedPurchase),
		runIDs: make(map[string]struct{}),
	}
}

func (s *stubGraphRepo) UpsertFriendships(_ context.Context, edges []domain.Friendship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchSizes = append(s.batchSizes, len(edges))
	s.edges += len(edges)
	return nil
}

func (s *stubGraphRepo) UpsertFlaggedPurchase(_ context.Context, runID, flagID string, flag domain.FlaggedPurchase) error {
	if s.failSeq != 0 && flag.Purchase.Sequence == s.failSeq {
		return errors.New("write rejected")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runIDs[runID] = struct{}{}
	s.flags[flagID] = flag
	return nil
}

func flagsWithSequences(seqs ...uint64) []domain.FlaggedPurchase {
	out := make([]domain.FlaggedPurchase, 0, len(seqs))
	for _, seq := range seqs {
		out = append(out, domain.FlaggedPurchase{
			UserID:   domain.UserID(seq),
			Purchase: domain.Purchase{Sequence: seq, Amount: 100},
		})
	}
	return out
}

func TestExporter_ExportFriendshipsBatches(t *testing.T) {
	repo := newStubGraphRepo()
	exporter := NewExporter(repo, uuid.New(), 3)

	edges := make([]domain.Friendship, 0, 1201)
	for i := range 1201 {
		edges = append(edges, domain.NewFriendship(domain.UserID(i), domain.UserID(i+1)))
	}

	require.NoError(t, exporter.ExportFriendships(context.Background(), edges))
	assert.Equal(t, 1201, repo.edges)
	assert.ElementsMatch(t, []int{500, 500, 201}, repo.batchSizes)
}

func TestExporter_ExportFriendshipsEmpty(t *testing.T) {
	repo := newStubGraphRepo()
	require.NoError(t, NewExporter(repo, uuid.New(), 2).ExportFriendships(context.Background(), nil))
	assert.Empty(t, repo.batchSizes)
}

func TestExporter_ExportFlags(t *testing.T) {
	repo := newStubGraphRepo()
	runID := uuid.New()
	exporter := NewExporter(repo, runID, 4)

	require.NoError(t, exporter.ExportFlags(context.Background(), flagsWithSequences(3, 7, 11)))
	assert.Len(t, repo.flags, 3)
	assert.Equal(t, map[string]struct{}{runID.String(): {}}, repo.runIDs)
}

func TestExporter_FlagIDIsStable(t *testing.T) {
	runID := uuid.New()
	flag := flagsWithSequences(42)[0]

	first := NewExporter(nil, runID, 1).FlagID(flag)
	second := NewExporter(nil, runID, 8).FlagID(flag)
	other := NewExporter(nil, uuid.New(), 1).FlagID(flag)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	assert.NotEqual(t, first, NewExporter(nil, runID, 1).FlagID(flagsWithSequences(43)[0]))
}

func TestExporter_CollectsTaskErrors(t *testing.T) {
	repo := newStubGraphRepo()
	repo.failSeq = 7
	exporter := NewExporter(repo, uuid.New(), 2)

	err := exporter.ExportFlags(context.Background(), flagsWithSequences(3, 7, 11))
	require.Error(t, err)

	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Len(t, taskErr.Errors, 1)
	assert.Equal(t, "write rejected", err.Error())
	assert.Len(t, repo.flags, 2)
}

func TestExporter_CancelledContext(t *testing.T) {
	repo := newStubGraphRepo()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewExporter(repo, uuid.New(), 2).ExportFlags(ctx, flagsWithSequences(1, 2, 3))
	require.ErrorIs(t, err, context.Canceled)
}

func TestTaskError_Message(t *testing.T) {
	var taskErr TaskError
	assert.Equal(t, "no errors", taskErr.Error())
	assert.NoError(t, taskErr.asError())

	sentinel := errors.New("b")
	taskErr.append(errors.New("a"))
	taskErr.append(nil)
	taskErr.append(sentinel)
	assert.Equal(t, "multiple errors: a; b;", taskErr.Error())
	assert.ErrorIs(t, &taskErr, sentinel)
}

type stubFlagStore struct {
	count     int64
	records   []repository.FlagRecord
	listCalls int
}

func (s *stubFlagStore) CountFlaggedPurchases(context.Context, string) (int64, error) {
	return s.count, nil
}

func (s *stubFlagStore) FlaggedPurchases(context.Context, string) ([]repository.FlagRecord, error) {
	s.listCalls++
	return s.records, nil
}

func TestExporter_ReconcileMatchingCount(t *testing.T) {
	exporter := NewExporter(nil, uuid.New(), 1)
	store := &stubFlagStore{count: 2}

	missing, err := exporter.Reconcile(context.Background(), store, flagsWithSequences(1, 2))
	require.NoError(t, err)
	assert.Empty(t, missing)
	assert.Zero(t, store.listCalls, "listing is skipped when counts agree")
}

func TestExporter_ReconcileReportsMissing(t *testing.T) {
	exporter := NewExporter(nil, uuid.New(), 1)
	flags := flagsWithSequences(1, 2, 3)
	store := &stubFlagStore{
		count: 2,
		records: []repository.FlagRecord{
			{FlagID: exporter.FlagID(flags[0])},
			{FlagID: exporter.FlagID(flags[2])},
		},
	}

	missing, err := exporter.Reconcile(context.Background(), store, flags)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, uint64(2), missing[0].Purchase.Sequence)
}

func TestExporter_ReconcileAgainstRepository(t *testing.T) {
	runID := uuid.New()
	exporter := NewExporter(nil, runID, 1)
	flags := flagsWithSequences(5)

	mem := graph.NewMemoryClient().
		Respond("count(f)", graph.Result{Records: []graph.Record{{"total": int64(0)}}}).
		Respond("ORDER BY f.sequence", graph.Result{})

	missing, err := exporter.Reconcile(context.Background(), repository.New(mem), flags)
	require.NoError(t, err)
	assert.Equal(t, flags, missing)
	assert.Equal(t, runID.String(), mem.Statements(graph.ModeRead)[0].Params["runId"])
}

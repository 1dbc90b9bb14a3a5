// Package repository mirrors detector results into the graph database.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vanshika/purchasewatch/backend/internal/domain"
	"github.com/vanshika/purchasewatch/backend/internal/graph"
)

// FlagRecord is a flagged purchase as stored for a run.
type FlagRecord struct {
	FlagID     string
	UserID     string
	Sequence   int64
	Amount     float64
	Mean       float64
	StdDev     float64
	OccurredAt *time.Time
	Line       string
}

// Repository encapsulates graph persistence operations.
type Repository struct {
	client graph.Client
}

// New instantiates a Repository backed by the supplied graph client.
func New(client graph.Client) *Repository {
	return &Repository{client: client}
}

// EnsureSchema creates the uniqueness constraints the MERGE statements rely on.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaCypher {
		if _, err := r.client.ExecuteWrite(ctx, stmt, nil); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// UpsertFriendships merges one undirected FRIENDS_WITH edge per friendship.
func (r *Repository) UpsertFriendships(ctx context.Context, edges []domain.Friendship) error {
	if len(edges) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, map[string]any{
			"a": e.A.String(),
			"b": e.B.String(),
		})
	}

	if _, err := r.client.ExecuteWrite(ctx, upsertFriendshipsCypher, map[string]any{"edges": rows}); err != nil {
		return fmt.Errorf("upsert %d friendships: %w", len(edges), err)
	}
	return nil
}

// UpsertFlaggedPurchase stores flag under flagID and links it to its buyer.
func (r *Repository) UpsertFlaggedPurchase(ctx context.Context, runID, flagID string, flag domain.FlaggedPurchase) error {
	if runID == "" || flagID == "" {
		return errors.New("run id and flag id are required")
	}

	params := map[string]any{
		"userId": flag.UserID.String(),
		"flagId": flagID,
		"props": map[string]any{
			"runId":      runID,
			"sequence":   int64(flag.Purchase.Sequence),
			"amount":     flag.Purchase.Amount,
			"mean":       flag.Mean,
			"sd":         flag.StdDev,
			"occurredAt": formatTime(flag.Purchase.OccurredAt),
			"line":       flag.Line,
		},
	}

	if _, err := r.client.ExecuteWrite(ctx, upsertFlagCypher, params); err != nil {
		return fmt.Errorf("upsert flagged purchase %s: %w", flagID, err)
	}
	return nil
}

// CountFlaggedPurchases returns how many flags are stored for runID.
func (r *Repository) CountFlaggedPurchases(ctx context.Context, runID string) (int64, error) {
	res, err := r.client.ExecuteRead(ctx, countFlagsCypher, map[string]any{"runId": runID})
	if err != nil {
		return 0, fmt.Errorf("count flagged purchases: %w", err)
	}
	rec, err := res.Single()
	if err != nil {
		return 0, fmt.Errorf("count flagged purchases: %w", err)
	}
	return rec.Int64("total")
}

// FlaggedPurchases lists the flags stored for runID ordered by sequence.
func (r *Repository) FlaggedPurchases(ctx context.Context, runID string) ([]FlagRecord, error) {
	res, err := r.client.ExecuteRead(ctx, listFlagsCypher, map[string]any{"runId": runID})
	if err != nil {
		return nil, fmt.Errorf("list flagged purchases: %w", err)
	}

	out := make([]FlagRecord, 0, len(res.Records))
	for _, rec := range res.Records {
		flag, err := decodeFlag(rec)
		if err != nil {
			return nil, fmt.Errorf("decode flagged purchase: %w", err)
		}
		out = append(out, flag)
	}
	return out, nil
}

func decodeFlag(rec graph.Record) (FlagRecord, error) {
	var (
		flag FlagRecord
		err  error
	)
	if flag.FlagID, err = rec.String("flagId"); err != nil {
		return FlagRecord{}, err
	}
	if flag.UserID, err = rec.String("userId"); err != nil {
		return FlagRecord{}, err
	}
	if flag.Sequence, err = rec.Int64("sequence"); err != nil {
		return FlagRecord{}, err
	}
	if flag.Amount, err = rec.Float64("amount"); err != nil {
		return FlagRecord{}, err
	}
	if flag.Mean, err = rec.Float64("mean"); err != nil {
		return FlagRecord{}, err
	}
	if flag.StdDev, err = rec.Float64("sd"); err != nil {
		return FlagRecord{}, err
	}
	flag.Line, _ = rec.String("line")
	if ts, err := rec.String("occurredAt"); err == nil {
		flag.OccurredAt = parseTime(ts)
	}
	return flag, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

var schemaCypher = []string{
	`CREATE CONSTRAINT user_id IF NOT EXISTS FOR (u:User) REQUIRE u.userId IS UNIQUE`,
	`CREATE CONSTRAINT flag_id IF NOT EXISTS FOR (f:FlaggedPurchase) REQUIRE f.flagId IS UNIQUE`,
}

const upsertFriendshipsCypher = `
UNWIND $edges AS edge
MERGE (a:User {userId: edge.a})
MERGE (b:User {userId: edge.b})
MERGE (a)-[:FRIENDS_WITH]-(b)
`

const upsertFlagCypher = `
MERGE (u:User {userId: $userId})
MERGE (f:FlaggedPurchase {flagId: $flagId})
SET f += $props
MERGE (u)-[:MADE]->(f)
`

const countFlagsCypher = `
MATCH (f:FlaggedPurchase {runId: $runId})
RETURN count(f) AS total
`

const listFlagsCypher = `
MATCH (u:User)-[:MADE]->(f:FlaggedPurchase {runId: $runId})
RETURN f.flagId AS flagId,
       u.userId AS userId,
       f.sequence AS sequence,
       f.amount AS amount,
       f.mean AS mean,
       f.sd AS sd,
       f.occurredAt AS occurredAt,
       f.line AS line
ORDER BY f.sequence
`

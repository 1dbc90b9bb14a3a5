// Package generator produces synthetic batch and stream feeds for exercising
// the detector end to end.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/vanshika/purchasewatch/backend/internal/domain"
)

const timestampLayout = time.DateTime

// epoch is the timestamp of the first generated event.
var epoch = time.Date(2017, 6, 13, 11, 33, 1, 0, time.UTC)

// Dataset holds the generated feeds as JSON lines without trailing newlines.
type Dataset struct {
	Batch  []string
	Stream []string
}

// Generator produces synthetic feeds. It is not safe for concurrent use.
type Generator struct {
	cfg   Config
	rand  *rand.Rand
	clock time.Time

	spend []float64
	edges []domain.Friendship
	index map[domain.Friendship]int
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.NumUsers < 2 {
		cfg.NumUsers = def.NumUsers
	}
	if cfg.NumBatchEvents < 0 {
		cfg.NumBatchEvents = def.NumBatchEvents
	}
	if cfg.NumStreamEvents < 0 {
		cfg.NumStreamEvents = def.NumStreamEvents
	}
	if cfg.Degree <= 0 {
		cfg.Degree = def.Degree
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.FriendshipShare <= 0 || cfg.FriendshipShare >= 1 {
		cfg.FriendshipShare = def.FriendshipShare
	}
	if cfg.UnfriendChance < 0 || cfg.UnfriendChance >= 1 {
		cfg.UnfriendChance = def.UnfriendChance
	}
	if cfg.SpikeChance < 0 || cfg.SpikeChance >= 1 {
		cfg.SpikeChance = def.SpikeChance
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:   cfg,
		rand:  rand.New(rand.NewSource(cfg.Seed)),
		clock: epoch,
		index: make(map[domain.Friendship]int),
	}
}

// Config returns the effective configuration after defaults were applied.
func (g *Generator) Config() Config {
	return g.cfg
}

// Generate synthesises both feeds. The batch feed starts with the
// configuration record. It respects context cancellation.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	g.spend = make([]float64, g.cfg.NumUsers)
	for i := range g.spend {
		g.spend[i] = 10 + g.rand.Float64()*90
	}

	cfgLine, err := marshalLine(configRecord{
		D: strconv.Itoa(g.cfg.Degree),
		T: strconv.Itoa(g.cfg.Window),
	})
	if err != nil {
		return Dataset{}, err
	}

	batch := make([]string, 0, g.cfg.NumBatchEvents+1)
	batch = append(batch, cfgLine)
	for range g.cfg.NumBatchEvents {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}
		line, err := g.nextEvent()
		if err != nil {
			return Dataset{}, err
		}
		batch = append(batch, line)
	}

	stream := make([]string, 0, g.cfg.NumStreamEvents)
	for range g.cfg.NumStreamEvents {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}
		line, err := g.nextEvent()
		if err != nil {
			return Dataset{}, err
		}
		stream = append(stream, line)
	}

	return Dataset{Batch: batch, Stream: stream}, nil
}

func (g *Generator) nextEvent() (string, error) {
	g.clock = g.clock.Add(time.Duration(g.rand.Intn(3)) * time.Second)
	ts := g.clock.Format(timestampLayout)

	if g.rand.Float64() >= g.cfg.FriendshipShare {
		id := g.randomUser()
		return marshalLine(purchaseRecord{
			EventType: "purchase",
			Timestamp: ts,
			ID:        id.String(),
			Amount:    strconv.FormatFloat(g.amount(id), 'f', 2, 64),
		})
	}

	if len(g.edges) > 0 && g.rand.Float64() < g.cfg.UnfriendChance {
		edge := g.removeRandomEdge()
		return marshalLine(friendshipRecord{EventType: "unfriend", Timestamp: ts, ID1: edge.A.String(), ID2: edge.B.String()})
	}

	a := g.randomUser()
	b := g.randomUser()
	for b == a {
		b = g.randomUser()
	}
	g.addEdge(domain.NewFriendship(a, b))
	return marshalLine(friendshipRecord{EventType: "befriend", Timestamp: ts, ID1: a.String(), ID2: b.String()})
}

// randomUser returns an ID in [1, NumUsers].
func (g *Generator) randomUser() domain.UserID {
	return domain.UserID(g.rand.Intn(g.cfg.NumUsers) + 1)
}

// amount draws around the buyer's typical spend and occasionally spikes.
func (g *Generator) amount(id domain.UserID) float64 {
	base := g.spend[id-1]
	v := math.Max(0.01, base+g.rand.NormFloat64()*base*0.2)
	if g.rand.Float64() < g.cfg.SpikeChance {
		v *= float64(10 + g.rand.Intn(41))
	}
	return v
}

func (g *Generator) addEdge(e domain.Friendship) {
	if _, ok := g.index[e]; ok {
		return
	}
	g.index[e] = len(g.edges)
	g.edges = append(g.edges, e)
}

func (g *Generator) removeRandomEdge() domain.Friendship {
	i := g.rand.Intn(len(g.edges))
	e := g.edges[i]
	last := len(g.edges) - 1
	g.edges[i] = g.edges[last]
	g.index[g.edges[i]] = i
	g.edges = g.edges[:last]
	delete(g.index, e)
	return e
}

type configRecord struct {
	D string `json:"D"`
	T string `json:"T"`
}

type purchaseRecord struct {
	EventType string `json:"event_type"`
	Timestamp string `json:"timestamp"`
	ID        string `json:"id"`
	Amount    string `json:"amount"`
}

type friendshipRecord struct {
	EventType string `json:"event_type"`
	Timestamp string `json:"timestamp"`
	ID1       string `json:"id1"`
	ID2       string `json:"id2"`
}

func marshalLine(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	return string(b), nil
}

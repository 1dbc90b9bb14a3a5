package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vanshika/purchasewatch/backend/internal/anomaly"
	"github.com/vanshika/purchasewatch/backend/internal/domain"
	"github.com/vanshika/purchasewatch/backend/internal/events"
	"github.com/vanshika/purchasewatch/backend/internal/metrics"
	"github.com/vanshika/purchasewatch/backend/internal/network"
)

// Skip reasons reported to logs and metrics.
const (
	reasonNotObject         = "not_object"
	reasonMissingEventType  = "missing_event_type"
	reasonMissingField      = "missing_field"
	reasonInvalidField      = "invalid_field"
	reasonUnknownEventType  = "unknown_event_type"
	reasonSelfFriendship    = "self_friendship"
	reasonNotConfigured     = "not_configured"
	reasonAlreadyConfigured = "already_configured"
	reasonInvalidSettings   = "invalid_settings"
	reasonInvalidAmount     = "invalid_amount"
	reasonMissingTimestamp  = "missing_timestamp"
	reasonConfigInStream    = "config_in_stream"
	reasonOther             = "other"
)

// Recorder receives run metrics from the pipeline.
type Recorder interface {
	Event(feed, kind string)
	Skipped(feed, reason string)
	Classified(neighborhood, window int, sufficient, anomalous bool)
	Users(n int)
	FeedDuration(feed string, d time.Duration)
}

// Summary counts what a run did.
type Summary struct {
	BatchRecords        int
	StreamRecords       int
	Skipped             int
	Purchases           int
	Flagged             int
	InsufficientHistory int
}

// Pipeline replays the batch feed to seed the social graph and then replays
// the stream feed, classifying every purchase as it is recorded.
type Pipeline struct {
	graph      *network.Graph
	classifier *anomaly.Classifier
	logger     *slog.Logger
	metrics    Recorder
	summary    Summary
}

// NewPipeline wires a pipeline around graph. A nil recorder disables metrics.
func NewPipeline(graph *network.Graph, classifier *anomaly.Classifier, logger *slog.Logger, recorder Recorder) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Pipeline{
		graph:      graph,
		classifier: classifier,
		logger:     logger,
		metrics:    recorder,
	}
}

// Summary returns the counts accumulated so far.
func (p *Pipeline) Summary() Summary {
	return p.summary
}

// ReplayBatch seeds the graph from the batch feed. Purchases are recorded
// without classification.
func (p *Pipeline) ReplayBatch(ctx context.Context, r io.Reader) error {
	return p.replay(ctx, metrics.FeedBatch, r, func(lineNo int, ev domain.Event) error {
		p.summary.BatchRecords++
		switch ev.Kind {
		case domain.EventConfig:
			if err := p.graph.Configure(ev.Degree, ev.Window); err != nil {
				p.skip(metrics.FeedBatch, lineNo, err)
				return nil
			}
			p.logger.Info("network configured", "degree", ev.Degree, "window", ev.Window)
		case domain.EventBefriend, domain.EventUnfriend:
			p.applyFriendship(metrics.FeedBatch, lineNo, ev)
		case domain.EventPurchase:
			if _, err := p.graph.RecordPurchase(ev.UserID, ev.Timestamp, ev.Amount); err != nil {
				p.skip(metrics.FeedBatch, lineNo, err)
				return nil
			}
			p.summary.Purchases++
		default:
			p.skipUnknown(metrics.FeedBatch, lineNo, ev)
		}
		return nil
	})
}

// ProcessStream applies the stream feed to the graph and writes every
// anomalous purchase to w as the original line with "mean" and "sd" appended.
// It returns the flagged purchases in processing order.
func (p *Pipeline) ProcessStream(ctx context.Context, r io.Reader, w io.Writer) ([]domain.FlaggedPurchase, error) {
	if !p.graph.Configured() {
		p.logger.Warn("stream replay started before the network was configured; purchases will be skipped")
	}

	var flagged []domain.FlaggedPurchase
	err := p.replay(ctx, metrics.FeedStream, r, func(lineNo int, ev domain.Event) error {
		p.summary.StreamRecords++
		switch ev.Kind {
		case domain.EventConfig:
			p.skipReason(metrics.FeedStream, lineNo, reasonConfigInStream, errors.New("configuration records are only read from the batch feed"))
		case domain.EventBefriend, domain.EventUnfriend:
			p.applyFriendship(metrics.FeedStream, lineNo, ev)
		case domain.EventPurchase:
			flag, ok, err := p.processPurchase(lineNo, ev)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if _, err := io.WriteString(w, flag.Line+"\n"); err != nil {
				return fmt.Errorf("write flagged purchase: %w", err)
			}
			flagged = append(flagged, flag)
		default:
			p.skipUnknown(metrics.FeedStream, lineNo, ev)
		}
		return nil
	})
	return flagged, err
}

// processPurchase records the purchase and classifies it. ok is true when the
// purchase was flagged.
func (p *Pipeline) processPurchase(lineNo int, ev domain.Event) (flag domain.FlaggedPurchase, ok bool, err error) {
	purchase, err := p.graph.RecordPurchase(ev.UserID, ev.Timestamp, ev.Amount)
	if err != nil {
		p.skip(metrics.FeedStream, lineNo, err)
		return domain.FlaggedPurchase{}, false, nil
	}
	p.summary.Purchases++

	verdict := p.classifier.Classify(ev.UserID, purchase)
	p.metrics.Classified(verdict.NeighborhoodSize, verdict.WindowSize, verdict.SufficientHistory, verdict.Anomalous)
	if !verdict.SufficientHistory {
		p.summary.InsufficientHistory++
	}
	if !verdict.Anomalous {
		return domain.FlaggedPurchase{}, false, nil
	}

	line, err := events.AppendStatistics(ev.Raw, verdict.Mean, verdict.StdDev)
	if err != nil {
		p.skipReason(metrics.FeedStream, lineNo, reasonOther, err)
		return domain.FlaggedPurchase{}, false, nil
	}

	p.summary.Flagged++
	p.logger.Debug("purchase flagged",
		"line", lineNo,
		"user_id", ev.UserID.String(),
		"amount", ev.Amount,
		"mean", verdict.Mean,
		"sd", verdict.StdDev,
	)
	return domain.FlaggedPurchase{
		UserID:   ev.UserID,
		Purchase: purchase,
		Mean:     verdict.Mean,
		StdDev:   verdict.StdDev,
		Line:     string(line),
	}, true, nil
}

func (p *Pipeline) applyFriendship(feed string, lineNo int, ev domain.Event) {
	var err error
	if ev.Kind == domain.EventBefriend {
		err = p.graph.AddFriendship(ev.UserID, ev.OtherID)
	} else {
		err = p.graph.RemoveFriendship(ev.UserID, ev.OtherID)
	}
	if err != nil {
		p.skip(feed, lineNo, err)
	}
}

func (p *Pipeline) replay(ctx context.Context, feed string, r io.Reader, handle func(lineNo int, ev domain.Event) error) error {
	start := time.Now()
	reader := events.NewReader(r)
	for reader.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		ev, err := events.Decode(reader.Line())
		if err != nil {
			p.skip(feed, reader.LineNumber(), err)
			continue
		}
		p.metrics.Event(feed, ev.Kind.String())

		if err := handle(reader.LineNumber(), ev); err != nil {
			return err
		}
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("read %s feed: %w", feed, err)
	}

	p.metrics.Users(p.graph.Len())
	p.metrics.FeedDuration(feed, time.Since(start))
	return nil
}

func (p *Pipeline) skipUnknown(feed string, lineNo int, ev domain.Event) {
	p.skipReason(feed, lineNo, reasonUnknownEventType, fmt.Errorf("unrecognised event_type %q", ev.RawType))
}

func (p *Pipeline) skip(feed string, lineNo int, err error) {
	p.skipReason(feed, lineNo, skipReason(err), err)
}

func (p *Pipeline) skipReason(feed string, lineNo int, reason string, err error) {
	p.summary.Skipped++
	p.metrics.Skipped(feed, reason)
	p.logger.Warn("skipping record",
		"feed", feed,
		"line", lineNo,
		"reason", reason,
		"error", err,
	)
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, events.ErrNotObject):
		return reasonNotObject
	case errors.Is(err, events.ErrMissingEventType):
		return reasonMissingEventType
	case errors.Is(err, events.ErrMissingField):
		return reasonMissingField
	case errors.Is(err, events.ErrInvalidField):
		return reasonInvalidField
	case errors.Is(err, network.ErrSelfFriendship):
		return reasonSelfFriendship
	case errors.Is(err, network.ErrNotConfigured):
		return reasonNotConfigured
	case errors.Is(err, network.ErrAlreadyConfigured):
		return reasonAlreadyConfigured
	case errors.Is(err, network.ErrInvalidSettings):
		return reasonInvalidSettings
	case errors.Is(err, network.ErrInvalidAmount):
		return reasonInvalidAmount
	case errors.Is(err, network.ErrMissingTimestamp):
		return reasonMissingTimestamp
	default:
		return reasonOther
	}
}

type noopRecorder struct{}

func (noopRecorder) Event(string, string) {}
func (noopRecorder) Skipped(string, string) {}
func (noopRecorder) Classified(int, int, bool, bool) {}
func (noopRecorder) Users(int) {}
func (noopRecorder) FeedDuration(string, time.Duration) {}

// Package sink persists submissions to an external store. Writes are
// best-effort: the Recorder makes exactly one attempt per submission and
// never reports failures back to the caller.
package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/iwvelando/equity-snapshot/internal/config"
	"github.com/iwvelando/equity-snapshot/internal/form"
	"github.com/iwvelando/equity-snapshot/pkg/constants"
	"go.uber.org/zap"
)

// Sink accepts one-way writes of submissions.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string
	// Save persists one submission.
	Save(ctx context.Context, sub form.Submission) error
}

// New constructs the sink selected by cfg.
func New(ctx context.Context, cfg config.SinkConfig, logger *zap.Logger) (Sink, error) {
	switch cfg.Type {
	case constants.SinkTypeNone:
		return NopSink{}, nil
	case constants.SinkTypeLog, "":
		return NewLogSink(logger), nil
	case constants.SinkTypePostgres:
		db, err := OpenPostgres(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return NewPostgresSink(db, cfg.Postgres.Table), nil
	case constants.SinkTypeRedis:
		return NewRedisSink(NewRedisClient(cfg.Redis), cfg.Redis.KeyPrefix), nil
	case constants.SinkTypeFirestore:
		return NewFirestoreSink(ctx, cfg.Firestore)
	default:
		return nil, fmt.Errorf("unsupported sink type %q", cfg.Type)
	}
}

// Prepare creates whatever storage the sink needs before its first write.
// Sinks without schema are left alone.
func Prepare(ctx context.Context, s Sink) error {
	if p, ok := s.(interface {
		EnsureSchema(context.Context) error
	}); ok {
		return p.EnsureSchema(ctx)
	}
	return nil
}

// Close releases the sink's connections, if it holds any.
func Close(s Sink) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NopSink discards submissions.
type NopSink struct{}

func (NopSink) Name() string { return constants.SinkTypeNone }

func (NopSink) Save(context.Context, form.Submission) error { return nil }

// LogSink writes each submission document to the application log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns a LogSink writing to logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return constants.SinkTypeLog }

func (s *LogSink) Save(_ context.Context, sub form.Submission) error {
	doc, err := prepare(sub)
	if err != nil {
		return err
	}
	s.logger.Info("submission recorded",
		zap.String("op", "sink.LogSink.Save"),
		zap.String("id", doc.ID),
		zap.String("jobTitle", doc.JobTitle),
		zap.Float64("monthlyIncome", doc.MonthlyIncome),
		zap.Float64("monthlyRent", doc.MonthlyRent),
		zap.String("zipCode", doc.ZipCode),
		zap.String("race", doc.Race),
		zap.String("gender", doc.Gender),
		zap.Float64("rentBurden", doc.RentBurden),
		zap.Time("timestamp", doc.Timestamp),
	)
	return nil
}

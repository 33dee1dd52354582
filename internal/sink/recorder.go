package sink

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iwvelando/equity-snapshot/internal/form"
	"github.com/iwvelando/equity-snapshot/internal/telemetry"
	"github.com/iwvelando/equity-snapshot/pkg/constants"
	"go.uber.org/zap"
)

// Recorder hands submissions to a Sink without blocking the caller. Each
// submission gets exactly one write attempt bounded by the timeout; a
// failure is logged and counted, never returned. Writes are independent
// and unordered.
type Recorder struct {
	sink      Sink
	logger    *zap.Logger
	collector *telemetry.Collectors
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewRecorder returns a Recorder writing to s. collector may be nil.
func NewRecorder(s Sink, logger *zap.Logger, collector *telemetry.Collectors, timeout time.Duration) *Recorder {
	if s == nil {
		s = NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = constants.DefaultSinkTimeoutSeconds * time.Second
	}
	return &Recorder{
		sink:      s,
		logger:    logger,
		collector: collector,
		timeout:   timeout,
	}
}

// Submit starts the write for sub and returns immediately.
func (r *Recorder) Submit(sub form.Submission) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.record(sub)
	}()
}

// Wait blocks until every submitted write has settled.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) record(sub form.Submission) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	err := r.sink.Save(ctx, sub)
	elapsed := time.Since(start)

	reason := failureReason(err)
	r.collector.ObserveWrite(r.sink.Name(), reason, elapsed)

	if err != nil {
		r.logger.Error("failed to persist submission",
			zap.String("op", "sink.Recorder.record"),
			zap.String("sink", r.sink.Name()),
			zap.String("reason", reason),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return
	}

	r.logger.Debug("submission persisted",
		zap.String("op", "sink.Recorder.record"),
		zap.String("sink", r.sink.Name()),
		zap.Duration("duration", elapsed),
	)
}

func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidDocument):
		return telemetry.ReasonInvalid
	case errors.Is(err, context.DeadlineExceeded):
		return telemetry.ReasonTimeout
	default:
		return telemetry.ReasonWrite
	}
}

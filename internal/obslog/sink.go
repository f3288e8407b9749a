// Package obslog is the structured-logging sink for the new job-oriented
// packages (store, engine, supervisor, finalizer): every JobEvent they log
// is emitted as zerolog structured fields rather than held in an unread
// in-memory struct, the gap the teacher's internal/metadata.Recorder stub
// left for pipeline-stage logging.
package obslog

import (
	"os"

	"github.com/crawlkit-dev/crawlkit/internal/jobmodel"
	"github.com/rs/zerolog"
)

// Sink is what job-lifecycle code logs JobEvents through.
type Sink interface {
	LogEvent(event jobmodel.JobEvent)
	With(jobID string) Sink
}

// ZerologSink wraps a zerolog.Logger, grounded on the pack's habit
// (Caia-Tech-caia-library's pipeline/presentation layers) of threading a
// *zerolog.Logger through every component rather than passing raw strings.
type ZerologSink struct {
	logger zerolog.Logger
	jobID  string
}

// NewZerologSink builds a sink writing structured JSON lines to stdout at
// the given minimum level.
func NewZerologSink(level zerolog.Level) *ZerologSink {
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	return &ZerologSink{logger: logger}
}

// NewZerologSinkWithLogger wraps a pre-built logger, e.g. one writing to a
// bytes.Buffer under test.
func NewZerologSinkWithLogger(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

func (s *ZerologSink) With(jobID string) Sink {
	return &ZerologSink{logger: s.logger, jobID: jobID}
}

func (s *ZerologSink) LogEvent(event jobmodel.JobEvent) {
	level := zerolog.InfoLevel
	switch event.Level() {
	case jobmodel.EventLevelWarn:
		level = zerolog.WarnLevel
	case jobmodel.EventLevelError:
		level = zerolog.ErrorLevel
	}

	evt := s.logger.WithLevel(level).
		Str("job_id", event.JobID().String()).
		Str("event", event.Event()).
		Time("at", event.CreatedAt())
	for k, v := range event.Data() {
		evt = evt.Interface(k, v)
	}
	evt.Send()
}

var _ Sink = (*ZerologSink)(nil)

// nopSink discards everything; used where a Sink is required but the caller
// doesn't care, e.g. unit tests exercising unrelated logic.
type nopSink struct{}

// NewNopSink returns a Sink that discards every event.
func NewNopSink() Sink { return nopSink{} }

func (nopSink) LogEvent(jobmodel.JobEvent) {}
func (nopSink) With(string) Sink           { return nopSink{} }

var _ Sink = nopSink{}

package notify

import (
	"context"

	"rental-digest/utils"
)

// LogSink writes digests to the application log. Used when no mail transport
// is configured.
type LogSink struct {
	logger *utils.Logger
}

func NewLogSink(logger *utils.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, msg Message) error {
	s.logger.Info("[notify] %s\n%s", msg.Subject, msg.Text)
	for _, a := range msg.Attachments {
		s.logger.Info("[notify] attachment %s (%d bytes) not delivered by log sink", a.Filename, len(a.Data))
	}
	return nil
}

package repositories

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/skorotkiewicz/gnunet-social/internal/eventbus"
	"github.com/skorotkiewicz/gnunet-social/internal/protocol"
)

// ActivityWriter archives a single event.
type ActivityWriter interface {
	Append(ctx context.Context, ev protocol.Event) error
}

// EventSource yields events until closed.
type EventSource interface {
	Recv(ctx context.Context) (protocol.Event, error)
}

// Archiver copies every event from a bus subscription into an
// ActivityWriter.
type Archiver struct {
	writer  ActivityWriter
	logger  *slog.Logger
	timeout time.Duration

	archived atomic.Uint64
	failed   atomic.Uint64
	skipped  atomic.Uint64
}

// NewArchiver constructs an Archiver writing through writer.
func NewArchiver(writer ActivityWriter, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		writer:  writer,
		logger:  logger.With(slog.String("component", "archive")),
		timeout: 5 * time.Second,
	}
}

// Run archives events from src until the source closes or ctx is done.
// Lag and write failures are logged and skipped.
func (a *Archiver) Run(ctx context.Context, src EventSource) error {
	for {
		ev, err := src.Recv(ctx)
		if err != nil {
			var lagged *eventbus.LaggedError
			switch {
			case errors.As(err, &lagged):
				a.skipped.Add(lagged.Skipped)
				a.logger.Warn("archive lagged behind the event bus", slog.Uint64("skipped", lagged.Skipped))
				continue
			case errors.Is(err, eventbus.ErrClosed), errors.Is(err, context.Canceled):
				return nil
			default:
				return err
			}
		}

		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		err = a.writer.Append(writeCtx, ev)
		cancel()
		if err != nil {
			a.failed.Add(1)
			a.logger.Error("archive event", slog.String("event", ev.Kind()), slog.Any("error", err))
			continue
		}
		a.archived.Add(1)
	}
}

// ArchiverStats is a snapshot of archive counters.
type ArchiverStats struct {
	Archived uint64
	Failed   uint64
	Skipped  uint64
}

// Stats reports how many events were archived, failed or skipped to lag.
func (a *Archiver) Stats() ArchiverStats {
	return ArchiverStats{
		Archived: a.archived.Load(),
		Failed:   a.failed.Load(),
		Skipped:  a.skipped.Load(),
	}
}

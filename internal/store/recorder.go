package store

import (
	"context"
	"log/slog"

	"github.com/roach88/posscan/internal/scanner"
)

// Recorder writes the detector's commit attempts to the scan log.
// It implements scanner.Observer and runs on the detector goroutine.
type Recorder struct {
	store   *Store
	session string
	logger  *slog.Logger
}

// NewRecorder returns a recorder tagging rows with session.
func NewRecorder(s *Store, session string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, session: session, logger: logger}
}

// Observe records commit, no_match and too_short events. Write errors are
// logged; scanning never stops because the log is unavailable.
func (r *Recorder) Observe(ev scanner.TraceEvent) {
	var outcome string
	switch ev.Kind {
	case scanner.TraceCommit:
		outcome = OutcomeCommitted
	case scanner.TraceNoMatch:
		outcome = OutcomeNoMatch
	case scanner.TraceTooShort:
		if ev.Query == "" {
			// An Enter on an empty search box is not a scan.
			return
		}
		outcome = OutcomeTooShort
	default:
		return
	}

	_, err := r.store.AppendScan(context.Background(), ScanRecord{
		Session:   r.session,
		Seq:       ev.Seq,
		Query:     ev.Query,
		Outcome:   outcome,
		ProductID: ev.ProductID,
		Trigger:   string(ev.Trigger),
		At:        ev.At,
	})
	if err != nil {
		r.logger.Error("failed to record scan", "session", r.session, "seq", ev.Seq, "error", err)
	}
}

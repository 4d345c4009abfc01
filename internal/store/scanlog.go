package store

import (
	"context"
	"fmt"
	"time"
)

// Scan outcomes as recorded in scan_log.
const (
	OutcomeCommitted = "committed"
	OutcomeNoMatch   = "no_match"
	OutcomeTooShort  = "too_short"
)

// ScanRecord is one commit attempt.
type ScanRecord struct {
	ID        int64     `json:"id"`
	Session   string    `json:"session"`
	Seq       int64     `json:"seq"`
	Query     string    `json:"query"`
	Outcome   string    `json:"outcome"`
	ProductID string    `json:"product_id,omitempty"`
	Trigger   string    `json:"trigger"`
	At        time.Time `json:"at"`
}

// AppendScan writes a scan record. (session, seq) must be unique.
func (s *Store) AppendScan(ctx context.Context, rec ScanRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_log (session, seq, query, outcome, product_id, trigger, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.Session, rec.Seq, rec.Query, rec.Outcome, rec.ProductID, rec.Trigger,
		rec.At.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("insert scan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert scan id: %w", err)
	}
	return id, nil
}

// ReadScans returns a session's records ordered by seq.
// Returns an empty slice (not nil) when the session has none.
func (s *Store) ReadScans(ctx context.Context, session string) ([]ScanRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session, seq, query, outcome, product_id, trigger, at
		FROM scan_log
		WHERE session = ?
		ORDER BY seq ASC, id ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	records := []ScanRecord{}
	for rows.Next() {
		var rec ScanRecord
		var at string
		if err := rows.Scan(&rec.ID, &rec.Session, &rec.Seq, &rec.Query, &rec.Outcome, &rec.ProductID, &rec.Trigger, &at); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse scan time %q: %w", at, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return records, nil
}

// Sessions returns session ids, most recently written first.
func (s *Store) Sessions(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session FROM scan_log
		GROUP BY session
		ORDER BY MAX(id) DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

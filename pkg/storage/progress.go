package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/class1/graduate/pkg/shootingtime"
)

// SaveProgress stores the viewing position for p.Subject. FromDate is kept in
// its textual encoding so Approximate and Precise survive the round trip.
func (d *DB) SaveProgress(ctx context.Context, p Progress) error {
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO progress(subject, from_date, on_event, on_experience, session_id, updated_at) VALUES(?,?,?,?,?,?)
ON CONFLICT(subject) DO UPDATE SET from_date = excluded.from_date, on_event = excluded.on_event, on_experience = excluded.on_experience, session_id = excluded.session_id, updated_at = excluded.updated_at`,
		p.Subject, p.FromDate.String(), p.OnEvent, p.OnExperience, nullIfEmpty(p.SessionID), formatTime(time.Now()))
	return err
}

// LoadProgress returns the saved position for subject. ok is false when none
// was saved.
func (d *DB) LoadProgress(ctx context.Context, subject int) (p Progress, ok bool, err error) {
	var fromDate, updated string
	var sessionNS sql.NullString
	err = d.sql.QueryRowContext(ctx,
		"SELECT subject, from_date, on_event, on_experience, session_id, updated_at FROM progress WHERE subject = ?", subject).
		Scan(&p.Subject, &fromDate, &p.OnEvent, &p.OnExperience, &sessionNS, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Progress{}, false, nil
	}
	if err != nil {
		return Progress{}, false, err
	}
	p.FromDate, err = shootingtime.Parse(fromDate)
	if err != nil {
		return Progress{}, false, fmt.Errorf("saved progress for subject %d: %w", subject, err)
	}
	p.SessionID = sessionNS.String
	p.UpdatedAt = parseTime(updated)
	return p, true, nil
}

package db

import (
	"database/sql"

	"github.com/deemkeen/glyptodon/domain"
	"github.com/google/uuid"
)

const (
	sqlInsertActivity = `INSERT INTO activities(id, activity_uri, activity_type, actor_uri, object_uri, raw_json, received_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

	// Oldest rows beyond the cap go first, ties broken by id so the
	// trim is deterministic.
	sqlTrimActivities = `DELETE FROM activities WHERE id NOT IN (
                        SELECT id FROM activities ORDER BY received_at DESC, id LIMIT ?)`

	sqlSelectRecentActivities = `SELECT id, activity_uri, activity_type, actor_uri, object_uri, raw_json, received_at FROM activities
                                                            ORDER BY received_at DESC, id LIMIT ?`

	sqlCountActivities = `SELECT COUNT(*) FROM activities`
)

// Insert stores one activity record and trims the archive to its cap.
func (a *Archive) Insert(rec domain.ActivityRecord) error {
	return a.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertActivity,
			rec.Id.String(),
			rec.ActivityURI,
			rec.Type,
			rec.ActorURI,
			rec.ObjectURI,
			rec.RawJSON,
			rec.ReceivedAt,
		)
		if err != nil {
			return err
		}
		_, err = tx.Exec(sqlTrimActivities, a.maxRows)
		return err
	})
}

// Recent returns up to limit records, newest first.
func (a *Archive) Recent(limit int) ([]domain.ActivityRecord, error) {
	rows, err := a.db.Query(sqlSelectRecentActivities, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.ActivityRecord
	for rows.Next() {
		var rec domain.ActivityRecord
		var idStr string
		if err := rows.Scan(&idStr, &rec.ActivityURI, &rec.Type, &rec.ActorURI, &rec.ObjectURI, &rec.RawJSON, &rec.ReceivedAt); err != nil {
			return records, err
		}
		rec.Id, _ = uuid.Parse(idStr)
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return records, err
	}
	return records, nil
}

// Count returns the number of archived activities.
func (a *Archive) Count() (int, error) {
	var n int
	err := a.db.QueryRow(sqlCountActivities).Scan(&n)
	return n, err
}

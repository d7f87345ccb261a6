package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/kasolo/mafunzo/core/reminder"
)

type reminderRepository struct {
	db *sqlx.DB
}

var _ reminder.Repository = (*reminderRepository)(nil)

func NewReminderRepository(db *sqlx.DB) *reminderRepository {
	return &reminderRepository{db: db}
}

func (repo *reminderRepository) GetOrCreateTracking(personID int, kind string, maxAllowed int) (reminder.Tracking, error) {
	var t reminder.Tracking
	err := repo.db.Get(&t, `SELECT * FROM reminder_tracking WHERE person_id = $1 AND kind = $2`, personID, kind)
	if err == nil {
		return t, nil
	}
	if err != sql.ErrNoRows {
		return reminder.Tracking{}, errors.Wrap(err, "getting tracking")
	}

	now := time.Now().UTC()
	t = reminder.Tracking{
		PersonID:   personID,
		Kind:       kind,
		MaxAllowed: maxAllowed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	const q = `
		INSERT INTO reminder_tracking (person_id, kind, count_sent, last_sent_at, max_allowed, created_at, updated_at)
		VALUES (:person_id, :kind, :count_sent, :last_sent_at, :max_allowed, :created_at, :updated_at)
		ON CONFLICT (person_id, kind) DO NOTHING
		RETURNING id`
	rows, err := repo.db.NamedQuery(q, t)
	if err != nil {
		return reminder.Tracking{}, errors.Wrap(err, "inserting tracking")
	}
	defer rows.Close()
	if rows.Next() {
		if err = rows.Scan(&t.ID); err != nil {
			return reminder.Tracking{}, errors.Wrap(err, "scanning tracking id")
		}
		return t, nil
	}

	// lost the insert race, fetch the winner
	err = repo.db.Get(&t, `SELECT * FROM reminder_tracking WHERE person_id = $1 AND kind = $2`, personID, kind)
	return t, errors.Wrap(err, "getting tracking after conflict")
}

func (repo *reminderRepository) UpdateTracking(t reminder.Tracking) (reminder.Tracking, error) {
	const q = `
		UPDATE reminder_tracking
		SET count_sent = :count_sent, last_sent_at = :last_sent_at, updated_at = :updated_at
		WHERE id = :id`

	if _, err := repo.db.NamedExec(q, t); err != nil {
		return reminder.Tracking{}, errors.Wrap(err, "updating tracking")
	}
	return t, nil
}

func (repo *reminderRepository) QueryTrackings(personID int) ([]reminder.Tracking, error) {
	trackings := make([]reminder.Tracking, 0)
	err := repo.db.Select(&trackings, `SELECT * FROM reminder_tracking WHERE person_id = $1 ORDER BY id`, personID)
	return trackings, errors.Wrap(err, "querying trackings")
}

package inmemdb

import (
	"sort"
	"time"

	"github.com/kasolo/mafunzo/core/reminder"
)

var _ reminder.Repository = (*DB)(nil)

func (db *DB) GetOrCreateTracking(personID int, kind string, maxAllowed int) (reminder.Tracking, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for _, t := range db.trackings {
		if t.PersonID == personID && t.Kind == kind {
			return *t, nil
		}
	}

	now := time.Now().UTC()
	t := reminder.Tracking{
		ID:         db.nextPK(),
		PersonID:   personID,
		Kind:       kind,
		MaxAllowed: maxAllowed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	db.trackings[t.ID] = &t
	return t, nil
}

func (db *DB) UpdateTracking(t reminder.Tracking) (reminder.Tracking, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.trackings[t.ID] = &t
	return t, nil
}

func (db *DB) QueryTrackings(personID int) ([]reminder.Tracking, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	trackings := make([]reminder.Tracking, 0)
	for _, t := range db.trackings {
		if t.PersonID == personID {
			trackings = append(trackings, *t)
		}
	}
	sort.Slice(trackings, func(i, j int) bool { return trackings[i].ID < trackings[j].ID })
	return trackings, nil
}

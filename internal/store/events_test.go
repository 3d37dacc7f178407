package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkProcessedFreshEvent(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewEventStore(db)

	mock.ExpectExec(`INSERT INTO "processed_events" .* ON CONFLICT DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	fresh, err := s.MarkProcessed(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkProcessedDuplicateEvent(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewEventStore(db)

	// Conflict on the primary key: zero rows affected.
	mock.ExpectExec(`INSERT INTO "processed_events" .* ON CONFLICT DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	fresh, err := s.MarkProcessed(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestForgetReleasesEventID(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewEventStore(db)

	mock.ExpectExec(`DELETE FROM "processed_events" WHERE event_id = `).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Forget(context.Background(), "evt_1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

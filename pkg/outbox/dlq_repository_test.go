package outbox_test

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/db/dbtest"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
)

func dlqEntry(eventID uuid.UUID, msg string, failedAt time.Time) models.OutboxDLQ {
	return models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &msg,
		AttemptCount:  5,
		FailedAt:      failedAt,
	}
}

func TestDLQInsertIsOncePerEvent(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewDLQRepository(client.DB())
	eventID := uuid.New()

	// "ප" is three bytes; the cut must not land inside it
	long := strings.Repeat("a", 1023) + "පොල්"
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return repo.InsertTx(tx, dlqEntry(eventID, long, time.Now()))
	}))
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return repo.InsertTx(tx, dlqEntry(eventID, "second failure", time.Now()))
	}))

	var rows []models.OutboxDLQ
	require.NoError(t, client.DB().Where("event_id = ?", eventID).Find(&rows).Error)
	require.Len(t, rows, 1)
	msg := *rows[0].ErrorMessage
	assert.Equal(t, 1023, len(msg))
	assert.True(t, utf8.ValidString(msg))
}

func TestDLQDeleteFailedBefore(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewDLQRepository(client.DB())
	now := time.Now().UTC()

	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := repo.InsertTx(tx, dlqEntry(uuid.New(), "old", now.Add(-40*24*time.Hour))); err != nil {
			return err
		}
		return repo.InsertTx(tx, dlqEntry(uuid.New(), "recent", now.Add(-time.Hour)))
	}))

	var purged int64
	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		purged, err = repo.DeleteFailedBefore(tx, now.Add(-30*24*time.Hour))
		return err
	}))
	assert.Equal(t, int64(1), purged)

	var left int64
	require.NoError(t, client.DB().Model(&models.OutboxDLQ{}).Count(&left).Error)
	assert.Equal(t, int64(1), left)
}

func TestDLQRequiresTransaction(t *testing.T) {
	repo := outbox.NewDLQRepository(nil)
	assert.Error(t, repo.InsertTx(nil, models.OutboxDLQ{}))
	_, err := repo.DeleteFailedBefore(nil, time.Now())
	assert.Error(t, err)
}

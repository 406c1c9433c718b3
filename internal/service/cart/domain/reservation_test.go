package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReservation(t *testing.T) {
	record, err := NewReservation("alice", "p1", 3, 20*time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "alice", record.ShopperID)
	assert.Equal(t, "p1", record.ProductID)
	assert.Equal(t, 3, record.Quantity)
	assert.WithinDuration(t, time.Now().Add(20*time.Minute), record.ExpiresAt, time.Second)
}

func TestNewReservationValidation(t *testing.T) {
	_, err := NewReservation("", "p1", 1, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidReservation)

	_, err = NewReservation("alice", "", 1, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidReservation)

	_, err = NewReservation("alice", "p1", 0, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = NewReservation("alice", "p1", -2, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestChangeQuantityReturnsDelta(t *testing.T) {
	record, err := NewReservation("alice", "p1", 3, 20*time.Minute)
	require.NoError(t, err)

	delta, err := record.ChangeQuantity(5, 20*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, delta, "growing needs two more units from stock")
	assert.Equal(t, 5, record.Quantity)

	delta, err = record.ChangeQuantity(1, 20*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, -4, delta, "shrinking gives four units back")
	assert.Equal(t, 1, record.Quantity)

	_, err = record.ChangeQuantity(0, 20*time.Minute)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, 1, record.Quantity, "invalid change must not mutate the record")
}

func TestChangeQuantityRenewsLease(t *testing.T) {
	record, err := NewReservation("alice", "p1", 2, time.Minute)
	require.NoError(t, err)
	before := record.ExpiresAt

	time.Sleep(5 * time.Millisecond)
	_, err = record.ChangeQuantity(3, time.Minute)
	require.NoError(t, err)
	assert.True(t, record.ExpiresAt.After(before), "touching the record renews the lease")
}

func TestIsExpired(t *testing.T) {
	record, err := NewReservation("alice", "p1", 1, time.Minute)
	require.NoError(t, err)

	assert.False(t, record.IsExpired(time.Now()))
	assert.True(t, record.IsExpired(record.ExpiresAt), "the boundary instant counts as expired")
	assert.True(t, record.IsExpired(record.ExpiresAt.Add(time.Second)))
}

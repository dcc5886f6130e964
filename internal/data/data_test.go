package data

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) {
	t.Helper()
	require.NoError(t, InitDB(filepath.Join(t.TempDir(), "data_test.db")))
	t.Cleanup(CloseDB)
}

func TestInitDBCreatesSchema(t *testing.T) {
	setupDB(t)

	db, err := GetDB()
	require.NoError(t, err)

	for _, table := range []string{"contact_messages", "newsletter_subscribers", "completed_orders"} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestGetDBBeforeInit(t *testing.T) {
	CloseDB()
	_, err := GetDB()
	assert.Error(t, err)
}

func TestSaveAndCountSubscribers(t *testing.T) {
	setupDB(t)

	require.NoError(t, SaveSubscriber(Subscriber{
		ID: "sub_1", Email: "a@example.com", SubscribedAt: time.Now(),
	}))
	require.NoError(t, SaveSubscriber(Subscriber{
		ID: "sub_2", Email: "a@example.com", SubscribedAt: time.Now(),
	}), "duplicate email is a no-op")
	require.NoError(t, SaveSubscriber(Subscriber{
		ID: "sub_3", Email: "b@example.com", SubscribedAt: time.Now(),
	}))

	count, err := CountSubscribers()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSaveContactMessage(t *testing.T) {
	setupDB(t)

	require.NoError(t, SaveContactMessage(ContactMessage{
		ID:          "msg_1",
		Name:        "Mori Larch",
		Email:       "spore@example.com",
		Message:     "Hello",
		SubmittedAt: time.Now(),
	}))

	db, _ := GetDB()
	var name string
	require.NoError(t, db.QueryRow(
		`SELECT name FROM contact_messages WHERE id = ?`, "msg_1").Scan(&name))
	assert.Equal(t, "Mori Larch", name)
}

func TestSaveAndGetCompletedOrder(t *testing.T) {
	setupDB(t)

	completedAt := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	require.NoError(t, SaveCompletedOrder(CompletedOrder{
		ID:           "rec_1",
		OrderID:      "order_abc",
		RemoteCartID: "cart_xyz",
		Email:        "spore@example.com",
		AmountMinor:  5995,
		Currency:     "cad",
		CompletedAt:  completedAt,
	}))

	got, err := GetCompletedOrderByOrderID("order_abc")
	require.NoError(t, err)
	assert.Equal(t, "cart_xyz", got.RemoteCartID)
	assert.Equal(t, int64(5995), got.AmountMinor)
	assert.True(t, got.CompletedAt.Equal(completedAt))

	_, err = GetCompletedOrderByOrderID("order_missing")
	assert.Error(t, err)
}

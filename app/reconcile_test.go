package app

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

// useMockDB swaps the package db for a sqlmock instance for one test.
func useMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	prev := db
	db = mockDB
	t.Cleanup(func() {
		db = prev
		mockDB.Close()
	})

	// Keep notification side effects inert.
	t.Setenv("QUEUE_URL", "")
	t.Setenv("SENDGRID_API_KEY", "")

	return mock
}

func billingEvent(t *testing.T, eventType stripe.EventType, payload any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return stripe.Event{
		ID:   "evt_test",
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func checkoutEvent(t *testing.T) stripe.Event {
	return billingEvent(t, "checkout.session.completed", map[string]any{
		"customer":     map[string]any{"id": "cus_123"},
		"subscription": map[string]any{"id": "sub_123"},
		"metadata": map[string]string{
			"plan_id":  "dealer_monthly",
			"price_id": "price_dealer_m",
		},
	})
}

func TestCheckoutCompletedActivates(t *testing.T) {
	mock := useMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("sub_123").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`UPDATE users`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("user-1"))
	mock.ExpectExec(`INSERT INTO subscriptions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := applyBillingEvent(context.Background(), checkoutEvent(t))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutCompletedRedeliveryIsNoOp(t *testing.T) {
	mock := useMockDB(t)

	// Second delivery of the same activation: the dedup key is already
	// recorded, so neither the user row nor history is touched.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("sub_123").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()

	err := applyBillingEvent(context.Background(), checkoutEvent(t))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutCompletedUnknownCustomer(t *testing.T) {
	mock := useMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`UPDATE users`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := applyBillingEvent(context.Background(), checkoutEvent(t))
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionUpdatedLapseDowngrades(t *testing.T) {
	mock := useMockDB(t)

	event := billingEvent(t, "customer.subscription.updated", map[string]any{
		"customer": map[string]any{"id": "cus_123"},
		"status":   "past_due",
	})

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT email, name, tier`).
		WithArgs("cus_123").
		WillReturnRows(sqlmock.NewRows([]string{"email", "name", "tier"}).
			AddRow("kicks@example.com", "Jordan", "dealer"))
	mock.ExpectExec(`UPDATE users`).
		WithArgs("free", "cancelled", "past_due", "cus_123").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := applyBillingEvent(context.Background(), event)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionUpdatedHealthyKeepsEndDate(t *testing.T) {
	mock := useMockDB(t)

	event := billingEvent(t, "customer.subscription.updated", map[string]any{
		"customer": map[string]any{"id": "cus_123"},
		"status":   "active",
		"items": map[string]any{
			"data": []map[string]any{
				{"price": map[string]any{"id": "price_unmapped"}},
			},
		},
	})

	// Single LWW update, no subscription_end_date in the statement.
	mock.ExpectExec(`UPDATE users`).
		WithArgs("free", "active", "active", "cus_123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := applyBillingEvent(context.Background(), event)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionDeletedDowngradesUnconditionally(t *testing.T) {
	mock := useMockDB(t)

	event := billingEvent(t, "customer.subscription.deleted", map[string]any{
		"customer": map[string]any{"id": "cus_456"},
		"status":   "canceled",
	})

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT email, name, tier`).
		WithArgs("cus_456").
		WillReturnRows(sqlmock.NewRows([]string{"email", "name", "tier"}).
			AddRow(nil, nil, "power"))
	mock.ExpectExec(`UPDATE users`).
		WithArgs("free", "cancelled", "canceled", "cus_456").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := applyBillingEvent(context.Background(), event)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceEventsOnlyTouchStatus(t *testing.T) {
	t.Run("payment failed opens grace period", func(t *testing.T) {
		mock := useMockDB(t)

		event := billingEvent(t, "invoice.payment_failed", map[string]any{
			"customer": map[string]any{"id": "cus_123"},
		})

		mock.ExpectExec(`UPDATE users`).
			WithArgs("past_due", "cus_123").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, applyBillingEvent(context.Background(), event))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("payment succeeded heals past_due", func(t *testing.T) {
		mock := useMockDB(t)

		event := billingEvent(t, "invoice.payment_succeeded", map[string]any{
			"customer": map[string]any{"id": "cus_123"},
		})

		mock.ExpectExec(`UPDATE users`).
			WithArgs("active", "cus_123").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, applyBillingEvent(context.Background(), event))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUnrecognizedEventIsAcknowledged(t *testing.T) {
	mock := useMockDB(t)

	event := billingEvent(t, "customer.created", map[string]any{"id": "cus_123"})

	// No expectations: the event must produce no state change.
	require.NoError(t, applyBillingEvent(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

package payment

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "payments.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreSaveAndGet(t *testing.T) {
	store := testStore(t)

	p := New("pay-1", "PLN", decimal.RequireFromString("123.45"))
	p.Description = "Order #1"
	p.Buyer = Buyer{Email: "jan@example.com", FirstName: "Jan", LastName: "Kowalski"}
	p.Items = []LineItem{
		{Name: "ticket", UnitPrice: decimal.RequireFromString("61.72"), Quantity: 2},
	}
	require.NoError(t, p.SetExternalID("PAYU-ORDER-1"))
	require.NoError(t, store.Save(p))

	loaded, err := store.Get("pay-1")
	require.NoError(t, err)

	assert.Equal(t, "pay-1", loaded.ID())
	assert.Equal(t, StatusNew, loaded.Status())
	assert.Equal(t, "PAYU-ORDER-1", loaded.ExternalID())
	assert.Equal(t, "PLN", loaded.Currency)
	assert.Equal(t, "Order #1", loaded.Description)
	assert.True(t, loaded.AmountRequired.Equal(decimal.RequireFromString("123.45")))
	assert.Equal(t, "jan@example.com", loaded.Buyer.Email)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, "ticket", loaded.Items[0].Name)
	assert.True(t, loaded.Items[0].UnitPrice.Equal(decimal.RequireFromString("61.72")))
	assert.Equal(t, 2, loaded.Items[0].Quantity)
}

func TestStoreUpdate(t *testing.T) {
	store := testStore(t)

	p := New("pay-1", "PLN", decimal.RequireFromString("100"))
	require.NoError(t, store.Save(p))

	require.NoError(t, p.Fire(EventConfirmPayment))
	require.NoError(t, p.Fire(EventMarkAsPaid))
	require.NoError(t, p.SetExternalID("PAYU-ORDER-1"))
	require.NoError(t, store.Save(p))

	loaded, err := store.Get("pay-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, loaded.Status())
	assert.Equal(t, "PAYU-ORDER-1", loaded.ExternalID())
	assert.True(t, loaded.AmountPaid.Equal(decimal.RequireFromString("100")))
}

func TestStoreRefundIDsRoundTrip(t *testing.T) {
	store := testStore(t)

	p := New("pay-1", "PLN", decimal.RequireFromString("100"))
	require.NoError(t, p.Fire(EventConfirmPayment))
	require.NoError(t, p.Fire(EventMarkAsPaid))
	require.NoError(t, p.Fire(EventConfirmRefund, decimal.RequireFromString("40")))
	p.RecordRefund("PAYU-REFUND-1")
	require.NoError(t, store.Save(p))

	loaded, err := store.Get("pay-1")
	require.NoError(t, err)
	assert.True(t, loaded.RefundApplied("PAYU-REFUND-1"))
	assert.False(t, loaded.RefundApplied("PAYU-REFUND-2"))
	assert.Equal(t, []string{"PAYU-REFUND-1"}, loaded.AppliedRefunds())
}

func TestStoreAmountPrecision(t *testing.T) {
	store := testStore(t)

	// Amounts that lose precision in binary floats must survive storage.
	p := New("pay-1", "PLN", decimal.RequireFromString("0.1"))
	p.AmountRefunded = decimal.RequireFromString("19.99")
	require.NoError(t, store.Save(p))

	loaded, err := store.Get("pay-1")
	require.NoError(t, err)
	assert.Equal(t, "0.1", loaded.AmountRequired.String())
	assert.Equal(t, "19.99", loaded.AmountRefunded.String())
}

func TestStoreGetNotFound(t *testing.T) {
	store := testStore(t)

	_, err := store.Get("no-such-payment")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorePing(t *testing.T) {
	store := testStore(t)
	assert.NoError(t, store.Ping())
}

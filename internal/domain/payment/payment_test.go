package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vo "fileharbor/internal/domain/payment/valueobjects"
)

func newTestPayment(t *testing.T) *Payment {
	t.Helper()
	p, err := NewPayment(10, 1, vo.NewMoney(999, "USD"), "ref_abc", "Pro plan")
	require.NoError(t, err)
	return p
}

func TestNewPayment(t *testing.T) {
	p := newTestPayment(t)

	assert.Equal(t, vo.PaymentStatusPending, p.Status())
	assert.Equal(t, "ref_abc", p.ProviderReference())
	assert.Equal(t, int64(999), p.Amount().MinorUnits())

	_, err := NewPayment(0, 1, vo.NewMoney(999, "USD"), "ref", "")
	assert.Error(t, err)

	_, err = NewPayment(10, 1, vo.NewMoney(0, "USD"), "ref", "")
	assert.Error(t, err)

	_, err = NewPayment(10, 1, vo.NewMoney(999, "USD"), "", "")
	assert.Error(t, err)
}

func TestPayment_MarkAsSucceeded(t *testing.T) {
	p := newTestPayment(t)

	require.NoError(t, p.MarkAsSucceeded("pi_123"))
	assert.Equal(t, vo.PaymentStatusSucceeded, p.Status())
	require.NotNil(t, p.ProviderPaymentID())
	assert.Equal(t, "pi_123", *p.ProviderPaymentID())

	// idempotent
	version := p.Version()
	require.NoError(t, p.MarkAsSucceeded("pi_123"))
	assert.Equal(t, version, p.Version())
}

func TestPayment_MarkAsFailed(t *testing.T) {
	p := newTestPayment(t)

	require.NoError(t, p.MarkAsFailed("card_declined"))
	assert.Equal(t, vo.PaymentStatusFailed, p.Status())
	assert.Equal(t, "card_declined", p.Metadata()["failure_reason"])

	// final states cannot fail again
	assert.Error(t, p.MarkAsFailed("again"))
}

func TestPayment_ApplyProviderUpdate(t *testing.T) {
	p := newTestPayment(t)

	auth := "auth_456"
	require.NoError(t, p.ApplyProviderUpdate(vo.PaymentStatusSucceeded, "pi_789", &auth))

	assert.Equal(t, vo.PaymentStatusSucceeded, p.Status())
	require.NotNil(t, p.ProviderPaymentID())
	assert.Equal(t, "pi_789", *p.ProviderPaymentID())
	require.NotNil(t, p.AuthorizationCode())
	assert.Equal(t, "auth_456", *p.AuthorizationCode())

	// reference never changes
	assert.Equal(t, "ref_abc", p.ProviderReference())

	assert.Error(t, p.ApplyProviderUpdate("unknown", "", nil))
}

func TestMoney(t *testing.T) {
	m := vo.NewMoney(1250, "")
	assert.Equal(t, "USD", m.Currency())
	assert.InDelta(t, 12.5, m.AmountInMajorUnits(), 0.001)
	assert.True(t, m.IsPositive())
	assert.True(t, m.Equals(vo.NewMoney(1250, "USD")))
	assert.False(t, m.Equals(vo.NewMoney(1250, "EUR")))
}

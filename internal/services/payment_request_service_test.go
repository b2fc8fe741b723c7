package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/treasurehunt/backend/internal/apperr"
	"github.com/treasurehunt/backend/internal/models"
)

const paymentTTL = 5 * time.Minute

func newPaymentRequestTest(t *testing.T) (*testEnv, *PaymentRequestService, redismock.ClientMock, time.Time) {
	t.Helper()
	env := newTestEnv(t)
	env.createUser(t, "alice", "Alice")
	env.createUser(t, "bob", "Bob")

	redisClient, mock := redismock.NewClientMock()
	svc := NewPaymentRequestService(redisClient, env.users, env.ledger, paymentTTL, zap.NewNop())
	now := time.UnixMilli(1700000000000).UTC()
	svc.now = func() time.Time { return now }
	svc.newCode = func() string { return "code-1" }
	return env, svc, mock, now
}

func storedRequest(t *testing.T, requesterID string, amount int64, now time.Time) []byte {
	t.Helper()
	data, err := json.Marshal(&PaymentRequest{
		Code:        "code-1",
		RequesterID: requesterID,
		Amount:      dec(amount),
		CreatedAt:   now,
		ExpiresAt:   now.Add(paymentTTL),
	})
	require.NoError(t, err)
	return data
}

func TestPaymentRequestService_Create(t *testing.T) {
	_, svc, mock, now := newPaymentRequestTest(t)
	ctx := context.Background()

	mock.ExpectSet("payreq:code-1", storedRequest(t, "alice", 50, now), paymentTTL).SetVal("OK")

	req, image, err := svc.Create(ctx, "alice", dec(50), "")
	require.NoError(t, err)
	assert.Equal(t, "code-1", req.Code)
	assert.Equal(t, now.Add(paymentTTL), req.ExpiresAt)

	png, err := base64.StdEncoding.DecodeString(image)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(png[:4]))

	t.Run("invalid amount", func(t *testing.T) {
		_, _, err := svc.Create(ctx, "alice", dec(0), "")
		assert.True(t, errors.Is(err, apperr.ErrInvalidAmount))
	})

	t.Run("unknown requester", func(t *testing.T) {
		_, _, err := svc.Create(ctx, "ghost", dec(5), "")
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRequestService_Redeem(t *testing.T) {
	env, svc, mock, now := newPaymentRequestTest(t)
	ctx := context.Background()
	data := storedRequest(t, "alice", 50, now)

	mock.ExpectGet("payreq:code-1").SetVal(string(data))
	mock.ExpectDel("payreq:code-1").SetVal(1)

	req, txn, err := svc.Redeem(ctx, "bob", "code-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", req.RequesterID)
	assert.Equal(t, "Payment request code-1", txn.Description)
	assertBalance(t, 950, env.balance(t, "bob", models.AccountTypeChecking))
	assertBalance(t, 1050, env.balance(t, "alice", models.AccountTypeChecking))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRequestService_RedeemFailures(t *testing.T) {
	t.Run("expired", func(t *testing.T) {
		_, svc, mock, _ := newPaymentRequestTest(t)
		mock.ExpectGet("payreq:gone").RedisNil()

		_, _, err := svc.Redeem(context.Background(), "bob", "gone")
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("claimed by someone else", func(t *testing.T) {
		_, svc, mock, now := newPaymentRequestTest(t)
		mock.ExpectGet("payreq:code-1").SetVal(string(storedRequest(t, "alice", 50, now)))
		mock.ExpectDel("payreq:code-1").SetVal(0)

		_, _, err := svc.Redeem(context.Background(), "bob", "code-1")
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("own request is put back", func(t *testing.T) {
		_, svc, mock, now := newPaymentRequestTest(t)
		data := storedRequest(t, "alice", 50, now)
		mock.ExpectGet("payreq:code-1").SetVal(string(data))
		mock.ExpectDel("payreq:code-1").SetVal(1)
		mock.ExpectSet("payreq:code-1", data, paymentTTL).SetVal("OK")

		_, _, err := svc.Redeem(context.Background(), "alice", "code-1")
		assert.True(t, errors.Is(err, apperr.ErrInvalidOperation))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed payment is put back", func(t *testing.T) {
		env, svc, mock, now := newPaymentRequestTest(t)
		data := storedRequest(t, "alice", 5000, now)
		mock.ExpectGet("payreq:code-1").SetVal(string(data))
		mock.ExpectDel("payreq:code-1").SetVal(1)
		mock.ExpectSet("payreq:code-1", data, paymentTTL).SetVal("OK")

		_, _, err := svc.Redeem(context.Background(), "bob", "code-1")
		assert.True(t, errors.Is(err, apperr.ErrInsufficientFunds))
		assertBalance(t, 1000, env.balance(t, "bob", models.AccountTypeChecking))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentRequestService_WithoutRedis(t *testing.T) {
	env := newTestEnv(t)
	svc := NewPaymentRequestService(nil, env.users, env.ledger, paymentTTL, zap.NewNop())

	_, _, err := svc.Create(context.Background(), "alice", dec(5), "")
	assert.ErrorIs(t, err, ErrPaymentRequestsUnavailable)
	_, _, err = svc.Redeem(context.Background(), "bob", "code")
	assert.ErrorIs(t, err, ErrPaymentRequestsUnavailable)
}

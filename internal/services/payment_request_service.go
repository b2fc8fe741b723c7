package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/treasurehunt/backend/internal/apperr"
	"github.com/treasurehunt/backend/internal/models"
)

// ErrPaymentRequestsUnavailable is returned when no redis client is configured.
var ErrPaymentRequestsUnavailable = errors.New("payment requests are unavailable")

const qrImageSize = 256

// PaymentRequest asks any other player to pay Amount to the requester. It is
// single use and expires after the configured TTL.
type PaymentRequest struct {
	Code        string          `json:"code"`
	RequesterID string          `json:"requester_id"`
	Amount      decimal.Decimal `json:"amount" swaggertype:"string" example:"50"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

type PaymentRequestService struct {
	redis   *redis.Client
	users   *UserService
	ledger  *LedgerService
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
	newCode func() string
}

func NewPaymentRequestService(redisClient *redis.Client, users *UserService, ledger *LedgerService, ttl time.Duration, logger *zap.Logger) *PaymentRequestService {
	return &PaymentRequestService{
		redis:   redisClient,
		users:   users,
		ledger:  ledger,
		ttl:     ttl,
		logger:  logger.Named("payment_requests"),
		now:     time.Now,
		newCode: generateCode,
	}
}

func paymentRequestKey(code string) string {
	return fmt.Sprintf("payreq:%s", code)
}

// Create stores a new payment request and renders its code as a base64 PNG
// QR image.
func (s *PaymentRequestService) Create(ctx context.Context, requesterID string, amount decimal.Decimal, description string) (*PaymentRequest, string, error) {
	if s.redis == nil {
		return nil, "", ErrPaymentRequestsUnavailable
	}
	if err := requirePositive(amount); err != nil {
		return nil, "", err
	}
	if _, err := s.users.Get(ctx, requesterID); err != nil {
		return nil, "", err
	}

	now := s.now().UTC()
	req := &PaymentRequest{
		Code:        s.newCode(),
		RequesterID: requesterID,
		Amount:      amount,
		Description: description,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindInternal, err, "encode payment request")
	}
	if err := s.redis.Set(ctx, paymentRequestKey(req.Code), data, s.ttl).Err(); err != nil {
		return nil, "", apperr.Wrap(apperr.KindInternal, err, "store payment request")
	}

	qr, err := qrcode.New(req.Code, qrcode.Medium)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindInternal, err, "generate qr code")
	}
	qrPNG, err := qr.PNG(qrImageSize)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindInternal, err, "encode qr image")
	}

	s.logger.Info("payment request created", zap.String("user_id", requesterID), zap.String("amount", amount.String()))
	return req, base64.StdEncoding.EncodeToString(qrPNG), nil
}

// Redeem pays a payment request from payerID's checking account. The code is
// claimed before paying, so it is paid at most once; it is put back if the
// payment fails.
func (s *PaymentRequestService) Redeem(ctx context.Context, payerID, code string) (*PaymentRequest, *models.Transaction, error) {
	if s.redis == nil {
		return nil, nil, ErrPaymentRequestsUnavailable
	}

	key := paymentRequestKey(code)
	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil, apperr.NotFound("invalid or expired payment request")
	}
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindInternal, err, "read payment request")
	}
	claimed, err := s.redis.Del(ctx, key).Result()
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindInternal, err, "claim payment request")
	}
	if claimed == 0 {
		return nil, nil, apperr.NotFound("invalid or expired payment request")
	}

	var req PaymentRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, nil, apperr.Wrap(apperr.KindInternal, err, "decode payment request")
	}
	if req.RequesterID == payerID {
		s.restore(ctx, key, data, req.ExpiresAt)
		return nil, nil, apperr.InvalidOperation("cannot pay your own payment request")
	}

	description := req.Description
	if description == "" {
		description = "Payment request " + req.Code
	}
	txn, err := s.ledger.SendMoney(ctx, SendMoneyParams{
		FromUserID:  payerID,
		ToUserID:    req.RequesterID,
		Amount:      req.Amount,
		Description: description,
	})
	if err != nil {
		s.restore(ctx, key, data, req.ExpiresAt)
		return nil, nil, err
	}
	return &req, txn, nil
}

func (s *PaymentRequestService) restore(ctx context.Context, key string, data []byte, expiresAt time.Time) {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return
	}
	if err := s.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		s.logger.Warn("restore payment request failed", zap.String("key", key), zap.Error(err))
	}
}

func generateCode() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

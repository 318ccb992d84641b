package services

import (
	"context"
	"errors"
	"fmt"

	"expensetracker/internal/api"
	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/session"
)

// Premium plan price, in paise.
const (
	PremiumPriceMinor int64 = 29900
	PremiumCurrency         = "INR"
)

var (
	ErrAlreadyPremium   = errors.New("account is already premium")
	ErrCheckoutCanceled = errors.New("checkout canceled")
)

type PaymentAPI interface {
	CreateOrder(ctx context.Context, req api.CreateOrderRequest) (api.Order, error)
	VerifyPayment(ctx context.Context, req api.VerifyPaymentRequest) (api.MessageResponse, error)
}

// CheckoutResult is the signed confirmation handed back by the gateway.
type CheckoutResult struct {
	PaymentID string
	OrderID   string
	Signature string
}

// Checkout collects the payment for an order, e.g. through a hosted page.
// It returns ErrCheckoutCanceled when the payer backs out.
type Checkout interface {
	Pay(ctx context.Context, order api.Order, payer core.Session) (CheckoutResult, error)
}

type PaymentService struct {
	api      PaymentAPI
	checkout Checkout
	session  *session.Manager
	cache    *cache.Store
	logger   *log.Logger
}

func NewPaymentService(api PaymentAPI, checkout Checkout, sessions *session.Manager, store *cache.Store, logger *log.Logger) *PaymentService {
	if logger == nil {
		logger = log.Discard()
	}
	return &PaymentService{
		api:      api,
		checkout: checkout,
		session:  sessions,
		cache:    store,
		logger:   logger.WithComponent(log.ComponentPayment),
	}
}

// Upgrade runs create-order, checkout and verify. A verified payment marks
// the session premium and refreshes leaderboard and stats.
func (s *PaymentService) Upgrade(ctx context.Context) error {
	cur := s.session.Current()
	if !cur.Valid() {
		return session.ErrInvalidSession
	}
	if cur.IsPremium {
		return ErrAlreadyPremium
	}

	order, err := s.api.CreateOrder(ctx, api.CreateOrderRequest{
		UserID:   cur.UserID,
		Amount:   PremiumPriceMinor,
		Currency: PremiumCurrency,
	})
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	s.logger.InfoContext(ctx, "Order created", "order_id", order.ID, log.FieldUserID, cur.UserID)

	paid, err := s.checkout.Pay(ctx, order, *cur)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if paid.OrderID == "" {
		paid.OrderID = order.ID
	}

	_, err = cache.Mutate(ctx, s.cache, []cache.Tag{cache.T(TagLeaderboard), cache.T(TagStats)},
		func(ctx context.Context) (api.MessageResponse, error) {
			return s.api.VerifyPayment(ctx, api.VerifyPaymentRequest{
				PaymentID: paid.PaymentID,
				OrderID:   paid.OrderID,
				Signature: paid.Signature,
				UserID:    cur.UserID,
			})
		})
	if err != nil {
		s.logger.WarnContext(ctx, "Payment verification failed", "order_id", paid.OrderID, log.FieldError, err.Error())
		return fmt.Errorf("verify payment: %w", err)
	}

	if err := s.session.SetPremium(ctx, true); err != nil {
		return fmt.Errorf("record premium: %w", err)
	}
	s.logger.InfoContext(ctx, "Premium activated", "order_id", paid.OrderID, log.FieldUserID, cur.UserID)
	return nil
}

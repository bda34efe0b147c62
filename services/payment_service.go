package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/attractapp/attract/events"
	"github.com/attractapp/attract/ledger"
	"github.com/attractapp/attract/models"
	"github.com/attractapp/attract/payments"
	"gorm.io/datatypes"
)

// isoTimestamp renders UTC times with millisecond precision, e.g.
// 2024-01-01T00:00:00.000Z.
const isoTimestamp = "2006-01-02T15:04:05.000Z07:00"

type PaymentGateway interface {
	Confirm(ctx context.Context, req payments.ConfirmRequest) (*payments.GatewayData, error)
}

type EventPublisher interface {
	PublishPaymentConfirmed(ctx context.Context, evt events.PaymentConfirmed) error
}

type ConfirmPaymentRequest struct {
	OrderID     string  `json:"orderId" validate:"required"`
	PaymentKey  string  `json:"paymentKey" validate:"required"`
	Amount      int64   `json:"amount" validate:"required,gt=0"`
	UserID      string  `json:"userId" validate:"required"`
	Coins       int64   `json:"coins" validate:"required,gt=0"`
	BonusCoins  int64   `json:"bonusCoins" validate:"gte=0"`
	PackageID   *string `json:"packageId,omitempty"`
	PackageName *string `json:"packageName,omitempty"`
}

type ConfirmPaymentResult struct {
	OrderID      string `json:"orderId"`
	Amount       int64  `json:"amount"`
	Coins        int64  `json:"coins"`
	CurrentCoins int64  `json:"currentCoins"`
	ApprovedAt   string `json:"approvedAt"`
}

type PaymentService struct {
	gateway PaymentGateway
	store   ledger.Store
	events  EventPublisher
	logger  *slog.Logger
	now     func() time.Time
}

// NewPaymentService wires the confirmation flow. publisher may be nil.
func NewPaymentService(gateway PaymentGateway, store ledger.Store, publisher EventPublisher, logger *slog.Logger) *PaymentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentService{
		gateway: gateway,
		store:   store,
		events:  publisher,
		logger:  logger,
		now:     time.Now,
	}
}

// ConfirmPayment approves the charge with the gateway and credits the coins
// in a single ledger transaction. An order is credited at most once; a
// repeated confirmation fails with KindAlreadyExists.
func (s *PaymentService) ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) (*ConfirmPaymentResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	log := s.logger.With("order_id", req.OrderID, "user_id", req.UserID)

	data, err := s.gateway.Confirm(ctx, payments.ConfirmRequest{
		PaymentKey: req.PaymentKey,
		OrderID:    req.OrderID,
		Amount:     req.Amount,
	})
	if err != nil {
		log.ErrorContext(ctx, "payment gateway confirmation failed", "error", err)
		return nil, newError(KindInternal, gatewayMessage(err), err)
	}

	totalCoins := req.Coins + req.BonusCoins
	approvedAt := s.parseApprovedAt(data.ApprovedAt)

	var (
		payment  *models.Payment
		newCoins int64
	)
	err = s.store.RunInTx(ctx, func(tx ledger.Tx) error {
		if _, err := tx.FindPaymentByOrderID(req.OrderID); err == nil {
			return ledger.ErrDuplicateOrder
		} else if !errors.Is(err, ledger.ErrPaymentNotFound) {
			return err
		}

		user, err := tx.LockUser(req.UserID)
		if err != nil {
			return err
		}
		newCoins = user.Coins + totalCoins

		payment = &models.Payment{
			OrderID:         req.OrderID,
			PaymentKey:      req.PaymentKey,
			UserID:          req.UserID,
			Amount:          req.Amount,
			Method:          data.Method,
			Status:          models.PaymentStatusCompleted,
			Coins:           req.Coins,
			BonusCoins:      req.BonusCoins,
			TotalCoins:      totalCoins,
			PackageID:       req.PackageID,
			PackageName:     req.PackageName,
			GatewayResponse: datatypes.JSON(data.Raw),
			ApprovedAt:      approvedAt,
		}
		if err := tx.CreatePayment(payment); err != nil {
			return err
		}
		return tx.SetUserCoins(req.UserID, newCoins)
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrDuplicateOrder):
			log.WarnContext(ctx, "duplicate payment confirmation rejected")
			return nil, newError(KindAlreadyExists, "this order has already been confirmed", err)
		case errors.Is(err, ledger.ErrUserNotFound):
			log.WarnContext(ctx, "payment confirmed for unknown user")
			return nil, newError(KindNotFound, "user not found", err)
		default:
			log.ErrorContext(ctx, "gateway approved payment but ledger update failed", "error", err)
			return nil, newError(KindInternal, "failed to confirm payment", err)
		}
	}

	result := s.readBack(ctx, log, payment, newCoins)
	log.InfoContext(ctx, "✅ payment confirmed", "total_coins", totalCoins, "current_coins", result.CurrentCoins)

	if s.events != nil {
		evt := events.PaymentConfirmed{
			PaymentID:    payment.ID,
			OrderID:      payment.OrderID,
			UserID:       payment.UserID,
			Amount:       payment.Amount,
			TotalCoins:   payment.TotalCoins,
			CurrentCoins: result.CurrentCoins,
			ApprovedAt:   payment.ApprovedAt,
		}
		if err := s.events.PublishPaymentConfirmed(ctx, evt); err != nil {
			log.WarnContext(ctx, "failed to publish payment event", "error", err)
		}
	}

	return result, nil
}

// readBack re-reads the committed records. If a read fails the values fixed
// by the transaction are used instead; the confirmation has already landed.
func (s *PaymentService) readBack(ctx context.Context, log *slog.Logger, committed *models.Payment, newCoins int64) *ConfirmPaymentResult {
	payment, err := s.store.GetPayment(ctx, committed.ID)
	if err != nil {
		log.WarnContext(ctx, "failed to re-read payment after commit", "error", err)
		payment = committed
	}

	currentCoins := newCoins
	if user, err := s.store.GetUser(ctx, committed.UserID); err != nil {
		log.WarnContext(ctx, "failed to re-read user after commit", "error", err)
	} else {
		currentCoins = user.Coins
	}

	return &ConfirmPaymentResult{
		OrderID:      payment.OrderID,
		Amount:       payment.Amount,
		Coins:        payment.TotalCoins,
		CurrentCoins: currentCoins,
		ApprovedAt:   payment.ApprovedAt.UTC().Format(isoTimestamp),
	}
}

func (s *PaymentService) ListPayments(ctx context.Context, userID string) ([]models.Payment, error) {
	if userID == "" {
		return nil, newError(KindInvalidArgument, "userId is required", nil)
	}
	list, err := s.store.ListPaymentsByUser(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list payments", "user_id", userID, "error", err)
		return nil, newError(KindInternal, "failed to list payments", err)
	}
	return list, nil
}

func (s *PaymentService) parseApprovedAt(v string) time.Time {
	if v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC()
		}
	}
	return s.now().UTC()
}

func gatewayMessage(err error) string {
	var gwErr *payments.GatewayError
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	return "payment confirmation failed"
}

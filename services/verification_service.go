package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/attractapp/attract/models"
	"github.com/attractapp/attract/notifications"
	"github.com/attractapp/attract/verification"
	"gorm.io/gorm"
)

const codeDigits = 6

type VerificationConfig struct {
	CodeTTL        time.Duration
	ResendCooldown time.Duration
	// MaxAttempts is the number of wrong codes tolerated per issued code.
	MaxAttempts int
}

type VerificationService struct {
	codes  verification.Store
	sms    notifications.SMSSender
	db     *gorm.DB
	tokens *TokenIssuer
	cfg    VerificationConfig
	logger *slog.Logger
	now    func() time.Time
}

type SendCodeResult struct {
	PhoneNumber string    `json:"phoneNumber"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type SignInRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
}

type SignInResult struct {
	Token     string       `json:"token"`
	User      *models.User `json:"user"`
	IsNewUser bool         `json:"isNewUser"`
}

func NewVerificationService(codes verification.Store, sms notifications.SMSSender, db *gorm.DB, tokens *TokenIssuer, cfg VerificationConfig, logger *slog.Logger) *VerificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VerificationService{
		codes:  codes,
		sms:    sms,
		db:     db,
		tokens: tokens,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SendCode issues a fresh one-time code for phone and delivers it by SMS.
func (s *VerificationService) SendCode(ctx context.Context, rawPhone string) (*SendCodeResult, error) {
	phone, err := NormalizePhoneNumber(rawPhone)
	if err != nil {
		return nil, newError(KindInvalidArgument, err.Error(), err)
	}

	existing, err := s.codes.Get(ctx, phone)
	switch {
	case err == nil:
		if s.now().Sub(existing.IssuedAt) < s.cfg.ResendCooldown {
			return nil, newError(KindResourceExhausted, "please wait before requesting another code", nil)
		}
	case !errors.Is(err, verification.ErrCodeNotFound):
		s.logger.ErrorContext(ctx, "failed to read verification code", "error", err)
		return nil, newError(KindInternal, "failed to send verification code", err)
	}

	code, err := generateCode()
	if err != nil {
		return nil, newError(KindInternal, "failed to send verification code", err)
	}

	issuedAt := s.now()
	if err := s.codes.Save(ctx, phone, verification.Code{Code: code, IssuedAt: issuedAt}, s.cfg.CodeTTL); err != nil {
		s.logger.ErrorContext(ctx, "failed to store verification code", "error", err)
		return nil, newError(KindInternal, "failed to send verification code", err)
	}

	msg := fmt.Sprintf("[Attract] Your verification code is %s", code)
	if err := s.sms.SendSMS(ctx, phone, msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to deliver verification SMS", "error", err)
		// Drop the undelivered code so the cooldown does not block a retry.
		if _, delErr := s.codes.Delete(ctx, phone); delErr != nil {
			s.logger.WarnContext(ctx, "failed to discard undelivered code", "error", delErr)
		}
		return nil, newError(KindInternal, "failed to send verification code", err)
	}

	return &SendCodeResult{PhoneNumber: phone, ExpiresAt: issuedAt.Add(s.cfg.CodeTTL)}, nil
}

// VerifyCode consumes the code for phone. Each code verifies once.
func (s *VerificationService) VerifyCode(ctx context.Context, rawPhone, code string) (string, error) {
	phone, err := NormalizePhoneNumber(rawPhone)
	if err != nil {
		return "", newError(KindInvalidArgument, err.Error(), err)
	}

	if err := s.codes.Consume(ctx, phone, code, s.cfg.MaxAttempts); err != nil {
		switch {
		case errors.Is(err, verification.ErrCodeNotFound):
			return "", newError(KindNotFound, "verification code expired or was never requested", err)
		case errors.Is(err, verification.ErrCodeMismatch):
			return "", newError(KindInvalidArgument, "incorrect verification code", err)
		case errors.Is(err, verification.ErrTooManyAttempts):
			s.logger.WarnContext(ctx, "verification code discarded after repeated failures")
			return "", newError(KindResourceExhausted, "too many incorrect attempts, request a new code", err)
		default:
			s.logger.ErrorContext(ctx, "failed to consume verification code", "error", err)
			return "", newError(KindInternal, "failed to verify code", err)
		}
	}

	return phone, nil
}

// SignIn verifies the code and returns a session token, creating the account
// on first sign-in.
func (s *VerificationService) SignIn(ctx context.Context, req SignInRequest) (*SignInResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	phone, err := s.VerifyCode(ctx, req.PhoneNumber, req.Code)
	if err != nil {
		return nil, err
	}

	user, isNew, err := s.findOrCreateUser(ctx, phone)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load user for sign-in", "error", err)
		return nil, newError(KindInternal, "failed to sign in", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, newError(KindInternal, "failed to sign in", err)
	}

	return &SignInResult{Token: token, User: user, IsNewUser: isNew}, nil
}

func (s *VerificationService) findOrCreateUser(ctx context.Context, phone string) (*models.User, bool, error) {
	db := s.db.WithContext(ctx)
	now := s.now()

	var user models.User
	err := db.Where("phone_number = ?", phone).Take(&user).Error
	if err == nil {
		if err := db.Model(&user).Update("phone_verified_at", now).Error; err != nil {
			return nil, false, err
		}
		user.PhoneVerifiedAt = &now
		return &user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	user = models.User{PhoneNumber: phone, PhoneVerifiedAt: &now}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a signup race for the same phone; use the winner's row.
			var existing models.User
			if err := db.Where("phone_number = ?", phone).Take(&existing).Error; err != nil {
				return nil, false, err
			}
			return &existing, false, nil
		}
		return nil, false, err
	}
	return &user, true, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

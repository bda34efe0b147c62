package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/attractapp/attract/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeleteUserDataRequest struct {
	UserID      string  `json:"userId" validate:"required_without=PhoneNumber"`
	PhoneNumber string  `json:"phoneNumber" validate:"required_without=UserID"`
	Password    *string `json:"password,omitempty"`
}

type DeleteUserDataResult struct {
	UserID  string           `json:"userId"`
	Deleted map[string]int64 `json:"deleted"`
}

type AccountService struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewAccountService(db *gorm.DB, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{db: db, logger: logger}
}

// DeleteUserData erases the user and every record that references them in a
// single transaction. Accounts with a password require it to match.
func (s *AccountService) DeleteUserData(ctx context.Context, req DeleteUserDataRequest) (*DeleteUserDataResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	user, err := s.findUser(ctx, req)
	if err != nil {
		return nil, err
	}

	if user.Password != nil && *user.Password != "" {
		if req.Password == nil {
			return nil, newError(KindPermissionDenied, "password is required to delete this account", nil)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(*req.Password)); err != nil {
			return nil, newError(KindPermissionDenied, "incorrect password", err)
		}
	}

	log := s.logger.With("user_id", user.ID)
	deleted := make(map[string]int64)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Holding the user row keeps a concurrent payment confirmation from
		// committing between the cascade and the user delete.
		if err := lockUserRow(tx, user.ID); err != nil {
			return err
		}

		steps := []struct {
			name  string
			model any
			query string
			args  []any
		}{
			{"messages", &models.Message{}, "sender_id = ? OR receiver_id = ?", []any{user.ID, user.ID}},
			{"matches", &models.Match{}, "user_id = ? OR target_user_id = ?", []any{user.ID, user.ID}},
			{"posts", &models.Post{}, "user_id = ?", []any{user.ID}},
			{"payments", &models.Payment{}, "user_id = ?", []any{user.ID}},
		}
		for _, step := range steps {
			res := tx.Where(step.query, step.args...).Delete(step.model)
			if res.Error != nil {
				return res.Error
			}
			deleted[step.name] = res.RowsAffected
		}

		res := tx.Delete(&models.User{}, "id = ?", user.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		deleted["users"] = res.RowsAffected
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "user not found", err)
		}
		log.ErrorContext(ctx, "failed to delete user data", "error", err)
		return nil, newError(KindInternal, "failed to delete user data", err)
	}

	log.InfoContext(ctx, "user data deleted", "deleted", deleted)
	return &DeleteUserDataResult{UserID: user.ID, Deleted: deleted}, nil
}

func (s *AccountService) findUser(ctx context.Context, req DeleteUserDataRequest) (*models.User, error) {
	q := s.db.WithContext(ctx)
	if req.UserID != "" {
		q = q.Where("id = ?", req.UserID)
	} else {
		phone, err := NormalizePhoneNumber(req.PhoneNumber)
		if err != nil {
			return nil, newError(KindInvalidArgument, err.Error(), err)
		}
		q = q.Where("phone_number = ?", phone)
	}

	var user models.User
	if err := q.Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "user not found", err)
		}
		s.logger.ErrorContext(ctx, "failed to look up user", "error", err)
		return nil, newError(KindInternal, "failed to delete user data", err)
	}
	return &user, nil
}

func lockUserRow(tx *gorm.DB, userID string) error {
	q := tx
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var u models.User
	return q.Select("id").Take(&u, "id = ?", userID).Error
}

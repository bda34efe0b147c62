package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/attractapp/attract/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

type GormStore struct {
	db         *gorm.DB
	txOptions  *sql.TxOptions
	maxRetries uint64
}

type Option func(*GormStore)

// WithIsolation runs every ledger transaction at the given isolation level.
func WithIsolation(level sql.IsolationLevel) Option {
	return func(s *GormStore) {
		if level == sql.LevelDefault {
			s.txOptions = nil
			return
		}
		s.txOptions = &sql.TxOptions{Isolation: level}
	}
}

// WithMaxRetries bounds how many times a transaction aborted by a
// serialization failure or deadlock is re-run.
func WithMaxRetries(n uint64) Option {
	return func(s *GormStore) {
		s.maxRetries = n
	}
}

func NewGormStore(db *gorm.DB, opts ...Option) *GormStore {
	s := &GormStore{db: db, maxRetries: 3}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseIsolation maps a config value such as "serializable" or
// "read_committed" to a database/sql isolation level.
func ParseIsolation(v string) (sql.IsolationLevel, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(v), "-", "_")) {
	case "", "default":
		return sql.LevelDefault, nil
	case "read_committed":
		return sql.LevelReadCommitted, nil
	case "repeatable_read":
		return sql.LevelRepeatableRead, nil
	case "serializable":
		return sql.LevelSerializable, nil
	default:
		return sql.LevelDefault, fmt.Errorf("unknown isolation level %q", v)
	}
}

func (s *GormStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	op := func() error {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&gormTx{db: tx})
		}, s.txOptions)
		if err != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.maxRetries), ctx)
	return backoff.Retry(op, b)
}

func (s *GormStore) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.WithContext(ctx).Take(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Take(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *GormStore) ListPaymentsByUser(ctx context.Context, userID string) ([]models.Payment, error) {
	payments := []models.Payment{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("approved_at DESC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) FindPaymentByOrderID(orderID string) (*models.Payment, error) {
	var p models.Payment
	if err := t.db.Where("order_id = ?", orderID).Limit(1).Take(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (t *gormTx) LockUser(userID string) (*models.User, error) {
	q := t.db
	// SQLite has no row locks; its single writer already serializes.
	if t.db.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var u models.User
	if err := q.Take(&u, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (t *gormTx) CreatePayment(p *models.Payment) error {
	if err := t.db.Create(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateOrder
		}
		return err
	}
	return nil
}

func (t *gormTx) SetUserCoins(userID string, coins int64) error {
	res := t.db.Model(&models.User{}).Where("id = ?", userID).Update("coins", coins)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
	}
	return false
}

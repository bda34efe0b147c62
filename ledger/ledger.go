// Package ledger holds payment records and user coin balances.
//
// Store exposes the transaction as an explicit capability so callers can run
// a read-check-write sequence atomically without depending on a particular
// database API.
package ledger

import (
	"context"
	"errors"

	"github.com/attractapp/attract/models"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicateOrder  = errors.New("order already confirmed")
)

// Tx is the view of the ledger available inside RunInTx. Reads observe a
// consistent snapshot and writes become visible together on commit.
type Tx interface {
	FindPaymentByOrderID(orderID string) (*models.Payment, error)
	// LockUser reads the user and holds it against concurrent writers until
	// the transaction ends.
	LockUser(userID string) (*models.User, error)
	CreatePayment(p *models.Payment) error
	SetUserCoins(userID string, coins int64) error
}

type Store interface {
	// RunInTx commits when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListPaymentsByUser(ctx context.Context, userID string) ([]models.Payment, error)
}

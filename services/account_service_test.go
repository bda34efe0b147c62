package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/attractapp/attract/database/databasetest"
	"github.com/attractapp/attract/ledger"
	"github.com/attractapp/attract/models"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqlRecorder keeps every statement GORM executes, in order.
type sqlRecorder struct {
	logger.Interface
	mu  sync.Mutex
	sql []string
}

func newSQLRecorder() *sqlRecorder {
	return &sqlRecorder{Interface: logger.Discard}
}

func (r *sqlRecorder) LogMode(logger.LogLevel) logger.Interface { return r }

func (r *sqlRecorder) Trace(_ context.Context, _ time.Time, fc func() (string, int64), _ error) {
	stmt, _ := fc()
	r.mu.Lock()
	r.sql = append(r.sql, stmt)
	r.mu.Unlock()
}

func seedAccount(t *testing.T, db *gorm.DB, password string) {
	t.Helper()
	user := &models.User{ID: "u1", PhoneNumber: "+821012345678", Coins: 10}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		h := string(hash)
		user.Password = &h
	}
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Create(&models.User{ID: "u2", PhoneNumber: "+821087654321"}).Error)

	require.NoError(t, db.Create(&models.Post{UserID: "u1", Content: "hello"}).Error)
	require.NoError(t, db.Create(&models.Post{UserID: "u2", Content: "keep me"}).Error)
	require.NoError(t, db.Create(&models.Match{UserID: "u1", TargetUserID: "u2"}).Error)
	require.NoError(t, db.Create(&models.Match{UserID: "u2", TargetUserID: "u1"}).Error)
	require.NoError(t, db.Create(&models.Message{SenderID: "u1", ReceiverID: "u2", Content: "hi"}).Error)
	require.NoError(t, db.Create(&models.Message{SenderID: "u2", ReceiverID: "u1", Content: "hey"}).Error)
	require.NoError(t, db.Create(newTestPayment("ord-1", "u1")).Error)
}

func newTestPayment(orderID, userID string) *models.Payment {
	return &models.Payment{
		OrderID: orderID, PaymentKey: "pk", UserID: userID, Amount: 1000,
		Status: models.PaymentStatusCompleted, Coins: 10, TotalCoins: 10,
	}
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestAccountService_DeleteUserData(t *testing.T) {
	t.Run("DeletesDependentRecords", func(t *testing.T) {
		db := databasetest.New(t)
		seedAccount(t, db, "")
		svc := NewAccountService(db, nil)

		res, err := svc.DeleteUserData(t.Context(), DeleteUserDataRequest{UserID: "u1"})
		require.NoError(t, err)
		require.Equal(t, "u1", res.UserID)
		require.Equal(t, map[string]int64{"messages": 2, "matches": 2, "posts": 1, "payments": 1, "users": 1}, res.Deleted)

		require.Equal(t, int64(1), count(t, db, &models.User{}))
		require.Equal(t, int64(1), count(t, db, &models.Post{}))
		require.Equal(t, int64(0), count(t, db, &models.Match{}))
		require.Equal(t, int64(0), count(t, db, &models.Message{}))
		require.Equal(t, int64(0), count(t, db, &models.Payment{}))
	})

	t.Run("ByPhoneNumber", func(t *testing.T) {
		db := databasetest.New(t)
		seedAccount(t, db, "")
		svc := NewAccountService(db, nil)

		res, err := svc.DeleteUserData(t.Context(), DeleteUserDataRequest{PhoneNumber: "010-1234-5678"})
		require.NoError(t, err)
		require.Equal(t, "u1", res.UserID)
	})

	t.Run("PasswordProtected", func(t *testing.T) {
		db := databasetest.New(t)
		seedAccount(t, db, "s3cret!")
		svc := NewAccountService(db, nil)

		_, err := svc.DeleteUserData(t.Context(), DeleteUserDataRequest{UserID: "u1"})
		require.Equal(t, KindPermissionDenied, KindOf(err))

		wrong := "nope"
		_, err = svc.DeleteUserData(t.Context(), DeleteUserDataRequest{UserID: "u1", Password: &wrong})
		require.Equal(t, KindPermissionDenied, KindOf(err))
		require.Equal(t, int64(2), count(t, db, &models.User{}))

		right := "s3cret!"
		_, err = svc.DeleteUserData(t.Context(), DeleteUserDataRequest{UserID: "u1", Password: &right})
		require.NoError(t, err)
		require.Equal(t, int64(1), count(t, db, &models.User{}))
	})

	t.Run("UnknownUser", func(t *testing.T) {
		svc := NewAccountService(databasetest.New(t), nil)

		_, err := svc.DeleteUserData(t.Context(), DeleteUserDataRequest{UserID: "ghost"})
		require.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("RequiresIdentifier", func(t *testing.T) {
		svc := NewAccountService(databasetest.New(t), nil)

		_, err := svc.DeleteUserData(t.Context(), DeleteUserDataRequest{})
		require.Equal(t, KindInvalidArgument, KindOf(err))
	})

	t.Run("LocksUserBeforeCascade", func(t *testing.T) {
		db := databasetest.New(t)
		seedAccount(t, db, "")
		rec := newSQLRecorder()
		svc := NewAccountService(db.Session(&gorm.Session{Logger: rec}), nil)

		_, err := svc.DeleteUserData(t.Context(), DeleteUserDataRequest{UserID: "u1"})
		require.NoError(t, err)

		var userReads int
		for _, stmt := range rec.sql {
			if strings.HasPrefix(stmt, "DELETE") {
				break
			}
			if strings.HasPrefix(stmt, "SELECT") && strings.Contains(stmt, "`users`") {
				userReads++
			}
		}
		// The lookup plus the in-transaction lock.
		require.Equal(t, 2, userReads)
	})

	t.Run("ConcurrentConfirmationLeavesNoOrphans", func(t *testing.T) {
		db := databasetest.New(t)
		seedAccount(t, db, "")
		accounts := NewAccountService(db, nil)
		paymentSvc := NewPaymentService(&fakeGateway{}, ledger.NewGormStore(db), nil, nil)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			req := validRequest()
			req.OrderID = "ord-race"
			_, _ = paymentSvc.ConfirmPayment(context.Background(), req)
		}()
		go func() {
			defer wg.Done()
			_, _ = accounts.DeleteUserData(context.Background(), DeleteUserDataRequest{UserID: "u1"})
		}()
		wg.Wait()

		var users, orphans int64
		require.NoError(t, db.Model(&models.User{}).Where("id = ?", "u1").Count(&users).Error)
		require.NoError(t, db.Model(&models.Payment{}).Where("user_id = ?", "u1").Count(&orphans).Error)
		require.Zero(t, users)
		require.Zero(t, orphans)
	})
}

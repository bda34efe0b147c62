package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/attractapp/attract/database/databasetest"
	"github.com/attractapp/attract/handlers"
	"github.com/attractapp/attract/ledger"
	"github.com/attractapp/attract/middleware"
	"github.com/attractapp/attract/models"
	"github.com/attractapp/attract/payments"
	"github.com/attractapp/attract/routes"
	"github.com/attractapp/attract/services"
	"github.com/attractapp/attract/verification"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type stubGateway struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *stubGateway) Confirm(_ context.Context, req payments.ConfirmRequest) (*payments.GatewayData, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &payments.GatewayData{
		OrderID:     req.OrderID,
		PaymentKey:  req.PaymentKey,
		Method:      "card",
		Status:      "DONE",
		TotalAmount: req.Amount,
		ApprovedAt:  "2024-01-01T09:00:00+09:00",
		Raw:         json.RawMessage(`{"status":"DONE"}`),
	}, nil
}

func (g *stubGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type recordingSMS struct {
	mu   sync.Mutex
	sent map[string]string
}

var sixDigits = regexp.MustCompile(`\d{6}`)

func (r *recordingSMS) SendSMS(_ context.Context, phone, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		r.sent = map[string]string{}
	}
	r.sent[phone] = content
	return nil
}

func (r *recordingSMS) codeFor(phone string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sixDigits.FindString(r.sent[phone])
}

type testApp struct {
	app     *fiber.App
	db      *gorm.DB
	gateway *stubGateway
	sms     *recordingSMS
	tokens  *services.TokenIssuer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db := databasetest.New(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ta := &testApp{
		db:      db,
		gateway: &stubGateway{},
		sms:     &recordingSMS{},
		tokens:  services.NewTokenIssuer(testSecret, time.Hour),
	}

	paymentSvc := services.NewPaymentService(ta.gateway, ledger.NewGormStore(db), nil, nil)
	codes := verification.NewCachedStore(verification.NewRedisStore(rdb), time.Minute)
	verifySvc := services.NewVerificationService(codes, ta.sms, db, ta.tokens,
		services.VerificationConfig{CodeTTL: 5 * time.Minute, ResendCooldown: time.Minute}, nil)
	accountSvc := services.NewAccountService(db, nil)

	ta.app = fiber.New()
	protected := middleware.Protected(testSecret)
	routes.AuthRoutes(ta.app, handlers.NewAuthHandler(verifySvc))
	routes.PaymentRoutes(ta.app, handlers.NewPaymentHandler(paymentSvc), protected)
	routes.AccountRoutes(ta.app, handlers.NewAccountHandler(accountSvc), protected)
	return ta
}

func (ta *testApp) seedUser(t *testing.T, id string, coins int64) {
	t.Helper()
	require.NoError(t, ta.db.Create(&models.User{ID: id, PhoneNumber: "+82100000" + id, Coins: coins}).Error)
}

func (ta *testApp) tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := ta.tokens.Issue(&models.User{ID: userID})
	require.NoError(t, err)
	return token
}

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (ta *testApp) do(t *testing.T, method, path string, body any, token string) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func confirmBody(orderID, userID string) map[string]any {
	return map[string]any{
		"orderId":    orderID,
		"paymentKey": "pk-1",
		"amount":     5000,
		"userId":     userID,
		"coins":      500,
		"bonusCoins": 50,
	}
}

func TestPaymentHandler_ConfirmPayment(t *testing.T) {
	t.Run("CreditsCoins", func(t *testing.T) {
		ta := newTestApp(t)
		ta.seedUser(t, "u1", 100)

		status, env := ta.do(t, http.MethodPost, "/api/v1/payments/confirm", confirmBody("ord-1", "u1"), ta.tokenFor(t, "u1"))
		require.Equal(t, http.StatusOK, status, env.Message)
		require.True(t, env.Success)

		var result services.ConfirmPaymentResult
		require.NoError(t, json.Unmarshal(env.Data, &result))
		assert.Equal(t, services.ConfirmPaymentResult{
			OrderID:      "ord-1",
			Amount:       5000,
			Coins:        550,
			CurrentCoins: 650,
			ApprovedAt:   "2024-01-01T00:00:00.000Z",
		}, result)
	})

	t.Run("DuplicateOrder", func(t *testing.T) {
		ta := newTestApp(t)
		ta.seedUser(t, "u1", 100)
		token := ta.tokenFor(t, "u1")

		status, _ := ta.do(t, http.MethodPost, "/api/v1/payments/confirm", confirmBody("ord-1", "u1"), token)
		require.Equal(t, http.StatusOK, status)

		status, env := ta.do(t, http.MethodPost, "/api/v1/payments/confirm", confirmBody("ord-1", "u1"), token)
		assert.Equal(t, http.StatusConflict, status)
		assert.False(t, env.Success)
		assert.Equal(t, "already-exists", env.Code)

		var user models.User
		require.NoError(t, ta.db.First(&user, "id = ?", "u1").Error)
		assert.Equal(t, int64(650), user.Coins)
	})

	t.Run("OtherUser", func(t *testing.T) {
		ta := newTestApp(t)
		ta.seedUser(t, "u1", 100)

		status, env := ta.do(t, http.MethodPost, "/api/v1/payments/confirm", confirmBody("ord-1", "u1"), ta.tokenFor(t, "u2"))
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "permission-denied", env.Code)
		assert.Zero(t, ta.gateway.callCount())
	})

	t.Run("MissingField", func(t *testing.T) {
		ta := newTestApp(t)
		body := confirmBody("ord-1", "u1")
		delete(body, "paymentKey")

		status, env := ta.do(t, http.MethodPost, "/api/v1/payments/confirm", body, ta.tokenFor(t, "u1"))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid-argument", env.Code)
		assert.Equal(t, "paymentKey is required", env.Message)
		assert.Zero(t, ta.gateway.callCount())
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		ta := newTestApp(t)

		status, env := ta.do(t, http.MethodPost, "/api/v1/payments/confirm", `{"orderId":`, ta.tokenFor(t, "u1"))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid-argument", env.Code)
		assert.Zero(t, ta.gateway.callCount())
	})

	t.Run("UnknownUser", func(t *testing.T) {
		ta := newTestApp(t)

		status, env := ta.do(t, http.MethodPost, "/api/v1/payments/confirm", confirmBody("ord-1", "ghost"), ta.tokenFor(t, "ghost"))
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "not-found", env.Code)

		var count int64
		require.NoError(t, ta.db.Model(&models.Payment{}).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("GatewayRejects", func(t *testing.T) {
		ta := newTestApp(t)
		ta.seedUser(t, "u1", 100)
		ta.gateway.err = &payments.GatewayError{StatusCode: 400, Code: "REJECT_CARD_COMPANY", Message: "card was declined"}

		status, env := ta.do(t, http.MethodPost, "/api/v1/payments/confirm", confirmBody("ord-1", "u1"), ta.tokenFor(t, "u1"))
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, "internal", env.Code)
		assert.Equal(t, "card was declined", env.Message)

		var user models.User
		require.NoError(t, ta.db.First(&user, "id = ?", "u1").Error)
		assert.Equal(t, int64(100), user.Coins)
	})

	t.Run("MissingToken", func(t *testing.T) {
		ta := newTestApp(t)

		status, env := ta.do(t, http.MethodPost, "/api/v1/payments/confirm", confirmBody("ord-1", "u1"), "")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.False(t, env.Success)
		assert.Zero(t, ta.gateway.callCount())
	})

	t.Run("InvalidToken", func(t *testing.T) {
		ta := newTestApp(t)
		forged, err := services.NewTokenIssuer("another-secret", time.Hour).Issue(&models.User{ID: "u1"})
		require.NoError(t, err)

		status, env := ta.do(t, http.MethodPost, "/api/v1/payments/confirm", confirmBody("ord-1", "u1"), forged)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "unauthenticated", env.Code)
	})
}

func TestPaymentHandler_ListMyPayments(t *testing.T) {
	ta := newTestApp(t)
	ta.seedUser(t, "u1", 0)
	ta.seedUser(t, "u2", 0)

	status, _ := ta.do(t, http.MethodPost, "/api/v1/payments/confirm", confirmBody("ord-1", "u1"), ta.tokenFor(t, "u1"))
	require.Equal(t, http.StatusOK, status)
	status, _ = ta.do(t, http.MethodPost, "/api/v1/payments/confirm", confirmBody("ord-2", "u2"), ta.tokenFor(t, "u2"))
	require.Equal(t, http.StatusOK, status)

	status, env := ta.do(t, http.MethodGet, "/api/v1/payments", nil, ta.tokenFor(t, "u1"))
	require.Equal(t, http.StatusOK, status)

	var list []models.Payment
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "ord-1", list[0].OrderID)
	assert.Equal(t, int64(550), list[0].TotalCoins)
}

func TestAuthAndAccountFlow(t *testing.T) {
	ta := newTestApp(t)

	status, env := ta.do(t, http.MethodPost, "/api/v1/auth/verification-code", map[string]string{"phoneNumber": "010-1234-5678"}, "")
	require.Equal(t, http.StatusOK, status, env.Message)

	code := ta.sms.codeFor("+821012345678")
	require.Len(t, code, 6)

	status, env = ta.do(t, http.MethodPost, "/api/v1/auth/verification-code", map[string]string{"phoneNumber": "010-1234-5678"}, "")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "resource-exhausted", env.Code)

	status, env = ta.do(t, http.MethodPost, "/api/v1/auth/verify", map[string]string{"phoneNumber": "01012345678", "code": code}, "")
	require.Equal(t, http.StatusOK, status, env.Message)

	var signIn struct {
		Token     string      `json:"token"`
		User      models.User `json:"user"`
		IsNewUser bool        `json:"isNewUser"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &signIn))
	require.NotEmpty(t, signIn.Token)
	assert.True(t, signIn.IsNewUser)
	assert.Equal(t, "+821012345678", signIn.User.PhoneNumber)

	status, env = ta.do(t, http.MethodPost, "/api/v1/auth/verify", map[string]string{"phoneNumber": "01012345678", "code": code}, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not-found", env.Code)

	status, env = ta.do(t, http.MethodPost, "/api/v1/account/delete", map[string]string{"userId": "someone-else"}, signIn.Token)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "permission-denied", env.Code)

	status, env = ta.do(t, http.MethodPost, "/api/v1/account/delete", nil, signIn.Token)
	require.Equal(t, http.StatusOK, status, env.Message)

	var deleted services.DeleteUserDataResult
	require.NoError(t, json.Unmarshal(env.Data, &deleted))
	assert.Equal(t, signIn.User.ID, deleted.UserID)
	assert.Equal(t, int64(1), deleted.Deleted["users"])

	status, env = ta.do(t, http.MethodPost, "/api/v1/account/delete", nil, signIn.Token)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not-found", env.Code)
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ieltsprediction/payment-server/config"
	"github.com/ieltsprediction/payment-server/internal/api/middleware"
	"github.com/ieltsprediction/payment-server/internal/model"
	"github.com/ieltsprediction/payment-server/internal/pkg/logger"
	"github.com/ieltsprediction/payment-server/internal/pkg/response"
	"github.com/ieltsprediction/payment-server/internal/repository"
	"github.com/ieltsprediction/payment-server/internal/service"
	"github.com/ieltsprediction/payment-server/internal/store"
	"github.com/ieltsprediction/payment-server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func mockAuth(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

type memProfiles struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile
}

func (m *memProfiles) GetProfile(_ context.Context, userID string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return &model.Profile{UserID: userID}, nil
}

func (m *memProfiles) UpdateProfile(_ context.Context, userID string, u model.ProfileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[userID] = &model.Profile{UserID: userID, IsPro: u.IsPro, ExpirationDate: u.ExpirationDate}
	return nil
}

type nopSender struct{}

func (nopSender) Send(context.Context, string, string, string) error { return nil }

// testContext 处理器测试共享的依赖
type testContext struct {
	Store        store.Store
	Config       *config.Config
	Profiles     *memProfiles
	OrderRepo    *repository.OrderRepository
	AffRepo      *repository.AffiliateRepository
	AffiliateSvc *service.AffiliateService
	OrderSvc     *service.OrderService
	WebhookSvc   *service.WebhookService
}

func setupTestContext(t *testing.T) *testContext {
	t.Helper()

	cfg := &config.Config{
		Email: config.EmailConfig{AdminEmail: "admin@example.com"},
		Payment: config.PaymentConfig{
			WebhookSecret:   "s3cret",
			SecretHeader:    "X-Webhook-Secret",
			ReferencePrefix: "IELTS PREDICTION",
			AmountTolerance: 1000,
			BankName:        "Vietcombank",
		},
		Pricing: config.PricingConfig{
			Bundle:      map[int]int64{1: 200000},
			SingleSkill: map[int]int64{1: 100000},
		},
		Affiliate: config.AffiliateConfig{
			CommissionRate: "0.20",
			CookieName:     "ref_code",
			CookieDays:     30,
		},
		Admin:        config.AdminConfig{UserIDs: []string{"admin-1"}},
		JWT:          config.JWTConfig{Secret: "jwt-secret", ExpireHours: 1},
		Subscription: config.SubscriptionConfig{Timezone: "UTC"},
	}

	log := logger.Discard()
	st := testutil.NewMemStore()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	orderRepo := repository.NewOrderRepository(st, log)
	affRepo := repository.NewAffiliateRepository(st, log)
	logRepo := repository.NewReconciliationLogRepository(db)
	profiles := &memProfiles{profiles: make(map[string]*model.Profile)}

	affiliateSvc := service.NewAffiliateService(affRepo, &cfg.Affiliate, log)
	notifier := service.NewNotificationService(nopSender{}, cfg.Email.AdminEmail, 0, log)

	return &testContext{
		Store:        st,
		Config:       cfg,
		Profiles:     profiles,
		OrderRepo:    orderRepo,
		AffRepo:      affRepo,
		AffiliateSvc: affiliateSvc,
		OrderSvc:     service.NewOrderService(orderRepo, affiliateSvc, cfg, log),
		WebhookSvc:   service.NewWebhookService(orderRepo, logRepo, affiliateSvc, notifier, profiles, cfg, log),
	}
}

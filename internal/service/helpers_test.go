package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/ieltsprediction/payment-server/config"
	"github.com/ieltsprediction/payment-server/internal/model"
	"github.com/ieltsprediction/payment-server/internal/model/dto"
	"github.com/ieltsprediction/payment-server/internal/pkg/logger"
	"github.com/ieltsprediction/payment-server/internal/pkg/pubsub"
	"github.com/ieltsprediction/payment-server/internal/repository"
	"github.com/ieltsprediction/payment-server/internal/testutil"
)

var errDown = errors.New("downstream unavailable")

// fakeProfiles 内存中的资料目录
type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile
	updates  []model.ProfileUpdate
	getErr   error
	setErr   error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: make(map[string]*model.Profile)}
}

func (f *fakeProfiles) put(p *model.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.UserID] = p
}

func (f *fakeProfiles) get(userID string) model.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[userID]; ok {
		return *p
	}
	return model.Profile{}
}

func (f *fakeProfiles) GetProfile(_ context.Context, userID string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.profiles[userID]
	if !ok {
		return &model.Profile{UserID: userID}, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfiles) UpdateProfile(_ context.Context, userID string, update model.ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.updates = append(f.updates, update)
	p, ok := f.profiles[userID]
	if !ok {
		p = &model.Profile{UserID: userID}
		f.profiles[userID] = p
	}
	p.IsPro = update.IsPro
	p.ExpirationDate = update.ExpirationDate
	return nil
}

func (f *fakeProfiles) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type sentMail struct {
	To      string
	Subject string
}

// fakeSender 记录发送的邮件
type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, subject, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject})
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testConfig() *config.Config {
	return &config.Config{
		Email: config.EmailConfig{
			AdminEmail: "admin@example.com",
		},
		Payment: config.PaymentConfig{
			ReferencePrefix: "IELTS PREDICTION",
			AmountTolerance: 1000,
			BankName:        "Vietcombank",
			AccountNumber:   "0123456789",
			AccountName:     "IELTS PREDICTION CO",
		},
		Pricing: config.PricingConfig{
			Bundle:      map[int]int64{1: 200000, 3: 500000},
			SingleSkill: map[int]int64{1: 100000},
		},
		Affiliate: config.AffiliateConfig{
			CommissionRate: "0.20",
		},
		Subscription: config.SubscriptionConfig{
			Timezone: "UTC",
		},
	}
}

// engineFixture 对账引擎及其依赖
type engineFixture struct {
	svc        *WebhookService
	store      *testutil.FlakyStore
	db         *gorm.DB
	orderRepo  *repository.OrderRepository
	affRepo    *repository.AffiliateRepository
	logRepo    *repository.ReconciliationLogRepository
	profiles   *fakeProfiles
	sender     *fakeSender
	calculator *ExpirationCalculator
}

func setupEngine(t *testing.T) *engineFixture {
	t.Helper()

	cfg := testConfig()
	log := logger.Discard()

	st := testutil.NewFlakyStore(testutil.NewMemStore())
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	orderRepo := repository.NewOrderRepository(st, log)
	affRepo := repository.NewAffiliateRepository(st, log)
	logRepo := repository.NewReconciliationLogRepository(db)

	profiles := newFakeProfiles()
	sender := &fakeSender{}

	affiliateSvc := NewAffiliateService(affRepo, &cfg.Affiliate, log)
	notifier := NewNotificationService(sender, cfg.Email.AdminEmail, 0, log)
	svc := NewWebhookService(orderRepo, logRepo, affiliateSvc, notifier, profiles, cfg, log)

	return &engineFixture{
		svc:        svc,
		store:      st,
		db:         db,
		orderRepo:  orderRepo,
		affRepo:    affRepo,
		logRepo:    logRepo,
		profiles:   profiles,
		sender:     sender,
		calculator: NewExpirationCalculator(time.UTC),
	}
}

func transfer(amount float64, content string) *dto.BankTransferWebhook {
	return &dto.BankTransferWebhook{
		TransferAmount: &amount,
		Content:        &content,
		Gateway:        "Vietcombank",
	}
}

// fakeEvents 记录推送的付款事件
type fakeEvents struct {
	mu     sync.Mutex
	events []*pubsub.PaymentEvent
	err    error
}

func (f *fakeEvents) PublishPayment(_ context.Context, evt *pubsub.PaymentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, evt)
	return nil
}

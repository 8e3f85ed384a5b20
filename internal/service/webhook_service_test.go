package service

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieltsprediction/payment-server/internal/model"
	"github.com/ieltsprediction/payment-server/internal/model/dto"
	"github.com/ieltsprediction/payment-server/internal/pkg/logger"
	"github.com/ieltsprediction/payment-server/internal/repository"
	"github.com/ieltsprediction/payment-server/internal/store"
	"github.com/ieltsprediction/payment-server/internal/testutil"
)

func TestWebhookService_EndToEnd(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	testutil.TestAffiliate(t, f.store, model.AffiliateStatusApproved, "abc123")
	order := testutil.TestOrder(t, f.store,
		testutil.WithReference("IELTS PREDICTION 1000"),
		testutil.WithAmount(200000),
		testutil.WithReferrer("abc123"),
		testutil.WithUserID("user-1"),
	)
	f.profiles.put(&model.Profile{UserID: "user-1", Email: "lan@example.com", Name: "Lan"})

	result, err := f.svc.Process(ctx, transfer(200000, "MBVCB.99 IELTS PREDICTION 1000 FT26023000837022"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.HTTPStatus(err))
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, "IELTS PREDICTION 1000", result.Reference)
	assert.False(t, result.LowConfidence)

	stored, err := f.orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, stored.Status)
	assert.Equal(t, int64(200000), stored.Amount)
	assert.Equal(t, "IELTS PREDICTION 1000", stored.OrderReference)

	require.NotNil(t, result.Commission)
	affiliate, err := f.affRepo.FindAffiliateByCustomLink(ctx, "abc123")
	require.NoError(t, err)
	commissions, err := f.affRepo.ListCommissions(ctx, affiliate.ID)
	require.NoError(t, err)
	require.Len(t, commissions, 1)
	assert.Equal(t, int64(40000), commissions[0].CommissionAmount)
	assert.Equal(t, model.CommissionStatusPending, commissions[0].Status)
	assert.Equal(t, order.ID, commissions[0].OrderID)

	profile := f.profiles.get("user-1")
	assert.True(t, profile.IsPro)
	assert.Equal(t, AddMonths(f.calculator.Today(), 1).Format(DateLayout), profile.ExpirationDate)

	assert.True(t, result.CustomerNotified)
	assert.True(t, result.AdminNotified)
	assert.Equal(t, 2, f.sender.count())
}

func TestWebhookService_IdempotentReplay(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	aff := testutil.TestAffiliate(t, f.store, model.AffiliateStatusApproved, "abc123")
	testutil.TestOrder(t, f.store,
		testutil.WithReference("IELTS PREDICTION 2000"),
		testutil.WithAmount(200000),
		testutil.WithReferrer("abc123"),
		testutil.WithUserID("user-2"),
	)
	f.profiles.put(&model.Profile{UserID: "user-2", Email: "a@example.com"})

	payload := transfer(200000, "IELTS PREDICTION 2000")

	first, err := f.svc.Process(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, first.Outcome)
	expiration := f.profiles.get("user-2").ExpirationDate

	second, err := f.svc.Process(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplayed, second.Outcome)
	assert.Equal(t, model.OrderStatusCompleted, second.Order.Status)

	commissions, err := f.affRepo.ListCommissions(ctx, aff.ID)
	require.NoError(t, err)
	assert.Len(t, commissions, 1)

	assert.Equal(t, 1, f.profiles.updateCount())
	assert.Equal(t, expiration, f.profiles.get("user-2").ExpirationDate)
	assert.Equal(t, 2, f.sender.count())
}

func TestWebhookService_AmountTolerance(t *testing.T) {
	tests := []struct {
		received float64
		accepted bool
	}{
		{499000, true},
		{501000, true},
		{500000, true},
		{498999, false},
		{501001, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.0f", tt.received), func(t *testing.T) {
			f := setupEngine(t)
			ctx := context.Background()

			order := testutil.TestOrder(t, f.store,
				testutil.WithReference("IELTS PREDICTION 3000"),
				testutil.WithAmount(500000),
			)

			result, err := f.svc.Process(ctx, transfer(tt.received, "IELTS PREDICTION 3000"))

			stored, getErr := f.orderRepo.GetByID(ctx, order.ID)
			require.NoError(t, getErr)

			if tt.accepted {
				require.NoError(t, err)
				assert.Equal(t, model.OrderStatusCompleted, stored.Status)
				return
			}

			assert.ErrorIs(t, err, ErrAmountMismatch)
			assert.Equal(t, http.StatusBadRequest, result.HTTPStatus(err))
			assert.Equal(t, OutcomeRejected, result.Outcome)
			assert.Equal(t, model.OrderStatusPending, stored.Status)
			assert.Equal(t, 0, f.profiles.updateCount())
			assert.Equal(t, 0, f.sender.count())
		})
	}
}

func TestWebhookService_InvalidPayload(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	amount := 1000.0
	content := "IELTS PREDICTION 1"
	blank := "   "

	payloads := []struct {
		name    string
		payload *dto.BankTransferWebhook
	}{
		{"nil", nil},
		{"no amount", &dto.BankTransferWebhook{Content: &content}},
		{"no content", &dto.BankTransferWebhook{TransferAmount: &amount}},
		{"blank memo", &dto.BankTransferWebhook{TransferAmount: &amount, Content: &blank}},
		{"zero amount", transfer(0, content)},
		{"negative", transfer(-5, content)},
	}

	for _, tt := range payloads {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.svc.Process(ctx, tt.payload)
			assert.ErrorIs(t, err, ErrInvalidPayload)
			assert.Equal(t, http.StatusBadRequest, result.HTTPStatus(err))
		})
	}
}

func TestWebhookService_NoMatchingOrder(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	testutil.TestOrder(t, f.store, testutil.WithReference("IELTS PREDICTION 4000"))

	result, err := f.svc.Process(ctx, transfer(200000, "chuyen tien an trua"))
	assert.ErrorIs(t, err, ErrNoMatchingOrder)
	assert.Equal(t, http.StatusNotFound, result.HTTPStatus(err))
	assert.Equal(t, "chuyen tien an trua", result.Reference)
	assert.True(t, result.LowConfidence)

	deliveries, err := f.logRepo.RecentDeliveries(ctx, OutcomeRejected, 10)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, http.StatusNotFound, deliveries[0].HTTPStatus)
	assert.Equal(t, "chuyen tien an trua", deliveries[0].Memo)
}

func TestWebhookService_CancelledOrder(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	order := testutil.TestOrder(t, f.store,
		testutil.WithReference("IELTS PREDICTION 5000"),
		testutil.WithOrderStatus(model.OrderStatusCancelled),
	)

	result, err := f.svc.Process(ctx, transfer(200000, "IELTS PREDICTION 5000"))
	assert.ErrorIs(t, err, ErrOrderCancelled)
	assert.Equal(t, http.StatusBadRequest, result.HTTPStatus(err))

	stored, err := f.orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, stored.Status)
	assert.Equal(t, 0, f.profiles.updateCount())
}

func TestWebhookService_SoftFailuresDoNotBlockCompletion(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	order := testutil.TestOrder(t, f.store, testutil.WithReference("IELTS PREDICTION 6000"))
	f.profiles.getErr = errDown
	f.sender.err = errDown

	result, err := f.svc.Process(ctx, transfer(200000, "IELTS PREDICTION 6000"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.False(t, result.ProfileUpdated)
	assert.False(t, result.CustomerNotified)
	assert.False(t, result.AdminNotified)

	stored, err := f.orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, stored.Status)
}

func TestWebhookService_ProfileUpdateFailure(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	testutil.TestOrder(t, f.store,
		testutil.WithReference("IELTS PREDICTION 6100"),
		testutil.WithUserID("user-61"),
	)
	f.profiles.put(&model.Profile{UserID: "user-61", Email: "c@example.com"})
	f.profiles.setErr = errDown

	result, err := f.svc.Process(ctx, transfer(200000, "IELTS PREDICTION 6100"))
	require.NoError(t, err)
	assert.False(t, result.ProfileUpdated)
	// 资料更新失败仍然发送确认邮件
	assert.True(t, result.CustomerNotified)
	assert.True(t, result.AdminNotified)

	has, err := f.logRepo.HasEffect(ctx, result.Order.ID, model.EffectProfileExtended)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestWebhookService_StacksActiveSubscription(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	today := f.calculator.Today()
	current := today.AddDate(0, 0, 10)

	testutil.TestOrder(t, f.store,
		testutil.WithReference("IELTS PREDICTION 7000"),
		testutil.WithUserID("user-7"),
		testutil.WithDuration(1),
	)
	f.profiles.put(&model.Profile{UserID: "user-7", IsPro: true, ExpirationDate: current.Format(DateLayout)})

	result, err := f.svc.Process(ctx, transfer(200000, "IELTS PREDICTION 7000"))
	require.NoError(t, err)

	want := AddMonths(current, 1).Format(DateLayout)
	assert.Equal(t, want, result.ExpirationDate)
	assert.Equal(t, want, f.profiles.get("user-7").ExpirationDate)
}

func TestWebhookService_UnapprovedReferrerIsInert(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	aff := testutil.TestAffiliate(t, f.store, model.AffiliateStatusPending, "pend01")
	order := testutil.TestOrder(t, f.store,
		testutil.WithReference("IELTS PREDICTION 8000"),
		testutil.WithReferrer("pend01"),
	)

	result, err := f.svc.Process(ctx, transfer(200000, "IELTS PREDICTION 8000"))
	require.NoError(t, err)
	assert.Nil(t, result.Commission)

	commissions, err := f.affRepo.ListCommissions(ctx, aff.ID)
	require.NoError(t, err)
	assert.Empty(t, commissions)

	stored, err := f.orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, stored.Status)
}

func TestWebhookService_CompletionFailureThenRetry(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	aff := testutil.TestAffiliate(t, f.store, model.AffiliateStatusApproved, "abc123")
	order := testutil.TestOrder(t, f.store,
		testutil.WithReference("IELTS PREDICTION 9000"),
		testutil.WithReferrer("abc123"),
		testutil.WithUserID("user-9"),
	)
	f.profiles.put(&model.Profile{UserID: "user-9", Email: "d@example.com"})

	f.store.FailSets(store.NamespaceOrders, errDown)

	payload := transfer(200000, "IELTS PREDICTION 9000")
	result, err := f.svc.Process(ctx, payload)
	assert.ErrorIs(t, err, ErrCompletionFailed)
	assert.Equal(t, http.StatusInternalServerError, result.HTTPStatus(err))
	assert.Equal(t, OutcomeDeferred, result.Outcome)
	assert.True(t, result.ProfileUpdated)

	stored, err := f.orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, stored.Status)
	expiration := f.profiles.get("user-9").ExpirationDate

	// 网关重试
	f.store.Heal(store.NamespaceOrders)
	result, err = f.svc.Process(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)

	assert.Equal(t, 1, f.profiles.updateCount())
	assert.Equal(t, expiration, f.profiles.get("user-9").ExpirationDate)
	assert.Equal(t, 2, f.sender.count())

	commissions, err := f.affRepo.ListCommissions(ctx, aff.ID)
	require.NoError(t, err)
	assert.Len(t, commissions, 1)

	effects, err := f.logRepo.ListEffects(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, effects, 3)

	deferred, err := f.logRepo.RecentDeliveries(ctx, OutcomeDeferred, 10)
	require.NoError(t, err)
	assert.Len(t, deferred, 1)
}

func TestWebhookService_StoreUnavailable(t *testing.T) {
	log := logger.Discard()
	orderRepo := repository.NewOrderRepository(&testutil.FailingStore{Err: errDown}, log)
	svc := NewWebhookService(orderRepo, nil, nil, nil, newFakeProfiles(), testConfig(), log)

	result, err := svc.Process(context.Background(), transfer(200000, "IELTS PREDICTION 1"))
	assert.ErrorIs(t, err, ErrOrderLookupFailed)
	assert.Equal(t, http.StatusInternalServerError, result.HTTPStatus(err))
	assert.Equal(t, OutcomeDeferred, result.Outcome)
}

func TestWebhookService_PublishesPaymentEvent(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	events := &fakeEvents{}
	f.svc.SetEventPublisher(events)

	order := testutil.TestOrder(t, f.store,
		testutil.WithReference("IELTS PREDICTION 7000"),
		testutil.WithUserID("user-7"),
	)

	_, err := f.svc.Process(ctx, transfer(200000, "IELTS PREDICTION 7000"))
	require.NoError(t, err)

	require.Len(t, events.events, 1)
	evt := events.events[0]
	assert.Equal(t, "user-7", evt.UserID)
	assert.Equal(t, order.ID, evt.OrderID)
	assert.Equal(t, model.OrderStatusCompleted, evt.Status)
	assert.NotEmpty(t, evt.ExpirationDate)

	// 重复投递不再推送
	_, err = f.svc.Process(ctx, transfer(200000, "IELTS PREDICTION 7000"))
	require.NoError(t, err)
	assert.Len(t, events.events, 1)
}

func TestWebhookService_PublishFailureIsSoft(t *testing.T) {
	f := setupEngine(t)
	f.svc.SetEventPublisher(&fakeEvents{err: errDown})

	testutil.TestOrder(t, f.store, testutil.WithReference("IELTS PREDICTION 7100"))

	result, err := f.svc.Process(context.Background(), transfer(200000, "IELTS PREDICTION 7100"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, result.Outcome)
}

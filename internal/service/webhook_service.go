package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/ieltsprediction/payment-server/config"
	"github.com/ieltsprediction/payment-server/internal/model"
	"github.com/ieltsprediction/payment-server/internal/model/dto"
	"github.com/ieltsprediction/payment-server/internal/pkg/email"
	"github.com/ieltsprediction/payment-server/internal/pkg/pubsub"
	"github.com/ieltsprediction/payment-server/internal/repository"
)

var (
	ErrInvalidPayload    = errors.New("missing transferAmount or content")
	ErrNoMatchingOrder   = errors.New("no matching order")
	ErrAmountMismatch    = errors.New("amount mismatch")
	ErrOrderCancelled    = errors.New("order is cancelled")
	ErrOrderLookupFailed = errors.New("order lookup failed")
	ErrCompletionFailed  = errors.New("failed to mark order completed")
)

// 一次回调的最终结果
const (
	OutcomeCompleted = "completed"
	OutcomeReplayed  = "replayed"
	OutcomeRejected  = "rejected"
	OutcomeDeferred  = "deferred"
)

const (
	defaultAmountTolerance int64 = 1000
	eventPublishTimeout          = 2 * time.Second
)

// ProfileDirectory 用户资料目录
type ProfileDirectory interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) error
}

// EventPublisher 付款事件推送，未配置时不推送
type EventPublisher interface {
	PublishPayment(ctx context.Context, evt *pubsub.PaymentEvent) error
}

// ReconcileResult 一次回调的处理结果，失败时也会返回
type ReconcileResult struct {
	Outcome          string
	Reference        string
	LowConfidence    bool
	Received         int64
	Order            *model.Order
	ExpirationDate   string
	ProfileUpdated   bool
	CustomerNotified bool
	AdminNotified    bool
	Commission       *model.Commission
}

// HTTPStatus 结果对应的响应码
func (r *ReconcileResult) HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrAmountMismatch), errors.Is(err, ErrOrderCancelled):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoMatchingOrder):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WebhookService 银行转账回调对账：
// 解析 -> 提取订单号 -> 查找订单 -> 幂等检查 -> 金额校验 -> 更新资料 -> 通知 -> 佣金 -> 标记完成
type WebhookService struct {
	orderRepo      *repository.OrderRepository
	logRepo        *repository.ReconciliationLogRepository
	affiliateSvc   *AffiliateService
	notifier       *NotificationService
	profiles       ProfileDirectory
	events         EventPublisher
	calc           *ExpirationCalculator
	extractor      *ReferenceExtractor
	tolerance      int64
	profileTimeout time.Duration
	log            *slog.Logger
}

func NewWebhookService(
	orderRepo *repository.OrderRepository,
	logRepo *repository.ReconciliationLogRepository,
	affiliateSvc *AffiliateService,
	notifier *NotificationService,
	profiles ProfileDirectory,
	cfg *config.Config,
	log *slog.Logger,
) *WebhookService {
	tolerance := cfg.Payment.AmountTolerance
	if tolerance < 0 {
		tolerance = defaultAmountTolerance
	}

	return &WebhookService{
		orderRepo:      orderRepo,
		logRepo:        logRepo,
		affiliateSvc:   affiliateSvc,
		notifier:       notifier,
		profiles:       profiles,
		calc:           NewExpirationCalculator(cfg.Subscription.Location()),
		extractor:      NewReferenceExtractor(cfg.Payment.ReferencePrefix),
		tolerance:      tolerance,
		profileTimeout: cfg.Profile.Timeout,
		log:            log,
	}
}

// Process 处理一次回调。返回的 error 决定响应码，result 总是非 nil。
// 一旦开始处理就不随请求取消而中断。
func (s *WebhookService) Process(ctx context.Context, payload *dto.BankTransferWebhook) (*ReconcileResult, error) {
	ctx = context.WithoutCancel(ctx)

	result := &ReconcileResult{}
	err := s.process(ctx, payload, result)

	switch {
	case err == nil:
	case result.HTTPStatus(err) >= http.StatusInternalServerError:
		result.Outcome = OutcomeDeferred
	default:
		result.Outcome = OutcomeRejected
	}

	s.recordDelivery(ctx, payload, result, err)
	return result, err
}

func (s *WebhookService) process(ctx context.Context, payload *dto.BankTransferWebhook, result *ReconcileResult) error {
	// 1. 解析
	amount, memo, err := parsePayload(payload)
	if err != nil {
		s.log.Warn("webhook payload rejected", "error", err)
		return err
	}
	result.Received = amount

	// 2. 提取订单号
	reference, ok := s.extractor.Extract(memo)
	result.Reference = reference
	result.LowConfidence = !ok
	if !ok {
		s.log.Warn("no order reference pattern in memo, using full memo", "memo", memo)
	}

	log := s.log.With("reference", reference, "received", amount)

	// 3. 查找订单
	order, err := s.orderRepo.FindByReference(ctx, reference)
	if errors.Is(err, repository.ErrOrderNotFound) {
		log.Warn("no order matches transfer memo", "memo", memo)
		return ErrNoMatchingOrder
	}
	if err != nil {
		log.Error("order lookup failed", "error", err)
		return fmt.Errorf("%w: %v", ErrOrderLookupFailed, err)
	}
	result.Order = order
	log = log.With("order_id", order.ID, "order_reference", order.OrderReference)

	// 4. 幂等检查
	switch order.Status {
	case model.OrderStatusCompleted:
		log.Info("order already completed, replay ignored")
		result.Outcome = OutcomeReplayed
		return nil
	case model.OrderStatusCancelled:
		log.Warn("payment received for cancelled order")
		return ErrOrderCancelled
	}

	// 5. 金额校验
	if diff := order.Amount - amount; diff > s.tolerance || -diff > s.tolerance {
		log.Warn("transfer amount outside tolerance", "expected", order.Amount, "tolerance", s.tolerance)
		return ErrAmountMismatch
	}

	// 6. 延长订阅（失败不影响后续）
	profile := s.extendSubscription(ctx, log, order, result)

	// 7. 通知
	s.notify(ctx, log, order, profile, result)

	// 8. 佣金
	if s.affiliateSvc != nil {
		result.Commission = s.affiliateSvc.RealizeCommission(ctx, order.UserID, order.ID, order.Amount, order.ReferrerCode)
	}

	// 9. 标记完成，必须放在最后
	completed, err := s.orderRepo.MarkCompleted(ctx, order.ID)
	if err != nil {
		log.Error("failed to mark order completed after side effects were applied",
			"alert", true,
			"error", err,
			"profile_updated", result.ProfileUpdated,
			"commission_created", result.Commission != nil,
		)
		return fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	result.Order = completed
	result.Outcome = OutcomeCompleted
	s.publishCompleted(ctx, log, completed, result)

	log.Info("payment reconciled",
		"expiration_date", result.ExpirationDate,
		"customer_notified", result.CustomerNotified,
		"admin_notified", result.AdminNotified,
		"commission_created", result.Commission != nil,
	)
	return nil
}

// extendSubscription 读取资料并延长到期日，返回读到的资料（可能为 nil）
func (s *WebhookService) extendSubscription(ctx context.Context, log *slog.Logger, order *model.Order, result *ReconcileResult) *model.Profile {
	extended := s.effectDone(ctx, log, order.ID, model.EffectProfileExtended)
	notified := s.effectDone(ctx, log, order.ID, model.EffectCustomerNotified)
	if extended && notified {
		log.Info("profile already extended for this order, skipping")
		result.ProfileUpdated = true
		return nil
	}

	var profile *model.Profile
	if !runSoft(ctx, log, "get_profile", s.profileTimeout, func(ctx context.Context) error {
		var err error
		profile, err = s.profiles.GetProfile(ctx, order.UserID)
		return err
	}) {
		if !extended {
			log.Error("could not load profile, subscription not extended", "alert", true, "user_id", order.UserID)
		}
		return nil
	}

	if extended {
		log.Info("profile already extended for this order, skipping")
		result.ProfileUpdated = true
		return profile
	}

	expiration := s.calc.Next(ProfileState{
		IsPro:          profile.IsPro,
		ExpirationDate: profile.ExpirationDate,
	}, order.DurationMonths)

	if !runSoft(ctx, log, "update_profile", s.profileTimeout, func(ctx context.Context) error {
		return s.profiles.UpdateProfile(ctx, order.UserID, model.ProfileUpdate{
			IsPro:          true,
			ExpirationDate: expiration,
		})
	}) {
		log.Error("profile update failed, subscription not extended", "alert", true, "user_id", order.UserID)
		return profile
	}

	log.Info("subscription extended",
		"user_id", order.UserID,
		"previous_pro", profile.IsPro,
		"previous_expiration", profile.ExpirationDate,
		"expiration_date", expiration,
	)

	result.ProfileUpdated = true
	result.ExpirationDate = expiration
	profile.IsPro = true
	profile.ExpirationDate = expiration
	s.recordEffect(ctx, log, order.ID, model.EffectProfileExtended, expiration)
	return profile
}

func (s *WebhookService) notify(ctx context.Context, log *slog.Logger, order *model.Order, profile *model.Profile, result *ReconcileResult) {
	if s.notifier == nil {
		return
	}

	facts := email.PaymentFacts{
		UserID:         order.UserID,
		OrderReference: order.OrderReference,
		PackageKind:    order.PackageKind,
		Skill:          order.Skill,
		DurationMonths: order.DurationMonths,
		Amount:         order.Amount,
		ExpirationDate: result.ExpirationDate,
	}
	if profile != nil {
		facts.CustomerEmail = profile.Email
		facts.CustomerName = profile.Name
	}

	if s.effectDone(ctx, log, order.ID, model.EffectCustomerNotified) {
		result.CustomerNotified = true
	} else if s.notifier.NotifyCustomer(ctx, facts) {
		result.CustomerNotified = true
		s.recordEffect(ctx, log, order.ID, model.EffectCustomerNotified, facts.CustomerEmail)
	}

	if s.effectDone(ctx, log, order.ID, model.EffectAdminNotified) {
		result.AdminNotified = true
	} else if s.notifier.NotifyAdmin(ctx, facts) {
		result.AdminNotified = true
		s.recordEffect(ctx, log, order.ID, model.EffectAdminNotified, "")
	}
}

// SetEventPublisher 配置付款事件推送
func (s *WebhookService) SetEventPublisher(p EventPublisher) {
	s.events = p
}

// publishCompleted 订单完成后通知结账页面，失败不影响结果
func (s *WebhookService) publishCompleted(ctx context.Context, log *slog.Logger, order *model.Order, result *ReconcileResult) {
	if s.events == nil {
		return
	}
	runSoft(ctx, log, "payment_event", eventPublishTimeout, func(ctx context.Context) error {
		return s.events.PublishPayment(ctx, &pubsub.PaymentEvent{
			Type:           pubsub.EventPaymentCompleted,
			UserID:         order.UserID,
			OrderID:        order.ID,
			OrderReference: order.OrderReference,
			Status:         order.Status,
			Amount:         order.Amount,
			ExpirationDate: result.ExpirationDate,
		})
	})
}

// effectDone 查询失败时按未执行处理
func (s *WebhookService) effectDone(ctx context.Context, log *slog.Logger, orderID, effect string) bool {
	if s.logRepo == nil {
		return false
	}
	done, err := s.logRepo.HasEffect(ctx, orderID, effect)
	if err != nil {
		log.Warn("effect log unavailable", "effect", effect, "error", err)
		return false
	}
	return done
}

func (s *WebhookService) recordEffect(ctx context.Context, log *slog.Logger, orderID, effect, detail string) {
	if s.logRepo == nil {
		return
	}
	if err := s.logRepo.RecordEffect(ctx, orderID, effect, detail); err != nil {
		log.Warn("failed to record effect", "effect", effect, "error", err)
	}
}

func (s *WebhookService) recordDelivery(ctx context.Context, payload *dto.BankTransferWebhook, result *ReconcileResult, procErr error) {
	if s.logRepo == nil {
		return
	}

	delivery := &model.WebhookDelivery{
		TransferAmount: result.Received,
		Reference:      truncate(result.Reference, 200),
		LowConfidence:  result.LowConfidence,
		Outcome:        result.Outcome,
		HTTPStatus:     result.HTTPStatus(procErr),
	}
	if payload != nil && payload.Content != nil {
		delivery.Memo = truncate(*payload.Content, 500)
	}
	if result.Order != nil {
		delivery.OrderID = result.Order.ID
	}
	if procErr != nil {
		delivery.ErrorMessage = procErr.Error()
	}

	if err := s.logRepo.RecordDelivery(ctx, delivery); err != nil {
		s.log.Warn("failed to record webhook delivery", "error", err)
	}
}

func parsePayload(payload *dto.BankTransferWebhook) (int64, string, error) {
	if payload == nil || payload.TransferAmount == nil || payload.Content == nil {
		return 0, "", ErrInvalidPayload
	}

	memo := strings.TrimSpace(*payload.Content)
	amount := *payload.TransferAmount
	if memo == "" || math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, "", ErrInvalidPayload
	}

	return int64(math.Round(amount)), memo, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// RecentDeliveries 最近的回调记录，供管理后台排查
func (s *WebhookService) RecentDeliveries(ctx context.Context, outcome string, limit int) ([]*model.WebhookDelivery, error) {
	if s.logRepo == nil {
		return []*model.WebhookDelivery{}, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.logRepo.RecentDeliveries(ctx, outcome, limit)
}

// Effects 订单已执行的副作用
func (s *WebhookService) Effects(ctx context.Context, orderID string) ([]*model.ReconciliationEffect, error) {
	if s.logRepo == nil {
		return nil, nil
	}
	return s.logRepo.ListEffects(ctx, orderID)
}

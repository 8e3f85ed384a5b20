package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ieltsprediction/payment-server/config"
	"github.com/ieltsprediction/payment-server/internal/model"
	"github.com/ieltsprediction/payment-server/internal/model/dto"
	"github.com/ieltsprediction/payment-server/internal/repository"
)

var (
	ErrOrderNotFound       = errors.New("订单不存在")
	ErrOrderPermission     = errors.New("无权查看此订单")
	ErrSkillRequired       = errors.New("单项套餐必须指定技能")
	ErrSkillNotAllowed     = errors.New("全科套餐不能指定技能")
	ErrPackageUnavailable  = errors.New("套餐或时长不可购买")
	ErrOrderNotCancellable = errors.New("订单不能取消")
)

const defaultPaymentMethod = "bank_transfer"

type OrderService struct {
	orderRepo    *repository.OrderRepository
	affiliateSvc *AffiliateService
	cfg          *config.Config
	log          *slog.Logger
	now          func() time.Time
}

func NewOrderService(orderRepo *repository.OrderRepository, affiliateSvc *AffiliateService, cfg *config.Config, log *slog.Logger) *OrderService {
	return &OrderService{
		orderRepo:    orderRepo,
		affiliateSvc: affiliateSvc,
		cfg:          cfg,
		log:          log,
		now:          time.Now,
	}
}

// Create 创建待支付订单。推广码只有在能解析到已审核推广者时才记录。
func (s *OrderService) Create(ctx context.Context, userID string, req *dto.CreateOrderRequest, referrerCode string) (*dto.OrderInfo, error) {
	switch req.PackageKind {
	case model.PackageSingleSkill:
		if req.Skill == "" {
			return nil, ErrSkillRequired
		}
	case model.PackageBundle:
		if req.Skill != "" {
			return nil, ErrSkillNotAllowed
		}
	}

	amount, ok := s.cfg.Pricing.Price(req.PackageKind, req.DurationMonths)
	if !ok {
		return nil, ErrPackageUnavailable
	}

	reference, err := s.newReference()
	if err != nil {
		return nil, err
	}

	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = defaultPaymentMethod
	}

	order := &model.Order{
		ID:             uuid.NewString(),
		OrderReference: reference,
		UserID:         userID,
		PackageKind:    req.PackageKind,
		DurationMonths: req.DurationMonths,
		Skill:          req.Skill,
		Amount:         amount,
		Status:         model.OrderStatusPending,
		PaymentMethod:  paymentMethod,
		TransferMemo:   reference,
		CreatedAt:      s.now(),
		ReferrerCode:   s.stampReferrer(ctx, referrerCode),
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	s.log.Info("order created",
		"order_id", order.ID,
		"order_reference", order.OrderReference,
		"user_id", userID,
		"amount", amount,
		"referrer_code", order.ReferrerCode,
	)
	return s.buildOrderInfo(order), nil
}

// GetOrder 用户查看自己的订单
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*dto.OrderInfo, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderPermission
	}
	return s.buildOrderInfo(order), nil
}

// ListPending 按创建顺序列出待支付订单
func (s *OrderService) ListPending(ctx context.Context) ([]*model.Order, error) {
	return s.orderRepo.ListByStatus(ctx, model.OrderStatusPending)
}

// Cancel 取消待支付订单
func (s *OrderService) Cancel(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := s.orderRepo.Cancel(ctx, orderID)
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		return nil, ErrOrderNotFound
	case errors.Is(err, repository.ErrInvalidTransition):
		return nil, ErrOrderNotCancellable
	case err != nil:
		return nil, err
	}

	s.log.Info("order cancelled", "order_id", orderID, "order_reference", order.OrderReference)
	return order, nil
}

func (s *OrderService) stampReferrer(ctx context.Context, code string) string {
	code = strings.TrimSpace(code)
	if code == "" || s.affiliateSvc == nil {
		return ""
	}

	resolved, err := s.affiliateSvc.ResolveAffiliateCode(ctx, code)
	if err != nil {
		s.log.Warn("resolve referral cookie failed, ignoring", "code", code, "error", err)
		return ""
	}
	if resolved == nil {
		return ""
	}
	return code
}

// newReference 形如 "IELTS PREDICTION 17691622312585779"：毫秒时间戳 + 4 位随机数
func (s *OrderService) newReference() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	prefix := strings.ToUpper(strings.Join(strings.Fields(s.cfg.Payment.ReferencePrefix), " "))
	return fmt.Sprintf("%s %d%04d", prefix, s.now().UnixMilli(), n.Int64()), nil
}

func (s *OrderService) buildOrderInfo(order *model.Order) *dto.OrderInfo {
	info := &dto.OrderInfo{
		ID:             order.ID,
		OrderReference: order.OrderReference,
		PackageKind:    order.PackageKind,
		DurationMonths: order.DurationMonths,
		Skill:          order.Skill,
		Amount:         order.Amount,
		Status:         order.Status,
		CreatedAt:      order.CreatedAt.Format(time.RFC3339),
	}
	if order.Status == model.OrderStatusPending {
		info.Transfer = &dto.TransferInstructions{
			BankName:      s.cfg.Payment.BankName,
			AccountNumber: s.cfg.Payment.AccountNumber,
			AccountName:   s.cfg.Payment.AccountName,
			Amount:        order.Amount,
			Memo:          order.TransferMemo,
		}
	}
	return info
}

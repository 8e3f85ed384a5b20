package service

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ieltsprediction/payment-server/config"
	"github.com/ieltsprediction/payment-server/internal/model"
	"github.com/ieltsprediction/payment-server/internal/model/dto"
	"github.com/ieltsprediction/payment-server/internal/repository"
)

var (
	ErrAffiliateNotFound     = errors.New("推广者不存在")
	ErrAffiliateNotPending   = errors.New("推广者已审核")
	ErrCommissionNotFound    = errors.New("佣金记录不存在")
	ErrCommissionAlreadyPaid = errors.New("佣金已支付")
)

const (
	linkCodeLength   = 10
	linkCodeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	linkCodeAttempts = 3
)

var defaultCommissionRate = decimal.RequireFromString("0.20")

// ResolvedAffiliate 推广码解析结果
type ResolvedAffiliate struct {
	Affiliate *model.Affiliate
	Link      *model.Link
}

func (r *ResolvedAffiliate) AffiliateID() string { return r.Affiliate.ID }
func (r *ResolvedAffiliate) LinkID() string      { return r.Link.ID }

type AffiliateService struct {
	repo *repository.AffiliateRepository
	rate decimal.Decimal
	log  *slog.Logger
	now  func() time.Time
}

func NewAffiliateService(repo *repository.AffiliateRepository, cfg *config.AffiliateConfig, log *slog.Logger) *AffiliateService {
	rate := defaultCommissionRate
	if cfg != nil && cfg.CommissionRate != "" {
		parsed, err := decimal.NewFromString(cfg.CommissionRate)
		if err != nil || parsed.IsNegative() || parsed.GreaterThan(decimal.NewFromInt(1)) {
			log.Warn("invalid commission rate, using default", "value", cfg.CommissionRate)
		} else {
			rate = parsed
		}
	}

	return &AffiliateService{
		repo: repo,
		rate: rate,
		log:  log,
		now:  time.Now,
	}
}

// ResolveAffiliateCode 解析推广码，未找到或未审核通过时返回 nil。
// 推广者还没有链接时会顺带创建一条。
func (s *AffiliateService) ResolveAffiliateCode(ctx context.Context, code string) (*ResolvedAffiliate, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}

	var link *model.Link
	affiliate, err := s.repo.FindAffiliateByCustomLink(ctx, code)
	if errors.Is(err, repository.ErrAffiliateNotFound) {
		link, err = s.repo.FindLinkByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if link == nil {
			return nil, nil
		}
		affiliate, err = s.repo.GetAffiliate(ctx, link.AffiliateID)
		if errors.Is(err, repository.ErrAffiliateNotFound) {
			s.log.Warn("link points to missing affiliate", "code", code, "affiliate_id", link.AffiliateID)
			return nil, nil
		}
	}
	if err != nil {
		return nil, err
	}

	if !affiliate.IsApproved() {
		return nil, nil
	}

	if link == nil {
		link, err = s.ensureLink(ctx, affiliate)
		if err != nil {
			return nil, err
		}
	}

	return &ResolvedAffiliate{Affiliate: affiliate, Link: link}, nil
}

// ensureLink 取推广者的第一条链接，没有时用 customLink 或随机码创建
func (s *AffiliateService) ensureLink(ctx context.Context, affiliate *model.Affiliate) (*model.Link, error) {
	link, err := s.repo.FirstLinkOf(ctx, affiliate.ID)
	if err != nil || link != nil {
		return link, err
	}

	code := affiliate.CustomLink
	for attempt := 0; attempt < linkCodeAttempts; attempt++ {
		if code == "" {
			if code, err = generateLinkCode(); err != nil {
				return nil, err
			}
		}

		link, err = s.repo.CreateLink(ctx, &model.Link{
			ID:          uuid.NewString(),
			AffiliateID: affiliate.ID,
			CustomLink:  code,
			CreatedAt:   s.now(),
		})
		if errors.Is(err, repository.ErrLinkExists) {
			code = ""
			continue
		}
		if err != nil {
			return nil, err
		}

		s.log.Info("created affiliate link", "affiliate_id", affiliate.ID, "code", link.CustomLink)
		return link, nil
	}

	return nil, repository.ErrLinkExists
}

// RealizeCommission 为已完成订单生成佣金，返回 nil 表示跳过。
// 任何存储错误只记录日志，不影响订单完成。
func (s *AffiliateService) RealizeCommission(ctx context.Context, userID, orderID string, amount int64, referrerCode string) *model.Commission {
	if strings.TrimSpace(referrerCode) == "" {
		return nil
	}

	log := s.log.With("order_id", orderID, "referrer_code", referrerCode)

	resolved, err := s.ResolveAffiliateCode(ctx, referrerCode)
	if err != nil {
		log.Error("resolve referrer failed, commission skipped", "error", err)
		return nil
	}
	if resolved == nil {
		log.Info("referrer not approved or unknown, commission skipped")
		return nil
	}

	existing, err := s.repo.FindCommission(ctx, resolved.AffiliateID(), orderID)
	if err != nil {
		log.Error("load commissions failed, commission skipped", "error", err)
		return nil
	}
	if existing != nil {
		log.Info("commission already exists", "commission_id", existing.ID)
		return nil
	}

	commission := &model.Commission{
		ID:               uuid.NewString(),
		AffiliateID:      resolved.AffiliateID(),
		OrderID:          orderID,
		UserID:           userID,
		Amount:           amount,
		CommissionRate:   s.rate.InexactFloat64(),
		CommissionAmount: s.CommissionFor(amount),
		Status:           model.CommissionStatusPending,
		CreatedAt:        s.now(),
	}

	if err := s.repo.CreateCommission(ctx, commission); err != nil {
		if errors.Is(err, repository.ErrCommissionExists) {
			log.Info("commission created concurrently, skipped")
		} else {
			log.Error("create commission failed", "error", err)
		}
		return nil
	}

	log.Info("commission created",
		"commission_id", commission.ID,
		"affiliate_id", commission.AffiliateID,
		"commission_amount", commission.CommissionAmount,
	)

	visit, err := s.repo.ConvertFirstVisit(ctx, resolved.AffiliateID(), resolved.LinkID(), orderID)
	if err != nil {
		log.Warn("mark visit converted failed", "error", err)
	} else if visit != nil {
		log.Debug("visit converted", "visit_id", visit.ID)
	}

	return commission
}

// CommissionFor round(amount * rate)，.5 远离零
func (s *AffiliateService) CommissionFor(amount int64) int64 {
	return decimal.NewFromInt(amount).Mul(s.rate).Round(0).IntPart()
}

// RecordVisit 记录一次推广点击，推广码无效时返回 nil
func (s *AffiliateService) RecordVisit(ctx context.Context, code, landingPath string) (*ResolvedAffiliate, error) {
	resolved, err := s.ResolveAffiliateCode(ctx, code)
	if err != nil || resolved == nil {
		return nil, err
	}

	visit := &model.Visit{
		ID:          uuid.NewString(),
		AffiliateID: resolved.AffiliateID(),
		LinkID:      resolved.LinkID(),
		LandingPath: landingPath,
		CreatedAt:   s.now(),
	}
	if err := s.repo.CreateVisit(ctx, visit); err != nil {
		return nil, err
	}
	return resolved, nil
}

// ApproveAffiliate pending -> approved
func (s *AffiliateService) ApproveAffiliate(ctx context.Context, id string) (*dto.AffiliateInfo, error) {
	return s.review(ctx, id, model.AffiliateStatusApproved)
}

// RejectAffiliate pending -> rejected
func (s *AffiliateService) RejectAffiliate(ctx context.Context, id string) (*dto.AffiliateInfo, error) {
	return s.review(ctx, id, model.AffiliateStatusRejected)
}

func (s *AffiliateService) review(ctx context.Context, id, target string) (*dto.AffiliateInfo, error) {
	affiliate, err := s.repo.UpdateAffiliate(ctx, id, func(a *model.Affiliate) error {
		if a.Status == target {
			return nil
		}
		if a.Status != model.AffiliateStatusPending {
			return ErrAffiliateNotPending
		}
		now := s.now()
		a.Status = target
		if target == model.AffiliateStatusApproved {
			a.ApprovedAt = &now
		} else {
			a.RejectedAt = &now
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrAffiliateNotFound) {
			return nil, ErrAffiliateNotFound
		}
		return nil, err
	}

	s.log.Info("affiliate reviewed", "affiliate_id", id, "status", affiliate.Status)
	return buildAffiliateInfo(affiliate), nil
}

// MarkCommissionPaid pending -> paid
func (s *AffiliateService) MarkCommissionPaid(ctx context.Context, id string) (*dto.CommissionInfo, error) {
	commission, err := s.repo.UpdateCommission(ctx, id, func(c *model.Commission) error {
		if c.Status == model.CommissionStatusPaid {
			return ErrCommissionAlreadyPaid
		}
		now := s.now()
		c.Status = model.CommissionStatusPaid
		c.PaidAt = &now
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrCommissionNotFound) {
			return nil, ErrCommissionNotFound
		}
		return nil, err
	}

	s.log.Info("commission paid", "commission_id", id, "amount", commission.CommissionAmount)
	return buildCommissionInfo(commission), nil
}

// ListCommissions 推广者的佣金明细和汇总
func (s *AffiliateService) ListCommissions(ctx context.Context, affiliateID string) (*dto.CommissionSummary, error) {
	if _, err := s.repo.GetAffiliate(ctx, affiliateID); err != nil {
		if errors.Is(err, repository.ErrAffiliateNotFound) {
			return nil, ErrAffiliateNotFound
		}
		return nil, err
	}

	commissions, err := s.repo.ListCommissions(ctx, affiliateID)
	if err != nil {
		return nil, err
	}

	summary := &dto.CommissionSummary{
		Items:       make([]*dto.CommissionInfo, 0, len(commissions)),
		TotalOrders: len(commissions),
	}
	for _, c := range commissions {
		summary.Items = append(summary.Items, buildCommissionInfo(c))
		switch c.Status {
		case model.CommissionStatusPaid:
			summary.TotalPaid += c.CommissionAmount
		default:
			summary.TotalPending += c.CommissionAmount
		}
	}
	return summary, nil
}

func generateLinkCode() (string, error) {
	limit := big.NewInt(int64(len(linkCodeAlphabet)))
	b := make([]byte, linkCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = linkCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

func buildAffiliateInfo(a *model.Affiliate) *dto.AffiliateInfo {
	info := &dto.AffiliateInfo{
		ID:         a.ID,
		UserID:     a.UserID,
		Status:     a.Status,
		CustomLink: a.CustomLink,
	}
	if a.ApprovedAt != nil {
		info.ApprovedAt = a.ApprovedAt.Format(time.RFC3339)
	}
	if a.RejectedAt != nil {
		info.RejectedAt = a.RejectedAt.Format(time.RFC3339)
	}
	return info
}

func buildCommissionInfo(c *model.Commission) *dto.CommissionInfo {
	info := &dto.CommissionInfo{
		ID:               c.ID,
		AffiliateID:      c.AffiliateID,
		OrderID:          c.OrderID,
		Amount:           c.Amount,
		CommissionRate:   c.CommissionRate,
		CommissionAmount: c.CommissionAmount,
		Status:           c.Status,
		CreatedAt:        c.CreatedAt.Format(time.RFC3339),
	}
	if c.PaidAt != nil {
		info.PaidAt = c.PaidAt.Format(time.RFC3339)
	}
	return info
}

package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ieltsprediction/payment-server/config"
	"github.com/ieltsprediction/payment-server/internal/service"
)

type ReferralHandler struct {
	affiliateService *service.AffiliateService
	cfg              config.AffiliateConfig
	log              *slog.Logger
}

func NewReferralHandler(affiliateService *service.AffiliateService, cfg config.AffiliateConfig, log *slog.Logger) *ReferralHandler {
	return &ReferralHandler{
		affiliateService: affiliateService,
		cfg:              cfg,
		log:              log,
	}
}

// Click 推广链接点击：记录访问、写入推广 cookie 后跳转
// GET /r/:code?to=/pricing
func (h *ReferralHandler) Click(c *gin.Context) {
	code := c.Param("code")
	target := safeRedirect(c.Query("to"))

	resolved, err := h.affiliateService.RecordVisit(c.Request.Context(), code, target)
	if err != nil {
		// 记录失败不影响跳转
		h.log.Error("record referral visit failed", "code", code, "error", err)
	}
	if resolved != nil {
		maxAge := h.cfg.CookieDays * 24 * 60 * 60
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(h.cfg.CookieName, code, maxAge, "/", "", c.Request.TLS != nil, true)
	}

	c.Redirect(http.StatusFound, target)
}

// safeRedirect 只允许站内相对路径
func safeRedirect(to string) string {
	if to == "" || !strings.HasPrefix(to, "/") || strings.HasPrefix(to, "//") || strings.Contains(to, `\`) {
		return "/"
	}
	return to
}

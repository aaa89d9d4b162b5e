package job

import (
	"net/http"
	"strconv"

	"sendpool/pkg/db/pagination"
	"sendpool/pkg/errutil"
	"sendpool/pkg/middleware"
	"sendpool/services/campaign"
	"sendpool/services/ledger"
	"sendpool/services/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type Handler struct {
	svc     *Service
	ledger  *ledger.Service
	stats   *campaign.StatsReader
	limiter *middleware.AccountLimiter
}

func NewHandler(svc *Service, l *ledger.Service, stats *campaign.StatsReader, limiter *middleware.AccountLimiter) *Handler {
	return &Handler{svc: svc, ledger: l, stats: stats, limiter: limiter}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Register mounts the account routes under /api and the operator routes
// under /admin. Both groups sit behind bearer auth.
func (h *Handler) Register(r gin.IRouter, auth gin.HandlerFunc) {
	api := r.Group("/api", auth)
	api.POST("/jobs/take", h.limiter.Middleware(), h.TakeJob)
	api.GET("/jobs", h.ListJobs)
	api.GET("/me", h.Me)
	api.GET("/credits", h.ListCredits)
	api.GET("/referrals", h.ListReferrals)

	admin := r.Group("/admin", auth, middleware.RequireRole(string(store.RoleAdmin), string(store.RoleSuperadmin)))
	admin.POST("/users/:id/credits", h.AdjustCredits)
	admin.GET("/campaigns/:id/stats", h.CampaignStats)
}

func (h *Handler) TakeJob(c *gin.Context) {
	res, err := h.svc.TakeJob(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	ok(c, res)
}

func (h *Handler) ListJobs(c *gin.Context) {
	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		_ = c.Error(errutil.BindError("invalid pagination", err))
		return
	}

	jobs, info, err := h.svc.History(c.Request.Context(), middleware.AccountID(c), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": jobs, "page_info": info})
}

func (h *Handler) Me(c *gin.Context) {
	profile, err := h.svc.Profile(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	ok(c, profile)
}

func (h *Handler) ListCredits(c *gin.Context) {
	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		_ = c.Error(errutil.BindError("invalid pagination", err))
		return
	}

	entries, info, err := h.ledger.ListEntries(c.Request.Context(), middleware.AccountID(c), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": entries, "page_info": info})
}

func (h *Handler) ListReferrals(c *gin.Context) {
	refs, err := h.svc.Referrals(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	ok(c, refs)
}

type adjustRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" binding:"omitempty,max=255"`
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		_ = c.Error(errutil.BadRequest("invalid id", err))
		return 0, false
	}
	return id, true
}

func (h *Handler) AdjustCredits(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BindError("invalid request body", err))
		return
	}

	entry, err := h.ledger.Adjust(c.Request.Context(), id, req.Amount, req.Description)
	if err != nil {
		_ = c.Error(err)
		return
	}
	ok(c, entry)
}

func (h *Handler) CampaignStats(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	stats, err := h.stats.Stats(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	ok(c, stats)
}

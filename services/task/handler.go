package task

import (
	"net/http"
	"strconv"

	"sendpool/pkg/errutil"
	"sendpool/pkg/middleware"
	"sendpool/services/store"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r gin.IRouter, auth gin.HandlerFunc) {
	admin := r.Group("/admin/ledger", auth, middleware.RequireRole(string(store.RoleAdmin), string(store.RoleSuperadmin)))
	admin.POST("/verify", h.Verify)
	admin.GET("/runs/:id", h.GetRun)
}

func (h *Handler) Verify(c *gin.Context) {
	run, err := h.svc.Enqueue(c.Request.Context(), TriggerManual)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "data": run})
}

func (h *Handler) GetRun(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		_ = c.Error(errutil.BadRequest("invalid id", err))
		return
	}

	run, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": run})
}

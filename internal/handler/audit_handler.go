package handler

import (
	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/pkg/pagination"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleBilling))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs lists recorded billing changes, newest first
// @Summary      Get audit logs
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        entity_id  query     string  false  "Only changes to this entity"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Success      200        {object}  response.Response{data=pagination.Page}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)
	logs, total, err := h.auditService.ListAuditLogs(c.Request.Context(), p.Page, p.Limit, c.Query("entity_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, p.Wrap(logs, total))
}

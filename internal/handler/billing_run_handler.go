package handler

import (
	"time"

	"backoffice/internal/middleware"
	"backoffice/internal/service"

	"github.com/gin-gonic/gin"
)

type BillingRunRequest struct {
	AsOf string `json:"as_of"` // YYYY-MM-DD, defaults to today
}

type BillingRunHandler struct {
	billingRunService service.BillingRunService
	contractService   service.ContractService
}

func NewBillingRunHandler(billingRunService service.BillingRunService, contractService service.ContractService) *BillingRunHandler {
	return &BillingRunHandler{
		billingRunService: billingRunService,
		contractService:   contractService,
	}
}

func (h *BillingRunHandler) RegisterRoutes(router *gin.RouterGroup) {
	runs := router.Group("/api/billing-runs")
	runs.Use(middleware.RequireRole(middleware.RoleAdmin))
	{
		runs.POST("/generate", h.Generate)
		runs.POST("/expire", h.Expire)
	}
}

// Generate invoices every contract due on or before as_of
// @Summary      Run invoice generation
// @Tags         billing-runs
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      BillingRunRequest  false  "Run date"
// @Success      200      {object}  response.Response{data=service.BillingRunResult}
// @Router       /api/billing-runs/generate [post]
func (h *BillingRunHandler) Generate(c *gin.Context) {
	asOf, okDate := h.runDate(c)
	if !okDate {
		return
	}
	result, err := h.billingRunService.GenerateDueInvoices(c.Request.Context(), asOf)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, result)
}

// Expire renews or expires contracts whose end date has passed
// @Summary      Run contract expiry
// @Tags         billing-runs
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      BillingRunRequest  false  "Run date"
// @Success      200      {object}  response.Response{data=service.ExpiryResult}
// @Router       /api/billing-runs/expire [post]
func (h *BillingRunHandler) Expire(c *gin.Context) {
	asOf, okDate := h.runDate(c)
	if !okDate {
		return
	}
	result, err := h.contractService.ExpireContracts(c.Request.Context(), asOf)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, result)
}

func (h *BillingRunHandler) runDate(c *gin.Context) (asOf time.Time, valid bool) {
	var req BillingRunRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return asOf, false
	}
	asOf, err := asOfDate(req.AsOf)
	if err != nil {
		writeError(c, err)
		return asOf, false
	}
	return asOf, true
}

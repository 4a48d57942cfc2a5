package handler

import (
	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/pkg/pagination"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup) {
	read := middleware.RequireRole(middleware.ReadRoles...)
	write := middleware.RequireRole(middleware.WriteRoles...)

	payments := router.Group("/api/payments")
	{
		payments.POST("", write, h.RecordPayment)
		payments.GET("", read, h.ListPayments)
		payments.GET("/:id", read, h.GetPayment)
		payments.POST("/:id/allocations", write, h.Allocate)
	}

	router.POST("/api/receipts/:id/void", write, h.VoidReceipt)
}

// RecordPayment stores a received payment and issues its receipt
// @Summary      Record payment
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RecordPaymentRequest  true  "Payment"
// @Success      201      {object}  response.Response{data=service.PaymentResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/payments [post]
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	var req service.RecordPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, err := h.paymentService.RecordPayment(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, payment)
}

// ListPayments returns a paginated list of payments
// @Summary      List payments
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        status     query     string  false  "PENDING, PARTIAL, ALLOCATED"
// @Param        client_id  query     string  false  "Client ID"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Items per page (default 20)"
// @Success      200        {object}  response.Response{data=pagination.Page}
// @Router       /api/payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	p := pagination.Parse(c)
	payments, total, err := h.paymentService.ListPayments(c.Request.Context(), service.ListPaymentsQuery{
		Status:   c.Query("status"),
		ClientID: c.Query("client_id"),
		Page:     p.Page,
		Limit:    p.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, p.Wrap(payments, total))
}

// GetPayment returns a payment with its allocations and receipt
// @Summary      Get payment
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Payment ID"
// @Success      200  {object}  response.Response{data=service.PaymentResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/payments/{id} [get]
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentService.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, payment)
}

// Allocate applies a payment to open invoices, all or nothing
// @Summary      Allocate payment
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                          true  "Payment ID"
// @Param        payload  body      service.AllocatePaymentRequest  true  "Allocations"
// @Success      200      {object}  response.Response{data=service.PaymentResponse}
// @Failure      422      {object}  response.Response
// @Router       /api/payments/{id}/allocations [post]
func (h *PaymentHandler) Allocate(c *gin.Context) {
	var req service.AllocatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, err := h.paymentService.Allocate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, payment)
}

// VoidReceipt annuls a receipt; the payment is untouched
// @Summary      Void receipt
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Receipt ID"
// @Param        payload  body      service.ReasonRequest  true  "Reason"
// @Success      200      {object}  response.Response{data=service.ReceiptResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/receipts/{id}/void [post]
func (h *PaymentHandler) VoidReceipt(c *gin.Context) {
	var req service.ReasonRequest
	if !bindJSON(c, &req) {
		return
	}
	receipt, err := h.paymentService.VoidReceipt(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, receipt)
}

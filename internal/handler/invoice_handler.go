package handler

import (
	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/pkg/pagination"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
}

func NewInvoiceHandler(invoiceService service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	read := middleware.RequireRole(middleware.ReadRoles...)
	write := middleware.RequireRole(middleware.WriteRoles...)

	invoices := router.Group("/api/invoices")
	{
		invoices.POST("", write, h.CreateInvoice)
		invoices.GET("", read, h.ListInvoices)
		invoices.GET("/:id", read, h.GetInvoice)
		invoices.POST("/:id/lines", write, h.AddLine)
		invoices.PUT("/:id/lines", write, h.ReplaceLines)
		invoices.DELETE("/:id/lines/:lineId", write, h.RemoveLine)
		invoices.POST("/:id/issue", write, h.Issue)
		invoices.POST("/:id/cancel", write, h.Cancel)
		invoices.POST("/:id/void", write, h.Void)
		invoices.GET("/:id/allocations", read, h.ListAllocations)
	}

	router.GET("/api/clients/:clientId/open-invoices", read, h.ListOpenInvoices)
}

// CreateInvoice creates a manual DRAFT invoice
// @Summary      Create invoice
// @Description  Unit prices default to the client's resolved price; ITBIS (18%) is computed per line
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateInvoiceRequest  true  "Invoice"
// @Success      201      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}
	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, invoice)
}

// ListInvoices returns a paginated list of invoices
// @Summary      List invoices
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        status       query     string  false  "DRAFT, ISSUED, PARTIAL, PAID, CANCELLED, VOID"
// @Param        client_id    query     string  false  "Client ID"
// @Param        contract_id  query     string  false  "Contract ID"
// @Param        overdue      query     bool    false  "Only unpaid invoices past their due date"
// @Param        page         query     int     false  "Page number (default 1)"
// @Param        limit        query     int     false  "Items per page (default 20)"
// @Success      200          {object}  response.Response{data=pagination.Page}
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	p := pagination.Parse(c)
	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), service.ListInvoicesQuery{
		Status:      c.Query("status"),
		ClientID:    c.Query("client_id"),
		ContractID:  c.Query("contract_id"),
		OverdueOnly: queryBool(c, "overdue"),
		Page:        p.Page,
		Limit:       p.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, p.Wrap(invoices, total))
}

// GetInvoice returns an invoice with its lines
// @Summary      Get invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, invoice)
}

// AddLine appends a line to a DRAFT invoice
// @Summary      Add invoice line
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Invoice ID"
// @Param        payload  body      service.InvoiceLineRequest  true  "Line"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/invoices/{id}/lines [post]
func (h *InvoiceHandler) AddLine(c *gin.Context) {
	var req service.InvoiceLineRequest
	if !bindJSON(c, &req) {
		return
	}
	invoice, err := h.invoiceService.AddLine(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, invoice)
}

// ReplaceLines swaps every line of a DRAFT invoice
// @Summary      Replace invoice lines
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                              true  "Invoice ID"
// @Param        payload  body      service.ReplaceInvoiceLinesRequest  true  "Lines"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/invoices/{id}/lines [put]
func (h *InvoiceHandler) ReplaceLines(c *gin.Context) {
	var req service.ReplaceInvoiceLinesRequest
	if !bindJSON(c, &req) {
		return
	}
	invoice, err := h.invoiceService.ReplaceLines(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, invoice)
}

// RemoveLine deletes a line from a DRAFT invoice
// @Summary      Remove invoice line
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id      path      string  true  "Invoice ID"
// @Param        lineId  path      string  true  "Line ID"
// @Success      200     {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404     {object}  response.Response
// @Router       /api/invoices/{id}/lines/{lineId} [delete]
func (h *InvoiceHandler) RemoveLine(c *gin.Context) {
	invoice, err := h.invoiceService.RemoveLine(c.Request.Context(), c.Param("id"), c.Param("lineId"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, invoice)
}

// Issue assigns the NCF and moves a DRAFT invoice to ISSUED
// @Summary      Issue invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/{id}/issue [post]
func (h *InvoiceHandler) Issue(c *gin.Context) {
	invoice, err := h.invoiceService.Issue(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, invoice)
}

// Cancel discards a DRAFT invoice
// @Summary      Cancel invoice
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Invoice ID"
// @Param        payload  body      service.ReasonRequest  true  "Reason"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/invoices/{id}/cancel [post]
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	var req service.ReasonRequest
	if !bindJSON(c, &req) {
		return
	}
	invoice, err := h.invoiceService.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, invoice)
}

// Void annuls an issued invoice; recorded allocations are kept
// @Summary      Void invoice
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Invoice ID"
// @Param        payload  body      service.ReasonRequest  true  "Reason"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/invoices/{id}/void [post]
func (h *InvoiceHandler) Void(c *gin.Context) {
	var req service.ReasonRequest
	if !bindJSON(c, &req) {
		return
	}
	invoice, err := h.invoiceService.Void(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, invoice)
}

// ListAllocations returns the payments applied to an invoice
// @Summary      Invoice allocations
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=[]service.AllocationResponse}
// @Router       /api/invoices/{id}/allocations [get]
func (h *InvoiceHandler) ListAllocations(c *gin.Context) {
	allocations, err := h.invoiceService.ListAllocations(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, allocations)
}

// ListOpenInvoices returns a client's invoices that can still take payments
// @Summary      Open invoices of a client
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        clientId  path      string  true  "Client ID"
// @Success      200       {object}  response.Response{data=[]service.InvoiceResponse}
// @Router       /api/clients/{clientId}/open-invoices [get]
func (h *InvoiceHandler) ListOpenInvoices(c *gin.Context) {
	invoices, err := h.invoiceService.ListOpenInvoices(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, invoices)
}

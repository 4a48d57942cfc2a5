package handler

import (
	"net/http"
	"strconv"

	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/pkg/pagination"

	"github.com/gin-gonic/gin"
)

type ContractHandler struct {
	contractService service.ContractService
}

func NewContractHandler(contractService service.ContractService) *ContractHandler {
	return &ContractHandler{contractService: contractService}
}

func (h *ContractHandler) RegisterRoutes(router *gin.RouterGroup) {
	read := middleware.RequireRole(middleware.ReadRoles...)
	write := middleware.RequireRole(middleware.WriteRoles...)

	contracts := router.Group("/api/contracts")
	{
		contracts.POST("", write, h.CreateContract)
		contracts.GET("", read, h.ListContracts)
		contracts.GET("/:id", read, h.GetContract)
		contracts.PUT("/:id", write, h.UpdateContract)
		contracts.DELETE("/:id", write, h.DeleteContract)
		contracts.GET("/:id/schedule", read, h.GetSchedule)
		contracts.POST("/:id/documents", write, h.AttachDocument)
		contracts.POST("/:id/activate", write, h.Activate)
		contracts.POST("/:id/suspend", write, h.Suspend)
		contracts.POST("/:id/reactivate", write, h.Reactivate)
		contracts.POST("/:id/terminate", write, h.Terminate)
	}
}

// CreateContract stores a DRAFT contract with its priced service lines
// @Summary      Create contract
// @Tags         contracts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ContractRequest  true  "Contract"
// @Success      201      {object}  response.Response{data=service.ContractResponse}
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/contracts [post]
func (h *ContractHandler) CreateContract(c *gin.Context) {
	var req service.ContractRequest
	if !bindJSON(c, &req) {
		return
	}
	contract, err := h.contractService.CreateContract(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, contract)
}

// ListContracts returns a paginated list of contracts
// @Summary      List contracts
// @Tags         contracts
// @Security     BearerAuth
// @Produce      json
// @Param        status     query     string  false  "DRAFT, ACTIVE, SUSPENDED, TERMINATED, EXPIRED"
// @Param        client_id  query     string  false  "Client ID"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Items per page (default 20)"
// @Success      200        {object}  response.Response{data=pagination.Page}
// @Router       /api/contracts [get]
func (h *ContractHandler) ListContracts(c *gin.Context) {
	p := pagination.Parse(c)
	contracts, total, err := h.contractService.ListContracts(c.Request.Context(), service.ListContractsQuery{
		Status:   c.Query("status"),
		ClientID: c.Query("client_id"),
		Page:     p.Page,
		Limit:    p.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, p.Wrap(contracts, total))
}

// GetContract returns a contract with its lines
// @Summary      Get contract
// @Tags         contracts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Contract ID"
// @Success      200  {object}  response.Response{data=service.ContractResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/contracts/{id} [get]
func (h *ContractHandler) GetContract(c *gin.Context) {
	contract, err := h.contractService.GetContract(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, contract)
}

// UpdateContract replaces a DRAFT contract's terms and lines
// @Summary      Update draft contract
// @Tags         contracts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true  "Contract ID"
// @Param        payload  body      service.ContractRequest  true  "Contract"
// @Success      200      {object}  response.Response{data=service.ContractResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/contracts/{id} [put]
func (h *ContractHandler) UpdateContract(c *gin.Context) {
	var req service.ContractRequest
	if !bindJSON(c, &req) {
		return
	}
	contract, err := h.contractService.UpdateDraftContract(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, contract)
}

// DeleteContract removes a DRAFT contract
// @Summary      Delete draft contract
// @Tags         contracts
// @Security     BearerAuth
// @Param        id   path  string  true  "Contract ID"
// @Success      204
// @Failure      409  {object}  response.Response
// @Router       /api/contracts/{id} [delete]
func (h *ContractHandler) DeleteContract(c *gin.Context) {
	if err := h.contractService.DeleteContract(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetSchedule previews the next invoice dates and their billing periods
// @Summary      Billing schedule
// @Tags         contracts
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      string  true   "Contract ID"
// @Param        from   query     string  false  "First date considered (YYYY-MM-DD), defaults to the contract start"
// @Param        count  query     int     false  "Number of dates (default 12, max 120)"
// @Success      200    {object}  response.Response{data=service.ScheduleResponse}
// @Router       /api/contracts/{id}/schedule [get]
func (h *ContractHandler) GetSchedule(c *gin.Context) {
	count, _ := strconv.Atoi(c.Query("count"))
	schedule, err := h.contractService.GetSchedule(c.Request.Context(), c.Param("id"), c.Query("from"), count)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, schedule)
}

// AttachDocument records a signed contract document
// @Summary      Attach contract document
// @Tags         contracts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Contract ID"
// @Param        payload  body      service.AttachDocumentRequest  true  "Document"
// @Success      201      {object}  response.Response{data=service.DocumentResponse}
// @Router       /api/contracts/{id}/documents [post]
func (h *ContractHandler) AttachDocument(c *gin.Context) {
	var req service.AttachDocumentRequest
	if !bindJSON(c, &req) {
		return
	}
	doc, err := h.contractService.AttachDocument(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, doc)
}

// Activate moves a DRAFT contract to ACTIVE and schedules its first invoice
// @Summary      Activate contract
// @Tags         contracts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Contract ID"
// @Success      200  {object}  response.Response{data=service.ContractResponse}
// @Failure      409  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Router       /api/contracts/{id}/activate [post]
func (h *ContractHandler) Activate(c *gin.Context) {
	contract, err := h.contractService.Activate(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, contract)
}

// Suspend pauses invoicing of an ACTIVE contract
// @Summary      Suspend contract
// @Tags         contracts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Contract ID"
// @Param        payload  body      service.ReasonRequest  true  "Reason"
// @Success      200      {object}  response.Response{data=service.ContractResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/contracts/{id}/suspend [post]
func (h *ContractHandler) Suspend(c *gin.Context) {
	var req service.ReasonRequest
	if !bindJSON(c, &req) {
		return
	}
	contract, err := h.contractService.Suspend(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, contract)
}

// Reactivate resumes a SUSPENDED contract from its next scheduled date
// @Summary      Reactivate contract
// @Tags         contracts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Contract ID"
// @Success      200  {object}  response.Response{data=service.ContractResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/contracts/{id}/reactivate [post]
func (h *ContractHandler) Reactivate(c *gin.Context) {
	contract, err := h.contractService.Reactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, contract)
}

// Terminate ends a contract permanently
// @Summary      Terminate contract
// @Tags         contracts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Contract ID"
// @Param        payload  body      service.ReasonRequest  true  "Reason"
// @Success      200      {object}  response.Response{data=service.ContractResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/contracts/{id}/terminate [post]
func (h *ContractHandler) Terminate(c *gin.Context) {
	var req service.ReasonRequest
	if !bindJSON(c, &req) {
		return
	}
	contract, err := h.contractService.Terminate(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, contract)
}

package handler

import (
	"net/http"

	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/pkg/pagination"

	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	catalogService service.CatalogService
	priceService   service.PriceService
}

func NewCatalogHandler(catalogService service.CatalogService, priceService service.PriceService) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		priceService:   priceService,
	}
}

func (h *CatalogHandler) RegisterRoutes(router *gin.RouterGroup) {
	read := middleware.RequireRole(middleware.ReadRoles...)
	write := middleware.RequireRole(middleware.WriteRoles...)

	services := router.Group("/api/services")
	{
		services.POST("", write, h.CreateService)
		services.GET("", read, h.ListServices)
		services.GET("/:id", read, h.GetService)
		services.PUT("/:id", write, h.UpdateService)
		services.POST("/:id/deactivate", write, h.DeactivateService)
		services.GET("/:id/prices", read, h.PriceHistory)
		services.POST("/:id/prices", write, h.SetGlobalPrice)
		services.DELETE("/:id/prices", write, h.ClosePrice)
		services.POST("/:id/clients/:clientId/price", write, h.SetClientPrice)
	}

	router.GET("/api/prices/resolve", read, h.ResolvePrice)
}

// CreateService adds a billable service to the catalog
// @Summary      Create service
// @Tags         services
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateServiceRequest  true  "Service"
// @Success      201      {object}  response.Response{data=service.ServiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/services [post]
func (h *CatalogHandler) CreateService(c *gin.Context) {
	var req service.CreateServiceRequest
	if !bindJSON(c, &req) {
		return
	}
	svc, err := h.catalogService.CreateService(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, svc)
}

// ListServices returns a paginated list of catalog services
// @Summary      List services
// @Tags         services
// @Security     BearerAuth
// @Produce      json
// @Param        active  query     bool    false  "Only active services"
// @Param        search  query     string  false  "Match code or name"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=pagination.Page}
// @Router       /api/services [get]
func (h *CatalogHandler) ListServices(c *gin.Context) {
	p := pagination.Parse(c)
	services, total, err := h.catalogService.ListServices(c.Request.Context(), service.ListServicesQuery{
		ActiveOnly: queryBool(c, "active"),
		Search:     c.Query("search"),
		Page:       p.Page,
		Limit:      p.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, p.Wrap(services, total))
}

// GetService returns one catalog service
// @Summary      Get service
// @Tags         services
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Service ID"
// @Success      200  {object}  response.Response{data=service.ServiceResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/services/{id} [get]
func (h *CatalogHandler) GetService(c *gin.Context) {
	svc, err := h.catalogService.GetService(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, svc)
}

// UpdateService edits the descriptive fields of a service
// @Summary      Update service
// @Tags         services
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Service ID"
// @Param        payload  body      service.UpdateServiceRequest  true  "Changes"
// @Success      200      {object}  response.Response{data=service.ServiceResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/services/{id} [put]
func (h *CatalogHandler) UpdateService(c *gin.Context) {
	var req service.UpdateServiceRequest
	if !bindJSON(c, &req) {
		return
	}
	svc, err := h.catalogService.UpdateService(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, svc)
}

// DeactivateService retires a service
// @Summary      Deactivate service
// @Description  Fails while a global price is open or an active contract bills the service
// @Tags         services
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Service ID"
// @Success      200  {object}  response.Response{data=service.ServiceResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/services/{id}/deactivate [post]
func (h *CatalogHandler) DeactivateService(c *gin.Context) {
	svc, err := h.catalogService.DeactivateService(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, svc)
}

// PriceHistory lists every price version of a service, newest first
// @Summary      Price history
// @Tags         prices
// @Security     BearerAuth
// @Produce      json
// @Param        id         path      string  true   "Service ID"
// @Param        client_id  query     string  false  "Client scope; global when omitted"
// @Success      200        {object}  response.Response{data=[]service.PriceResponse}
// @Router       /api/services/{id}/prices [get]
func (h *CatalogHandler) PriceHistory(c *gin.Context) {
	history, err := h.priceService.PriceHistory(c.Request.Context(), c.Param("id"), c.Query("client_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, history)
}

// SetGlobalPrice opens a new global price version
// @Summary      Set global price
// @Tags         prices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true  "Service ID"
// @Param        payload  body      service.SetPriceRequest  true  "Price"
// @Success      201      {object}  response.Response{data=service.PriceResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/services/{id}/prices [post]
func (h *CatalogHandler) SetGlobalPrice(c *gin.Context) {
	var req service.SetPriceRequest
	if !bindJSON(c, &req) {
		return
	}
	price, err := h.priceService.SetGlobalPrice(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, price)
}

// SetClientPrice opens a new client-specific price version
// @Summary      Set client price
// @Tags         prices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id        path      string                   true  "Service ID"
// @Param        clientId  path      string                   true  "Client ID"
// @Param        payload   body      service.SetPriceRequest  true  "Price"
// @Success      201       {object}  response.Response{data=service.PriceResponse}
// @Failure      400       {object}  response.Response
// @Router       /api/services/{id}/clients/{clientId}/price [post]
func (h *CatalogHandler) SetClientPrice(c *gin.Context) {
	var req service.SetPriceRequest
	if !bindJSON(c, &req) {
		return
	}
	price, err := h.priceService.SetClientPrice(c.Request.Context(), c.Param("id"), c.Param("clientId"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, price)
}

// ClosePrice ends the open price of a scope without opening a new one
// @Summary      Close price
// @Tags         prices
// @Security     BearerAuth
// @Param        id         path  string  true   "Service ID"
// @Param        client_id  query string  false  "Client scope; global when omitted"
// @Success      204
// @Failure      404  {object}  response.Response
// @Router       /api/services/{id}/prices [delete]
func (h *CatalogHandler) ClosePrice(c *gin.Context) {
	if err := h.priceService.ClosePrice(c.Request.Context(), c.Param("id"), c.Query("client_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ResolvePrice returns the price a client would be charged today
// @Summary      Resolve price
// @Tags         prices
// @Security     BearerAuth
// @Produce      json
// @Param        service_id  query     string  true   "Service ID"
// @Param        client_id   query     string  false  "Client ID"
// @Success      200         {object}  response.Response{data=service.ResolvedPriceResponse}
// @Failure      422         {object}  response.Response
// @Router       /api/prices/resolve [get]
func (h *CatalogHandler) ResolvePrice(c *gin.Context) {
	price, err := h.priceService.ResolvePrice(c.Request.Context(), c.Query("service_id"), c.Query("client_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, price)
}

package handler

import (
	"net/http"

	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/straye-as/purchasing-api/internal/service"
	"go.uber.org/zap"
)

// OrderHandler handles supplier orders and delivery confirmation
type OrderHandler struct {
	orderService   *service.OrderService
	invoiceService *service.InvoiceService
	logger         *zap.Logger
}

// NewOrderHandler creates a new order handler instance
func NewOrderHandler(orderService *service.OrderService, invoiceService *service.InvoiceService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService:   orderService,
		invoiceService: invoiceService,
		logger:         logger,
	}
}

// Create godoc
// @Summary Place order
// @Description Places an order with a supplier. The first order moves an approved or escalated request to ordered.
// @Tags Orders
// @Accept json
// @Produce json
// @Param request body domain.CreateOrderRequest true "Order"
// @Success 201 {object} domain.OrderDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Request is closed"
// @Failure 422 {object} domain.APIError "Supplier inactive or line item from another request"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders [post]
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req domain.CreateOrderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	order, err := h.orderService.Create(r.Context(), &req, actor)
	if err != nil {
		handleServiceError(w, h.logger, "Failed to create order", err)
		return
	}

	w.Header().Set("Location", "/api/v1/orders/"+order.ID.String())
	respondJSON(w, http.StatusCreated, order)
}

// GetByID godoc
// @Summary Get order
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID" format(uuid)
// @Success 200 {object} domain.OrderDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id} [get]
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	order, err := h.orderService.GetByID(r.Context(), id, actor)
	if err != nil {
		handleServiceError(w, h.logger, "Failed to get order", err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// ConfirmDelivery godoc
// @Summary Confirm delivery
// @Description Marks an order delivered. Only allowed on or after the order's delivery date.
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID" format(uuid)
// @Success 200 {object} domain.OrderDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Delivery date not reached or order already delivered"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id}/confirm-delivery [post]
func (h *OrderHandler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	order, err := h.orderService.ConfirmDelivery(r.Context(), id, actor)
	if err != nil {
		handleServiceError(w, h.logger, "Failed to confirm delivery", err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// InvoiceSummary godoc
// @Summary Order invoice summary
// @Description Per-currency subtotal of the order's invoices
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID" format(uuid)
// @Success 200 {object} domain.OrderInvoiceSummaryDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id}/invoice-summary [get]
func (h *OrderHandler) InvoiceSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	summary, err := h.invoiceService.OrderSummary(r.Context(), id, actor)
	if err != nil {
		handleServiceError(w, h.logger, "Failed to summarize invoices", err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

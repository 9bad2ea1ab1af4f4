package handler

import (
	"net/http"

	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/straye-as/purchasing-api/internal/service"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader lets warehouse clients retry a shipment safely.
const IdempotencyKeyHeader = "Idempotency-Key"

// ShipmentHandler records warehouse shipments against line items
type ShipmentHandler struct {
	shipmentService *service.ShipmentService
	logger          *zap.Logger
}

// NewShipmentHandler creates a new shipment handler instance
func NewShipmentHandler(shipmentService *service.ShipmentService, logger *zap.Logger) *ShipmentHandler {
	return &ShipmentHandler{
		shipmentService: shipmentService,
		logger:          logger,
	}
}

// Record godoc
// @Summary Record shipment
// @Description Records a shipped quantity against a line item and reconciles the request status.
// @Description Retrying with the same Idempotency-Key returns the original outcome without shipping again.
// @Tags Shipments
// @Accept json
// @Produce json
// @Param id path string true "Line item ID" format(uuid)
// @Param Idempotency-Key header string false "Client supplied retry key"
// @Param request body domain.RecordShipmentRequest true "Shipped quantity"
// @Success 201 {object} domain.ShipmentResultDTO
// @Success 200 {object} domain.ShipmentResultDTO "Replayed outcome of an earlier call"
// @Failure 400 {object} domain.APIError "Quantity is not positive"
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Concurrent modification or item busy"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /line-items/{id}/shipments [post]
func (h *ShipmentHandler) Record(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid line item ID")
		return
	}

	var req domain.RecordShipmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	// The header wins over a key in the body.
	if key := r.Header.Get(IdempotencyKeyHeader); key != "" {
		req.IdempotencyKey = key
	}

	result, err := h.shipmentService.RecordShipment(r.Context(), id, &req, actor)
	if err != nil {
		handleServiceError(w, h.logger, "Failed to record shipment", err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	respondJSON(w, status, result)
}

// List godoc
// @Summary List shipments of a line item
// @Tags Shipments
// @Produce json
// @Param id path string true "Line item ID" format(uuid)
// @Success 200 {array} domain.ShipmentEventDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /line-items/{id}/shipments [get]
func (h *ShipmentHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid line item ID")
		return
	}

	events, err := h.shipmentService.ListByLineItem(r.Context(), id, actor)
	if err != nil {
		handleServiceError(w, h.logger, "Failed to list shipments", err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

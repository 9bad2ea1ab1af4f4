package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/straye-as/purchasing-api/internal/fulfillment"
	"github.com/straye-as/purchasing-api/internal/mapper"
	"github.com/straye-as/purchasing-api/internal/repository"
	"github.com/straye-as/purchasing-api/internal/service"
	"go.uber.org/zap"
)

// PurchaseRequestHandler handles HTTP requests for purchase requests and their workflow
type PurchaseRequestHandler struct {
	requestService *service.PurchaseRequestService
	logger         *zap.Logger
}

// NewPurchaseRequestHandler creates a new purchase request handler instance
func NewPurchaseRequestHandler(requestService *service.PurchaseRequestService, logger *zap.Logger) *PurchaseRequestHandler {
	return &PurchaseRequestHandler{
		requestService: requestService,
		logger:         logger,
	}
}

// List godoc
// @Summary List purchase requests
// @Description Paginated list of purchase requests. Site personnel only see their own requests.
// @Tags PurchaseRequests
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param status query string false "Filter by status"
// @Param site query string false "Filter by site"
// @Param search query string false "Search by title or request number"
// @Param sortBy query string false "Sort field" Enums(createdAt, updatedAt, requestNumber, status, site)
// @Param sortOrder query string false "Sort order" Enums(asc, desc) default(desc)
// @Param locale query string false "Label locale" Enums(tr, en)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.PurchaseRequestDTO}
// @Failure 401 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /purchase-requests [get]
func (h *PurchaseRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	page, pageSize := parsePagination(r)
	q := r.URL.Query()
	filters := &repository.PurchaseRequestFilters{
		Site:   q.Get("site"),
		Search: q.Get("search"),
	}
	if status := q.Get("status"); status != "" {
		s, err := domain.ParseRequestStatus(status)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid status filter")
			return
		}
		filters.Status = &s
	}

	result, err := h.requestService.List(r.Context(), page, pageSize, filters, parseSort(r), actor)
	if err != nil {
		handleServiceError(w, h.logger, "Failed to list purchase requests", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Create godoc
// @Summary Create purchase request
// @Description Creates a pending purchase request with its line items
// @Tags PurchaseRequests
// @Accept json
// @Produce json
// @Param request body domain.CreatePurchaseRequestRequest true "Purchase request"
// @Success 201 {object} domain.PurchaseRequestDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /purchase-requests [post]
func (h *PurchaseRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req domain.CreatePurchaseRequestRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	dto, err := h.requestService.Create(r.Context(), &req, actor)
	if err != nil {
		handleServiceError(w, h.logger, "Failed to create purchase request", err)
		return
	}

	w.Header().Set("Location", "/api/v1/purchase-requests/"+dto.ID.String())
	respondJSON(w, http.StatusCreated, dto)
}

// GetByID godoc
// @Summary Get purchase request
// @Description Returns a purchase request with its line items
// @Tags PurchaseRequests
// @Produce json
// @Param id path string true "Purchase request ID" format(uuid)
// @Success 200 {object} domain.PurchaseRequestDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /purchase-requests/{id} [get]
func (h *PurchaseRequestHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	h.withRequest(w, r, func(actor domain.Actor, id uuid.UUID) {
		dto, err := h.requestService.GetByID(r.Context(), id, actor)
		if err != nil {
			handleServiceError(w, h.logger, "Failed to get purchase request", err)
			return
		}
		respondJSON(w, http.StatusOK, dto)
	})
}

// History godoc
// @Summary Get status history
// @Description Returns the status history of a purchase request, newest first
// @Tags PurchaseRequests
// @Produce json
// @Param id path string true "Purchase request ID" format(uuid)
// @Success 200 {array} domain.StatusHistoryDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /purchase-requests/{id}/history [get]
func (h *PurchaseRequestHandler) History(w http.ResponseWriter, r *http.Request) {
	h.withRequest(w, r, func(actor domain.Actor, id uuid.UUID) {
		history, err := h.requestService.History(r.Context(), id, actor)
		if err != nil {
			handleServiceError(w, h.logger, "Failed to get status history", err)
			return
		}
		respondJSON(w, http.StatusOK, history)
	})
}

// Shipments godoc
// @Summary List shipment events
// @Description Returns every shipment event recorded against the request's line items
// @Tags PurchaseRequests
// @Produce json
// @Param id path string true "Purchase request ID" format(uuid)
// @Success 200 {array} domain.ShipmentEventDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /purchase-requests/{id}/shipments [get]
func (h *PurchaseRequestHandler) Shipments(w http.ResponseWriter, r *http.Request) {
	h.withRequest(w, r, func(actor domain.Actor, id uuid.UUID) {
		events, err := h.requestService.Shipments(r.Context(), id, actor)
		if err != nil {
			handleServiceError(w, h.logger, "Failed to list shipments", err)
			return
		}
		respondJSON(w, http.StatusOK, events)
	})
}

// Reconcile godoc
// @Summary Reconcile status
// @Description Recomputes the fulfillment status of a request from its line items
// @Tags PurchaseRequests
// @Produce json
// @Param id path string true "Purchase request ID" format(uuid)
// @Success 200 {object} domain.PurchaseRequestDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /purchase-requests/{id}/reconcile [post]
func (h *PurchaseRequestHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	h.withRequest(w, r, func(actor domain.Actor, id uuid.UUID) {
		dto, err := h.requestService.Reconcile(r.Context(), id, actor)
		if err != nil {
			handleServiceError(w, h.logger, "Failed to reconcile purchase request", err)
			return
		}
		respondJSON(w, http.StatusOK, dto)
	})
}

// AllowedTransitions godoc
// @Summary List allowed transitions
// @Description Lists the workflow transitions the caller may apply to the request right now
// @Tags PurchaseRequests
// @Produce json
// @Param id path string true "Purchase request ID" format(uuid)
// @Success 200 {object} domain.AllowedTransitionsDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /purchase-requests/{id}/transitions [get]
func (h *PurchaseRequestHandler) AllowedTransitions(w http.ResponseWriter, r *http.Request) {
	h.withRequest(w, r, func(actor domain.Actor, id uuid.UUID) {
		transitions, err := h.requestService.AllowedTransitions(r.Context(), id, actor)
		if err != nil {
			handleServiceError(w, h.logger, "Failed to list transitions", err)
			return
		}
		names := make([]string, len(transitions))
		for i, t := range transitions {
			names[i] = string(t)
		}
		respondJSON(w, http.StatusOK, domain.AllowedTransitionsDTO{Transitions: names})
	})
}

// Transition godoc
// @Summary Apply workflow transition
// @Description Applies an explicit status change such as approve, reject or escalate_to_purchasing
// @Tags PurchaseRequests
// @Accept json
// @Produce json
// @Param id path string true "Purchase request ID" format(uuid)
// @Param transition path string true "Transition" Enums(request_offers, approve, mark_ordered, mark_depot_unavailable, escalate_to_purchasing, reject, complete_delivery)
// @Param request body domain.StatusTransitionRequest false "Optional notes"
// @Success 200 {object} domain.PurchaseRequestDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Transition not allowed from the current status"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /purchase-requests/{id}/transitions/{transition} [post]
func (h *PurchaseRequestHandler) Transition(w http.ResponseWriter, r *http.Request) {
	h.withRequest(w, r, func(actor domain.Actor, id uuid.UUID) {
		t := fulfillment.Transition(chi.URLParam(r, "transition"))
		if !t.IsKnown() {
			respondWithError(w, http.StatusBadRequest, "Unknown transition")
			return
		}

		// The body is optional.
		var req domain.StatusTransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			respondValidationError(w, err)
			return
		}

		dto, err := h.requestService.Transition(r.Context(), id, t, req.Notes, actor)
		if err != nil {
			handleServiceError(w, h.logger, "Failed to apply transition", err)
			return
		}
		respondJSON(w, http.StatusOK, dto)
	})
}

// StatusLabels godoc
// @Summary List status labels
// @Description Returns every request status with its display label in the requested locale
// @Tags PurchaseRequests
// @Produce json
// @Param locale query string false "Label locale" Enums(tr, en)
// @Success 200 {array} domain.StatusLabelDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /purchase-requests/statuses [get]
func (h *PurchaseRequestHandler) StatusLabels(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, mapper.ToStatusLabels(domain.LocaleFromContext(r.Context())))
}

// withRequest resolves the caller and the {id} path parameter.
func (h *PurchaseRequestHandler) withRequest(w http.ResponseWriter, r *http.Request, fn func(domain.Actor, uuid.UUID)) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid purchase request ID")
		return
	}
	fn(actor, id)
}

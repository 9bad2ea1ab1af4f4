package handler

import (
	"fmt"
	"net/http"

	"github.com/straye-as/purchasing-api/internal/domain"
	"github.com/straye-as/purchasing-api/internal/service"
	"go.uber.org/zap"
)

// InvoiceHandler handles invoices, their photos and invoice groups
type InvoiceHandler struct {
	invoiceService *service.InvoiceService
	maxUploadMB    int64
	logger         *zap.Logger
}

// NewInvoiceHandler creates a new invoice handler instance
func NewInvoiceHandler(invoiceService *service.InvoiceService, maxUploadMB int64, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		maxUploadMB:    maxUploadMB,
		logger:         logger,
	}
}

// Create godoc
// @Summary Register invoice
// @Tags Invoices
// @Accept json
// @Produce json
// @Param request body domain.CreateInvoiceRequest true "Invoice"
// @Success 201 {object} domain.InvoiceDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError "Order not found"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoices [post]
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req domain.CreateInvoiceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	invoice, err := h.invoiceService.Create(r.Context(), &req, actor)
	if err != nil {
		handleServiceError(w, h.logger, "Failed to create invoice", err)
		return
	}

	w.Header().Set("Location", "/api/v1/invoices/"+invoice.ID.String())
	respondJSON(w, http.StatusCreated, invoice)
}

// GetByID godoc
// @Summary Get invoice
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID" format(uuid)
// @Success 200 {object} domain.InvoiceDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid invoice ID")
		return
	}

	invoice, err := h.invoiceService.GetByID(r.Context(), id, actor)
	if err != nil {
		handleServiceError(w, h.logger, "Failed to get invoice", err)
		return
	}
	respondJSON(w, http.StatusOK, invoice)
}

// UploadPhoto godoc
// @Summary Upload invoice photo
// @Description Attaches a scanned invoice. The same scan may be attached to several invoices billed together.
// @Tags Invoices
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Invoice ID" format(uuid)
// @Param file formData file true "Photo to upload"
// @Success 201 {object} domain.InvoiceDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 413 {object} domain.APIError "File too large"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoices/{id}/photos [post]
func (h *InvoiceHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid invoice ID")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadMB*1024*1024)
	if err := r.ParseMultipartForm(h.maxUploadMB * 1024 * 1024); err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large: maximum size is %dMB", h.maxUploadMB))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid file upload: file field is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	invoice, err := h.invoiceService.UploadPhoto(r.Context(), id, header.Filename, contentType, file, actor)
	if err != nil {
		handleServiceError(w, h.logger, "Failed to upload invoice photo", err)
		return
	}
	respondJSON(w, http.StatusCreated, invoice)
}

// CreateGroup godoc
// @Summary Create invoice group
// @Description Groups invoices billed together and computes subtotal, discount, tax and grand total in one currency.
// @Tags Invoices
// @Accept json
// @Produce json
// @Param request body domain.CreateInvoiceGroupRequest true "Invoice group"
// @Success 201 {object} domain.InvoiceGroupDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Invoice already grouped"
// @Failure 422 {object} domain.APIError "Mixed currencies or negative grand total"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoice-groups [post]
func (h *InvoiceHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req domain.CreateInvoiceGroupRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	group, err := h.invoiceService.CreateGroup(r.Context(), &req, actor)
	if err != nil {
		handleServiceError(w, h.logger, "Failed to create invoice group", err)
		return
	}

	w.Header().Set("Location", "/api/v1/invoice-groups/"+group.ID.String())
	respondJSON(w, http.StatusCreated, group)
}

// GetGroup godoc
// @Summary Get invoice group
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice group ID" format(uuid)
// @Success 200 {object} domain.InvoiceGroupDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoice-groups/{id} [get]
func (h *InvoiceHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid invoice group ID")
		return
	}

	group, err := h.invoiceService.GetGroup(r.Context(), id, actor)
	if err != nil {
		handleServiceError(w, h.logger, "Failed to get invoice group", err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}

// Batches godoc
// @Summary Invoice batches of a request
// @Description Invoices of a purchase request grouped by invoice group, or by shared photos when ungrouped
// @Tags Invoices
// @Produce json
// @Param id path string true "Purchase request ID" format(uuid)
// @Success 200 {array} domain.InvoiceBatchDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /purchase-requests/{id}/invoice-batches [get]
func (h *InvoiceHandler) Batches(w http.ResponseWriter, r *http.Request) {
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

	batches, err := h.invoiceService.InvoiceBatches(r.Context(), id, actor)
	if err != nil {
		handleServiceError(w, h.logger, "Failed to list invoice batches", err)
		return
	}
	respondJSON(w, http.StatusOK, batches)
}

// TotalsPreview godoc
// @Summary Preview totals
// @Description Computes per-currency subtotals and, for a single currency, the grand total of typed amounts
// @Tags Invoices
// @Accept json
// @Produce json
// @Param request body domain.TotalsPreviewRequest true "Amounts"
// @Success 200 {object} domain.TotalsPreviewDTO
// @Failure 400 {object} domain.APIError
// @Failure 422 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /totals/preview [post]
func (h *InvoiceHandler) TotalsPreview(w http.ResponseWriter, r *http.Request) {
	var req domain.TotalsPreviewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	preview, err := h.invoiceService.TotalsPreview(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.logger, "Failed to compute totals", err)
		return
	}
	respondJSON(w, http.StatusOK, preview)
}

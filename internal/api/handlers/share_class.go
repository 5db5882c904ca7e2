package handlers

import (
	"net/http"

	"github.com/ndewijer/fund-ledger/internal/api/request"
	"github.com/ndewijer/fund-ledger/internal/api/response"
	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/service"
	"github.com/ndewijer/fund-ledger/internal/validation"
)

// ShareClassHandler handles HTTP requests for share classes and their NAV.
type ShareClassHandler struct {
	shareClassService *service.ShareClassService
	navService        *service.NavService
}

// NewShareClassHandler creates a new ShareClassHandler with the provided service dependencies.
func NewShareClassHandler(shareClassService *service.ShareClassService, navService *service.NavService) *ShareClassHandler {
	return &ShareClassHandler{
		shareClassService: shareClassService,
		navService:        navService,
	}
}

// ListShareClasses handles GET requests for every share class ordered by ID.
//
// Endpoint: GET /api/share-class
// Response: 200 OK with array of model.ShareClass
func (h *ShareClassHandler) ListShareClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.shareClassService.ListShareClasses(r.Context())
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrieveShareClasses.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, classes)
}

// GetShareClass handles GET requests for one share class.
//
// Endpoint: GET /api/share-class/{id}
// Response: 200 OK with model.ShareClass
// Error: 404 Not Found if the class does not exist
func (h *ShareClassHandler) GetShareClass(w http.ResponseWriter, r *http.Request) {
	id, ok := classIDParam(w, r)
	if !ok {
		return
	}

	sc, err := h.shareClassService.GetShareClass(r.Context(), id)
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrieveShareClass.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, sc)
}

// AddShareClass handles POST requests to append a share class.
//
// Endpoint: POST /api/share-class
// Request Body: FeeTermsRequest (adminFeeBps, mgmtFeeBps, performFeeBps)
// Response: 201 Created with model.ShareClass
// Error: 400 Bad Request if validation fails
// Error: 403 Forbidden unless called by the manager
func (h *ShareClassHandler) AddShareClass(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	req, err := parseJSON[request.FeeTermsRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	terms, err := validation.ValidateFeeTerms(req)
	if err != nil {
		response.RespondValidationError(w, err)
		return
	}

	sc, err := h.shareClassService.AddShareClass(r.Context(), c, terms)
	if err != nil {
		response.RespondServiceError(w, "failed to add share class", err)
		return
	}

	response.RespondJSON(w, http.StatusCreated, sc)
}

// ModifyShareClassTerms handles PUT requests to replace the fee rates of a class.
//
// Endpoint: PUT /api/share-class/{id}
// Request Body: FeeTermsRequest
// Response: 200 OK with model.ShareClass
// Error: 400 Bad Request if validation fails
// Error: 422 Unprocessable Entity if the class does not exist
func (h *ShareClassHandler) ModifyShareClassTerms(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := classIDParam(w, r)
	if !ok {
		return
	}

	req, err := parseJSON[request.FeeTermsRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	terms, err := validation.ValidateFeeTerms(req)
	if err != nil {
		response.RespondValidationError(w, err)
		return
	}

	sc, err := h.shareClassService.ModifyShareClassTerms(r.Context(), c, id, terms)
	if err != nil {
		response.RespondServiceError(w, "failed to modify share class", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, sc)
}

// PreviewNav handles GET requests for the NAV a calculation would produce
// now. Nothing is written.
//
// Endpoint: GET /api/share-class/{id}/nav
// Response: 200 OK with model.NavResult
// Error: 404 Not Found if the class or the quote does not exist
func (h *ShareClassHandler) PreviewNav(w http.ResponseWriter, r *http.Request) {
	id, ok := classIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.navService.PreviewShareClassNav(r.Context(), id)
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrieveShareClass.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// CalcNav handles POST requests to recalculate and persist one share class.
//
// Endpoint: POST /api/share-class/{id}/nav
// Response: 200 OK with model.NavResult
// Error: 403 Forbidden unless called by the manager
func (h *ShareClassHandler) CalcNav(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := classIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.navService.CalcShareClassNav(r.Context(), c, id)
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrActionFailed.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// NavHistory handles GET requests for recent NAV snapshots of a class.
//
// Endpoint: GET /api/share-class/{id}/history?limit={n}
// Response: 200 OK with array of model.NavSnapshot, newest first
// Error: 400 Bad Request if limit is invalid
func (h *ShareClassHandler) NavHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := classIDParam(w, r)
	if !ok {
		return
	}
	limit, err := request.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid query parameters", err.Error())
		return
	}

	history, err := h.navService.NavHistory(r.Context(), id, limit)
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrieveNavHistory.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, history)
}

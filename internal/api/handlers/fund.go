package handlers

import (
	"net/http"

	"github.com/ndewijer/fund-ledger/internal/api/request"
	"github.com/ndewijer/fund-ledger/internal/api/response"
	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/service"
)

// FundHandler handles HTTP requests for the fund record, the journal and
// fund-wide NAV calculation.
type FundHandler struct {
	fundService *service.FundService
	navService  *service.NavService
}

// NewFundHandler creates a new FundHandler with the provided service dependencies.
func NewFundHandler(fundService *service.FundService, navService *service.NavService) *FundHandler {
	return &FundHandler{
		fundService: fundService,
		navService:  navService,
	}
}

// GetFund handles GET requests for the fund terms, totals and balances.
//
// Endpoint: GET /api/fund
// Response: 200 OK with model.Fund
// Error: 404 Not Found if the fund is not initialized
func (h *FundHandler) GetFund(w http.ResponseWriter, r *http.Request) {
	fund, err := h.fundService.GetFundDetails(r.Context())
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrieveFund.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, fund)
}

// Invariants handles GET requests to reconcile the ledger totals on demand.
//
// Endpoint: GET /api/fund/invariants
// Response: 200 OK with model.InvariantReport (reconciled or not)
func (h *FundHandler) Invariants(w http.ResponseWriter, r *http.Request) {
	report, err := h.fundService.CheckInvariants(r.Context())
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrieveFund.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, report)
}

// Journal handles GET requests for the most recent journal entries.
//
// Endpoint: GET /api/fund/journal?investor={address}&limit={n}
// Response: 200 OK with array of model.JournalEntry, newest first
// Error: 400 Bad Request if a query parameter is invalid
func (h *FundHandler) Journal(w http.ResponseWriter, r *http.Request) {
	filter, err := request.ParseJournalFilter(r.URL.Query().Get("investor"), r.URL.Query().Get("limit"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid query parameters", err.Error())
		return
	}

	entries, err := h.fundService.ListJournal(r.Context(), *filter)
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrieveJournal.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, entries)
}

// CalcNav handles POST requests to recalculate every share class.
//
// Endpoint: POST /api/fund/nav
// Response: 200 OK with array of model.NavResult
// Error: 403 Forbidden unless called by the manager
// Error: 404 Not Found if no quote has been recorded
func (h *FundHandler) CalcNav(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	results, err := h.navService.CalcNav(r.Context(), c)
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrActionFailed.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, results)
}

package handlers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/fund-ledger/internal/api/request"
	"github.com/ndewijer/fund-ledger/internal/api/response"
	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/service"
	"github.com/ndewijer/fund-ledger/internal/units"
	"github.com/ndewijer/fund-ledger/internal/validation"
)

// FeedHandler handles HTTP requests for the data feed quote.
type FeedHandler struct {
	dataFeedService *service.DataFeedService
}

// NewFeedHandler creates a new FeedHandler with the provided service dependency.
func NewFeedHandler(dataFeedService *service.DataFeedService) *FeedHandler {
	return &FeedHandler{
		dataFeedService: dataFeedService,
	}
}

// LatestQuote handles GET requests for the most recent quote.
//
// Endpoint: GET /api/feed
// Response: 200 OK with model.Quote
// Error: 404 Not Found if no quote has been recorded
func (h *FeedHandler) LatestQuote(w http.ResponseWriter, r *http.Request) {
	q, err := h.dataFeedService.LatestQuote(r.Context())
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrieveQuote.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, q)
}

// Update handles POST requests with a quote entered by the manager.
//
// Endpoint: POST /api/feed
// Request Body: FeedUpdateRequest (value, usdEth, usdBtc, usdLtc in cents)
// Response: 201 Created with model.Quote
// Error: 422 Unprocessable Entity if any field is zero
func (h *FeedHandler) Update(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	req, err := parseJSON[request.FeedUpdateRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	q, err := validation.ValidateFeedUpdate(req)
	if err != nil {
		response.RespondValidationError(w, err)
		return
	}

	stored, err := h.dataFeedService.UpdateByManager(r.Context(), c, q)
	if err != nil {
		response.RespondServiceError(w, "failed to update data feed", err)
		return
	}

	response.RespondJSON(w, http.StatusCreated, stored)
}

// Refresh handles POST requests to pull a quote from the remote valuation service.
//
// Endpoint: POST /api/feed/refresh
// Response: 200 OK with model.Quote
// Error: 404 Not Found if no remote feed is configured
// Error: 500 Internal Server Error if the remote request fails
func (h *FeedHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	q, err := h.dataFeedService.RefreshFromRemote(r.Context(), c)
	if err != nil {
		response.RespondServiceError(w, "failed to refresh data feed", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, q)
}

type assetValueResponse struct {
	Value   decimal.Decimal `json:"value"`
	Display string          `json:"display"`
}

// AssetValue handles GET requests for the latest reported portfolio value.
//
// Endpoint: GET /api/feed/value
// Response: 200 OK with {"value": cents, "display": "$1,234.56"}
func (h *FeedHandler) AssetValue(w http.ResponseWriter, r *http.Request) {
	value, err := h.dataFeedService.CurrentAssetValue(r.Context())
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrieveQuote.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, assetValueResponse{Value: value, Display: units.FormatCents(value)})
}

type ratesResponse struct {
	UsdEth    decimal.Decimal `json:"usdEth"`
	UsdBtc    decimal.Decimal `json:"usdBtc"`
	UsdLtc    decimal.Decimal `json:"usdLtc"`
	Timestamp time.Time       `json:"timestamp"`
}

// Rates handles GET requests for the latest exchange rates in cents per unit.
//
// Endpoint: GET /api/feed/rates
// Response: 200 OK with usdEth, usdBtc, usdLtc and timestamp
func (h *FeedHandler) Rates(w http.ResponseWriter, r *http.Request) {
	q, err := h.dataFeedService.ExchangeRates(r.Context())
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrieveQuote.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, ratesResponse{UsdEth: q.UsdEth, UsdBtc: q.UsdBtc, UsdLtc: q.UsdLtc, Timestamp: q.Timestamp})
}

// Config handles GET requests for the remote feed settings. The token is
// never returned.
//
// Endpoint: GET /api/feed/config
// Response: 200 OK with model.FeedConfig
// Error: 404 Not Found if no remote feed is configured
func (h *FeedHandler) Config(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.dataFeedService.FeedConfig(r.Context())
	if err != nil {
		response.RespondServiceError(w, "failed to retrieve feed configuration", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, cfg)
}

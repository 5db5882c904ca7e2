package handlers

import (
	"context"
	"net/http"

	"github.com/ndewijer/fund-ledger/internal/api/request"
	"github.com/ndewijer/fund-ledger/internal/api/response"
	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/model"
	"github.com/ndewijer/fund-ledger/internal/service"
	"github.com/ndewijer/fund-ledger/internal/validation"
)

// InvestorHandler handles HTTP requests for the investor list and the
// manager actions on a single investor. The {address} parameter is
// validated by middleware.
type InvestorHandler struct {
	fundService      *service.FundService
	lifecycleService *service.LifecycleService
}

// NewInvestorHandler creates a new InvestorHandler with the provided service dependencies.
func NewInvestorHandler(fundService *service.FundService, lifecycleService *service.LifecycleService) *InvestorHandler {
	return &InvestorHandler{
		fundService:      fundService,
		lifecycleService: lifecycleService,
	}
}

// ListInvestors handles GET requests for the investor addresses in list order.
//
// Endpoint: GET /api/investor
// Response: 200 OK with array of addresses
func (h *InvestorHandler) ListInvestors(w http.ResponseWriter, r *http.Request) {
	addresses, err := h.fundService.ListInvestorAddresses(r.Context())
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrieveInvestors.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, addresses)
}

// GetInvestor handles GET requests for one investor record.
//
// Endpoint: GET /api/investor/{address}
// Response: 200 OK with model.Investor
// Error: 404 Not Found if the address is not whitelisted
func (h *InvestorHandler) GetInvestor(w http.ResponseWriter, r *http.Request) {
	inv, err := h.fundService.GetInvestor(r.Context(), addressParam(r))
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrieveInvestor.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, inv)
}

// Statement handles GET requests for an investor record valued at the
// current NAV of its share class.
//
// Endpoint: GET /api/investor/{address}/statement
// Response: 200 OK with model.InvestorStatement
func (h *InvestorHandler) Statement(w http.ResponseWriter, r *http.Request) {
	statement, err := h.fundService.GetInvestorStatement(r.Context(), addressParam(r))
	if err != nil {
		response.RespondServiceError(w, apperrors.ErrFailedToRetrieveInvestor.Error(), err)
		return
	}

	response.RespondJSON(w, http.StatusOK, statement)
}

// Whitelist handles POST requests to add an investor.
//
// Endpoint: POST /api/investor
// Request Body: WhitelistInvestorRequest (address, investorType, shareClass)
// Response: 201 Created with model.Investor
// Error: 400 Bad Request if validation fails
// Error: 422 Unprocessable Entity if the address is already whitelisted
func (h *InvestorHandler) Whitelist(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	req, err := parseJSON[request.WhitelistInvestorRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidateWhitelistInvestor(req); err != nil {
		response.RespondValidationError(w, err)
		return
	}

	inv, err := h.fundService.WhiteListInvestor(r.Context(), c, req.Address, model.InvestorType(req.InvestorType), req.ShareClass)
	if err != nil {
		response.RespondServiceError(w, "failed to whitelist investor", err)
		return
	}

	response.RespondJSON(w, http.StatusCreated, inv)
}

// Remove handles DELETE requests for an investor whose balances are all zero.
//
// Endpoint: DELETE /api/investor/{address}
// Response: 204 No Content
// Error: 422 Unprocessable Entity if the investor still holds a balance
func (h *InvestorHandler) Remove(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	if err := h.fundService.RemoveInvestor(r.Context(), c, addressParam(r)); err != nil {
		response.RespondServiceError(w, "failed to remove investor", err)
		return
	}

	response.RespondJSON(w, http.StatusNoContent, nil)
}

// ModifyAllocation handles PUT requests to set the cap on an investor's
// total subscriptions.
//
// Endpoint: PUT /api/investor/{address}/allocation
// Request Body: AmountRequest (amount in the investor's unit)
// Response: 200 OK with model.Investor
func (h *InvestorHandler) ModifyAllocation(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	req, err := parseJSON[request.AmountRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	amount, err := validation.ValidateAllocation(req)
	if err != nil {
		response.RespondValidationError(w, err)
		return
	}

	inv, err := h.lifecycleService.ModifyAllocation(r.Context(), c, addressParam(r), amount)
	if err != nil {
		response.RespondServiceError(w, "failed to modify allocation", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, inv)
}

// Subscribe handles POST requests to convert an investor's pending
// subscription into shares.
//
// Endpoint: POST /api/investor/{address}/subscribe
// Request Body: FulfilRequest (asOf, the lastCalc the manager priced at)
// Response: 200 OK with model.Investor
// Error: 422 Unprocessable Entity if asOf is stale or nothing is pending
func (h *InvestorHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	h.fulfil(w, r, "failed to subscribe investor", h.lifecycleService.SubscribeInvestor)
}

// Redeem handles POST requests to pay out an investor's earmarked shares.
//
// Endpoint: POST /api/investor/{address}/redeem
// Request Body: FulfilRequest
// Response: 200 OK with model.Investor
// Error: 409 Conflict if settled funds do not cover the payout
func (h *InvestorHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	h.fulfil(w, r, "failed to redeem investor", h.lifecycleService.RedeemInvestor)
}

// Liquidate handles POST requests to pay out every share an investor owns.
//
// Endpoint: POST /api/investor/{address}/liquidate
// Request Body: FulfilRequest
// Response: 200 OK with model.Investor
func (h *InvestorHandler) Liquidate(w http.ResponseWriter, r *http.Request) {
	h.fulfil(w, r, "failed to liquidate investor", h.lifecycleService.LiquidateInvestor)
}

type fulfilFunc func(ctx context.Context, c service.Caller, address string, asOf int64) (model.Investor, error)

func (h *InvestorHandler) fulfil(w http.ResponseWriter, r *http.Request, message string, fn fulfilFunc) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	req, err := parseJSON[request.FulfilRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.ValidateFulfil(req); err != nil {
		response.RespondValidationError(w, err)
		return
	}

	inv, err := fn(r.Context(), c, addressParam(r), req.AsOf)
	if err != nil {
		response.RespondServiceError(w, message, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, inv)
}

// Withdraw handles POST requests to pay an investor's pending withdrawal on
// their behalf.
//
// Endpoint: POST /api/investor/{address}/withdraw
// Response: 200 OK with model.Investor
func (h *InvestorHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	inv, err := h.lifecycleService.WithdrawPaymentForInvestor(r.Context(), c, addressParam(r))
	if err != nil {
		response.RespondServiceError(w, "failed to withdraw payment", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, inv)
}

// SubscribeCurrency handles POST requests to deposit cents for a currency
// investor and convert them into shares in one step.
//
// Endpoint: POST /api/investor/{address}/subscribe-currency
// Request Body: SubscribeCurrencyRequest (amount in cents, asOf)
// Response: 200 OK with model.Investor
func (h *InvestorHandler) SubscribeCurrency(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	req, err := parseJSON[request.SubscribeCurrencyRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	cents, err := validation.ValidateSubscribeCurrency(req)
	if err != nil {
		response.RespondValidationError(w, err)
		return
	}

	inv, err := h.lifecycleService.SubscribeCurrencyInvestor(r.Context(), c, addressParam(r), cents, req.AsOf)
	if err != nil {
		response.RespondServiceError(w, "failed to subscribe currency investor", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, inv)
}

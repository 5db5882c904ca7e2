package handlers

import (
	"context"
	"net/http"

	"github.com/ndewijer/fund-ledger/internal/api/request"
	"github.com/ndewijer/fund-ledger/internal/api/response"
	"github.com/ndewijer/fund-ledger/internal/service"
	"github.com/ndewijer/fund-ledger/internal/validation"
)

// LifecycleHandler handles the batch fulfilment endpoints, the investor
// self-service endpoints under /api/me and the exchange remittance.
type LifecycleHandler struct {
	lifecycleService *service.LifecycleService
}

// NewLifecycleHandler creates a new LifecycleHandler with the provided service dependency.
func NewLifecycleHandler(lifecycleService *service.LifecycleService) *LifecycleHandler {
	return &LifecycleHandler{
		lifecycleService: lifecycleService,
	}
}

// FillSubscriptions handles POST requests to fulfil every pending subscription.
// Either every request is filled or none.
//
// Endpoint: POST /api/lifecycle/subscriptions/fill
// Request Body: FulfilRequest
// Response: 200 OK with {"count": n}
func (h *LifecycleHandler) FillSubscriptions(w http.ResponseWriter, r *http.Request) {
	h.batch(w, r, "failed to fill subscription requests", h.lifecycleService.FillAllSubscriptionRequests)
}

// FillRedemptions handles POST requests to pay out every pending redemption.
//
// Endpoint: POST /api/lifecycle/redemptions/fill
// Request Body: FulfilRequest
// Response: 200 OK with {"count": n}
// Error: 409 Conflict if settled funds do not cover the whole batch
func (h *LifecycleHandler) FillRedemptions(w http.ResponseWriter, r *http.Request) {
	h.batch(w, r, "failed to fill redemption requests", h.lifecycleService.FillAllRedemptionRequests)
}

// LiquidateAll handles POST requests to pay out every investor holding shares.
//
// Endpoint: POST /api/lifecycle/liquidations
// Request Body: FulfilRequest
// Response: 200 OK with {"count": n}
func (h *LifecycleHandler) LiquidateAll(w http.ResponseWriter, r *http.Request) {
	h.batch(w, r, "failed to liquidate investors", h.lifecycleService.LiquidateAllInvestors)
}

func (h *LifecycleHandler) batch(w http.ResponseWriter, r *http.Request, message string,
	fn func(ctx context.Context, c service.Caller, asOf int64) (int, error)) {
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

	n, err := fn(r.Context(), c, req.AsOf)
	if err != nil {
		response.RespondServiceError(w, message, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, countResponse{Count: n})
}

// RequestSubscription handles POST requests from an investor to deposit
// funds for the next subscription fill.
//
// Endpoint: POST /api/me/subscription
// Request Body: AmountRequest (amount in the investor's unit)
// Response: 200 OK with model.Investor
// Error: 422 Unprocessable Entity if below the minimum or above the allocation
func (h *LifecycleHandler) RequestSubscription(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	req, err := parseJSON[request.AmountRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	amount, err := validation.ValidatePositiveAmount(req)
	if err != nil {
		response.RespondValidationError(w, err)
		return
	}

	inv, err := h.lifecycleService.RequestSubscription(r.Context(), c, amount)
	if err != nil {
		response.RespondServiceError(w, "failed to request subscription", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, inv)
}

// CancelSubscription handles DELETE requests from an investor to move the
// pending subscription to a pending withdrawal.
//
// Endpoint: DELETE /api/me/subscription
// Response: 200 OK with model.Investor
func (h *LifecycleHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	inv, err := h.lifecycleService.CancelSubscription(r.Context(), c)
	if err != nil {
		response.RespondServiceError(w, "failed to cancel subscription", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, inv)
}

// RequestRedemption handles POST requests from an investor to earmark shares.
//
// Endpoint: POST /api/me/redemption
// Request Body: RedemptionRequest (shares with 4 implied decimals)
// Response: 200 OK with model.Investor
func (h *LifecycleHandler) RequestRedemption(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	req, err := parseJSON[request.RedemptionRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	shares, err := validation.ValidateRedemption(req)
	if err != nil {
		response.RespondValidationError(w, err)
		return
	}

	inv, err := h.lifecycleService.RequestRedemption(r.Context(), c, shares)
	if err != nil {
		response.RespondServiceError(w, "failed to request redemption", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, inv)
}

// CancelRedemption handles DELETE requests from an investor to release
// earmarked shares.
//
// Endpoint: DELETE /api/me/redemption
// Response: 200 OK with model.Investor
func (h *LifecycleHandler) CancelRedemption(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	inv, err := h.lifecycleService.CancelRedemption(r.Context(), c)
	if err != nil {
		response.RespondServiceError(w, "failed to cancel redemption", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, inv)
}

// Withdraw handles POST requests from an investor to collect the pending withdrawal.
//
// Endpoint: POST /api/me/withdraw
// Response: 200 OK with model.Investor
// Error: 409 Conflict if the fund balance does not cover it
func (h *LifecycleHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	inv, err := h.lifecycleService.WithdrawPayment(r.Context(), c)
	if err != nil {
		response.RespondServiceError(w, "failed to withdraw payment", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, inv)
}

// Remit handles POST requests from the exchange paying funds into the fund.
//
// Endpoint: POST /api/exchange/remit
// Request Body: RemitRequest (unit "asset" or "currency", amount)
// Response: 200 OK with model.Fund
// Error: 403 Forbidden unless called by the exchange
func (h *LifecycleHandler) Remit(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}

	req, err := parseJSON[request.RemitRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	unit, amount, err := validation.ValidateRemit(req)
	if err != nil {
		response.RespondValidationError(w, err)
		return
	}

	fund, err := h.lifecycleService.RemitFromExchange(r.Context(), c, unit, amount)
	if err != nil {
		response.RespondServiceError(w, "failed to record remittance", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, fund)
}

// Package middleware provides HTTP middleware for request validation and processing.
package middleware

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/fund-ledger/internal/api/response"
	"github.com/ndewijer/fund-ledger/internal/validation"
)

// ValidateAddressMiddleware validates that the address URL parameter is present
// and is a 0x-prefixed 20 byte hex address.
// Returns 400 Bad Request if the address is missing or invalid.
//
// Example usage in router:
//
//	r.Route("/{address}", func(r chi.Router) {
//	    r.Use(middleware.ValidateAddressMiddleware)
//	    r.Get("/", handler.GetInvestor)
//	})
func ValidateAddressMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := validation.NormalizeAddress(chi.URLParam(r, "address"))

		if address == "" {
			response.RespondError(w, http.StatusBadRequest, "valid address is required", "")
			return
		}

		if err := validation.ValidateAddress(address); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid address format", err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ValidateShareClassIDMiddleware validates that the id URL parameter is a
// non-negative integer.
func ValidateShareClassIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil || id < 0 {
			response.RespondError(w, http.StatusBadRequest, "invalid share class id", chi.URLParam(r, "id"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

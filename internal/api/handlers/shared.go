// Package handlers adapts HTTP requests to the ledger services.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/fund-ledger/internal/api/middleware"
	"github.com/ndewijer/fund-ledger/internal/api/response"
	"github.com/ndewijer/fund-ledger/internal/service"
	"github.com/ndewijer/fund-ledger/internal/validation"
)

// maxBodyBytes caps request bodies; every ledger request is a handful of fields.
const maxBodyBytes = 1 << 16

// parseJSON decodes the request body into T. Unknown fields are rejected.
func parseJSON[T any](r *http.Request) (T, error) {
	var req T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, errors.New("request body is empty")
		}
		return req, fmt.Errorf("invalid JSON: %w", err)
	}
	return req, nil
}

// caller returns the authenticated caller or writes 401.
func caller(w http.ResponseWriter, r *http.Request) (service.Caller, bool) {
	c, ok := middleware.CallerFrom(r.Context())
	if !ok {
		response.RespondError(w, http.StatusUnauthorized, "unauthorized", "no authenticated caller")
		return service.Caller{}, false
	}
	return c, true
}

// addressParam returns the normalized {address} path parameter.
func addressParam(r *http.Request) string {
	return validation.NormalizeAddress(chi.URLParam(r, "address"))
}

// classIDParam parses the {id} path parameter or writes 400.
func classIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 {
		response.RespondError(w, http.StatusBadRequest, "invalid share class id", chi.URLParam(r, "id"))
		return 0, false
	}
	return id, true
}

// countResponse reports how many investors a batch touched.
type countResponse struct {
	Count int `json:"count"`
}

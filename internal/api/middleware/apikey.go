package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/ndewijer/fund-ledger/internal/api/response"
	"github.com/ndewijer/fund-ledger/internal/config"
	"github.com/ndewijer/fund-ledger/internal/service"
	"github.com/ndewijer/fund-ledger/internal/validation"
)

// Request headers read by Authenticate.
const (
	APIKeyHeader          = "X-API-Key"
	InvestorAddressHeader = "X-Investor-Address"
)

type callerKey struct{}

// WithCaller returns a copy of ctx carrying the authenticated caller. The
// caller is also reported to an enclosing Logger.
func WithCaller(ctx context.Context, c service.Caller) context.Context {
	if slot, ok := ctx.Value(callerSlotKey{}).(*callerSlot); ok {
		slot.caller, slot.set = c, true
	}
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored by Authenticate.
func CallerFrom(ctx context.Context) (service.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(service.Caller)
	return c, ok
}

// Authenticate maps the X-API-Key header to a caller role. The investor key
// must come with X-Investor-Address, which becomes the caller's address.
// Whether the role may run an action is decided by the ledger, not here.
//
// Example usage in router:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(middleware.Authenticate(cfg.Auth))
//	    r.Post("/fund/nav", fundHandler.CalcNav)
//	})
func Authenticate(auth config.AuthConfig) func(http.Handler) http.Handler {
	keys := []struct {
		key  []byte
		role service.Role
	}{
		{[]byte(auth.ManagerKey), service.RoleManager},
		{[]byte(auth.ExchangeKey), service.RoleExchange},
		{[]byte(auth.InvestorKey), service.RoleInvestor},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.ManagerKey == "" && auth.ExchangeKey == "" && auth.InvestorKey == "" {
				response.RespondError(w, http.StatusInternalServerError, "internal server error", "Authentication not loaded")
				return
			}

			provided := r.Header.Get(APIKeyHeader)
			if provided == "" {
				response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Missing API key")
				return
			}

			var caller service.Caller
			matched := false
			for _, k := range keys {
				if len(k.key) > 0 && subtle.ConstantTimeCompare([]byte(provided), k.key) == 1 {
					caller = service.Caller{Role: k.role}
					matched = true
				}
			}
			if !matched {
				response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
				return
			}

			if caller.Role == service.RoleInvestor {
				address := validation.NormalizeAddress(r.Header.Get(InvestorAddressHeader))
				if !validation.IsAddress(address) {
					response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid investor address")
					return
				}
				caller.Address = address
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

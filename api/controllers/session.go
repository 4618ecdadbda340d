package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/avolkov/storefront-backend/api/middleware"
	"github.com/avolkov/storefront-backend/api/responses"
	"github.com/avolkov/storefront-backend/api/validators"
	"github.com/avolkov/storefront-backend/pkg/config"
	pkgerrors "github.com/avolkov/storefront-backend/pkg/errors"
	"github.com/avolkov/storefront-backend/pkg/logger"
	redisclient "github.com/avolkov/storefront-backend/pkg/redis"
)

type bindSessionRequest struct {
	BuyerID uuid.UUID `json:"buyer_id" validate:"required"`
}

// SessionBind binds a buyer to the current session. Dev-only stand-in
// for the real identity provider; the router never mounts it in prod.
func SessionBind(cfg config.SessionConfig, store *redisclient.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := middleware.SessionIDFromContext(r.Context())
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeInternal, "session missing"))
			return
		}

		var payload bindSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := store.Set(r.Context(), store.SessionKey(sessionID), payload.BuyerID.String(), cfg.TTL); err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind session"))
			return
		}
		responses.WriteSuccess(w, map[string]string{
			"session_id": sessionID,
			"buyer_id":   payload.BuyerID.String(),
		})
	}
}

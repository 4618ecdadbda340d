package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/avolkov/storefront-backend/pkg/config"
	"github.com/avolkov/storefront-backend/pkg/logger"
	redisclient "github.com/avolkov/storefront-backend/pkg/redis"
)

type contextKey string

const (
	ctxSessionID contextKey = "session_id"
	ctxBuyerID   contextKey = "buyer_id"
)

// Session attaches a session id to every request, minting one in a
// cookie when the client has none, and resolves the buyer bound to the
// session in redis. Requests without a bound buyer proceed anonymous;
// endpoints that need a buyer decide how to react.
func Session(cfg config.SessionConfig, store *redisclient.Client, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			sessionID := ""
			if cookie, err := r.Cookie(cfg.CookieName); err == nil {
				sessionID = cookie.Value
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   int(cfg.TTL.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx = context.WithValue(ctx, ctxSessionID, sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}

			if store != nil {
				raw, err := store.Get(ctx, store.SessionKey(sessionID))
				if err == nil {
					if buyerID, parseErr := uuid.Parse(raw); parseErr == nil {
						ctx = context.WithValue(ctx, ctxBuyerID, buyerID)
						if logg != nil {
							ctx = logg.WithBuyerID(ctx, buyerID.String())
						}
					}
				} else if !redisclient.IsNil(err) && logg != nil {
					logg.Warn(ctx, "session lookup failed")
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithSessionID injects the session identifier into the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSessionID, sessionID)
}

// WithBuyerID injects the buyer identifier into the context.
func WithBuyerID(ctx context.Context, buyerID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxBuyerID, buyerID)
}

func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
		return v
	}
	return ""
}

func BuyerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	if v, ok := ctx.Value(ctxBuyerID).(uuid.UUID); ok {
		return v, true
	}
	return uuid.Nil, false
}

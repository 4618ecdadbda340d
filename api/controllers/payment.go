package controllers

import (
	"net/http"

	"github.com/avolkov/storefront-backend/api/middleware"
	"github.com/avolkov/storefront-backend/api/responses"
	"github.com/avolkov/storefront-backend/api/validators"
	paymentsvc "github.com/avolkov/storefront-backend/internal/payment"
	"github.com/avolkov/storefront-backend/pkg/logger"
)

type paymentRequest struct {
	Number string `json:"number" validate:"required"`
}

type paymentResponse struct {
	Settled int      `json:"settled"`
	Orders  []string `json:"orders"`
}

// PaymentPay settles every order of the buyer awaiting payment.
func PaymentPay(svc paymentsvc.Service, signInPath string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, ok := middleware.BuyerIDFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, signInPath, http.StatusSeeOther)
			return
		}
		sessionID := middleware.SessionIDFromContext(r.Context())

		var payload paymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settled, err := svc.Settle(r.Context(), buyerID, sessionID, payload.Number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ids := make([]string, 0, len(settled))
		for _, order := range settled {
			ids = append(ids, order.ID.String())
		}
		responses.WriteSuccess(w, paymentResponse{Settled: len(settled), Orders: ids})
	}
}

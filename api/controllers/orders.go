package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avolkov/storefront-backend/api/middleware"
	"github.com/avolkov/storefront-backend/api/responses"
	"github.com/avolkov/storefront-backend/api/validators"
	ordersvc "github.com/avolkov/storefront-backend/internal/orders"
	"github.com/avolkov/storefront-backend/pkg/db/models"
	"github.com/avolkov/storefront-backend/pkg/enums"
	pkgerrors "github.com/avolkov/storefront-backend/pkg/errors"
	"github.com/avolkov/storefront-backend/pkg/logger"
)

const orderDetailCacheControl = "max-age=7200"

type orderLineRequest struct {
	Count int             `json:"count"`
	Price decimal.Decimal `json:"price"`
}

type createOrderRequest map[string]orderLineRequest

type confirmOrderRequest struct {
	Address      string `json:"address" validate:"required"`
	City         string `json:"city" validate:"required"`
	DeliveryType string `json:"delivery_type" validate:"required"`
	PaymentType  string `json:"payment_type"`
}

type orderItemResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
}

type deliveryTypeResponse struct {
	Kind string          `json:"kind"`
	Cost decimal.Decimal `json:"cost"`
}

type orderResponse struct {
	ID           uuid.UUID             `json:"id"`
	Status       string                `json:"status"`
	PaymentType  string                `json:"payment_type"`
	City         string                `json:"city,omitempty"`
	Address      string                `json:"address,omitempty"`
	DeliveryType *deliveryTypeResponse `json:"delivery_type,omitempty"`
	Items        []orderItemResponse   `json:"items"`
	TotalCost    decimal.Decimal       `json:"total_cost"`
	CreatedAt    time.Time             `json:"created_at"`
}

func newOrderResponse(order *models.Order, totalCost decimal.Decimal) orderResponse {
	payload := orderResponse{
		ID:          order.ID,
		Status:      order.Status.String(),
		PaymentType: order.PaymentType.String(),
		City:        order.City,
		Address:     order.Address,
		Items:       make([]orderItemResponse, 0, len(order.Items)),
		TotalCost:   totalCost,
		CreatedAt:   order.CreatedAt,
	}
	if order.DeliveryType != nil {
		payload.DeliveryType = &deliveryTypeResponse{
			Kind: order.DeliveryType.Kind.String(),
			Cost: order.DeliveryType.Cost,
		}
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Total:     item.TotalCost(),
		})
	}
	return payload
}

// OrdersCreate turns the submitted lines into the buyer's draft order.
// Anonymous buyers are redirected to sign in rather than rejected with
// an error, mirroring a storefront login flow.
func OrdersCreate(svc ordersvc.Service, signInPath string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, ok := middleware.BuyerIDFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, signInPath, http.StatusSeeOther)
			return
		}
		sessionID := middleware.SessionIDFromContext(r.Context())

		// The body is a bare object keyed by product id, so the struct
		// validator does not apply here.
		var payload createOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body"))
			return
		}

		lines := make([]ordersvc.DraftLine, 0, len(payload))
		for key, line := range payload {
			productID, err := uuid.Parse(key)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Newf(pkgerrors.CodeValidation, "invalid product id %q", key))
				return
			}
			// Any submitted price is ignored; the service re-derives it.
			lines = append(lines, ordersvc.DraftLine{ProductID: productID, Count: line.Count})
		}

		order, created, err := svc.CreateDraft(r.Context(), buyerID, sessionID, lines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, newOrderResponse(order, svc.TotalCost(order)))
	}
}

// OrdersList returns the buyer's order history, newest first.
func OrdersList(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, ok := middleware.BuyerIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeUnauthenticated, "sign in required"))
			return
		}

		listed, err := svc.List(r.Context(), buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := make([]orderResponse, 0, len(listed))
		for i := range listed {
			payload = append(payload, newOrderResponse(&listed[i], svc.TotalCost(&listed[i])))
		}
		responses.WriteSuccess(w, payload)
	}
}

// OrdersActive returns the buyer's draft order, or no content when the
// buyer is anonymous or has no draft.
func OrdersActive(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, ok := middleware.BuyerIDFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		order, err := svc.GetActive(r.Context(), buyerID)
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order, svc.TotalCost(order)))
	}
}

// OrderGet returns a single order. Detail responses are cacheable,
// order history is immutable once written.
func OrderGet(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		order, err := svc.GetByID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Cache-Control", orderDetailCacheControl)
		responses.WriteSuccess(w, newOrderResponse(order, svc.TotalCost(order)))
	}
}

// OrderConfirm applies checkout fields and moves the draft to
// awaiting_payment.
func OrderConfirm(svc ordersvc.Service, signInPath string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, ok := middleware.BuyerIDFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, signInPath, http.StatusSeeOther)
			return
		}

		var payload confirmOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Confirm(r.Context(), buyerID, ordersvc.ConfirmInput{
			Address:      payload.Address,
			City:         payload.City,
			DeliveryKind: enums.DeliveryKind(payload.DeliveryType),
			PaymentType:  enums.PaymentType(payload.PaymentType),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order, svc.TotalCost(order)))
	}
}

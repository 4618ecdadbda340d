package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avolkov/storefront-backend/api/middleware"
	"github.com/avolkov/storefront-backend/api/responses"
	"github.com/avolkov/storefront-backend/api/validators"
	cartsvc "github.com/avolkov/storefront-backend/internal/cart"
	pkgerrors "github.com/avolkov/storefront-backend/pkg/errors"
	"github.com/avolkov/storefront-backend/pkg/logger"
)

type basketMutationRequest struct {
	ID    uuid.UUID `json:"id" validate:"required"`
	Count int       `json:"count"`
}

type basketEntryResponse struct {
	Count int             `json:"count"`
	Price decimal.Decimal `json:"price"`
}

type basketResponse struct {
	Items     map[string]basketEntryResponse `json:"items"`
	TotalCost decimal.Decimal                `json:"total_cost"`
}

type basketLineResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Title     string          `json:"title"`
	Count     int             `json:"count"`
	Price     decimal.Decimal `json:"price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type basketDetailResponse struct {
	Items     []basketLineResponse `json:"items"`
	TotalCost decimal.Decimal      `json:"total_cost"`
}

func newBasketResponse(contents cartsvc.Contents) basketResponse {
	items := make(map[string]basketEntryResponse, len(contents))
	for key, entry := range contents {
		items[key] = basketEntryResponse{Count: entry.Count, Price: entry.Price}
	}
	return basketResponse{Items: items, TotalCost: contents.TotalCost()}
}

// BasketGet returns the cart joined with current product rows.
func BasketGet(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := middleware.SessionIDFromContext(r.Context())

		lines, err := svc.Lines(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := basketDetailResponse{
			Items:     make([]basketLineResponse, 0, len(lines)),
			TotalCost: decimal.Zero,
		}
		for _, line := range lines {
			lineTotal := line.Price.Mul(decimal.NewFromInt(int64(line.Count)))
			payload.Items = append(payload.Items, basketLineResponse{
				ProductID: line.Product.ID,
				Title:     line.Product.Title,
				Count:     line.Count,
				Price:     line.Price,
				LineTotal: lineTotal,
			})
			payload.TotalCost = payload.TotalCost.Add(lineTotal)
		}
		responses.WriteSuccess(w, payload)
	}
}

// BasketAdd adds a product to the cart; count defaults to one.
func BasketAdd(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := middleware.SessionIDFromContext(r.Context())

		var payload basketMutationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		count := payload.Count
		if count == 0 {
			count = 1
		}
		if count < 0 {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "count must be non-negative"))
			return
		}

		contents, err := svc.Add(r.Context(), sessionID, payload.ID, count)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBasketResponse(contents))
	}
}

// BasketReduce lowers a product's count or removes the line.
func BasketReduce(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := middleware.SessionIDFromContext(r.Context())

		var payload basketMutationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Count < 0 {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "count must be non-negative"))
			return
		}

		contents, err := svc.Reduce(r.Context(), sessionID, payload.ID, payload.Count)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBasketResponse(contents))
	}
}

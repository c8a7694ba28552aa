package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/alihaidary/souqna-backend/api/responses"
	"github.com/alihaidary/souqna-backend/api/validators"
	"github.com/alihaidary/souqna-backend/internal/bidding"
	pkgerrors "github.com/alihaidary/souqna-backend/pkg/errors"
	"github.com/alihaidary/souqna-backend/pkg/logger"
)

type placeBidRequest struct {
	AmountIQD         int64  `json:"amount_iqd" validate:"required,min=1"`
	ShippingAddressID string `json:"shipping_address_id" validate:"required,uuid"`
}

// PlaceBid accepts one bid on a live listing.
func PlaceBid(svc bidding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bidding service unavailable"))
			return
		}

		userID, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listingID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "listingId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid listing id"))
			return
		}

		var req placeBidRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		addressID, err := uuid.Parse(req.ShippingAddressID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address id"))
			return
		}

		result, err := svc.PlaceBid(r.Context(), bidding.PlaceBidInput{
			ListingID:         listingID,
			UserID:            userID,
			AmountIQD:         req.AmountIQD,
			ShippingAddressID: addressID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

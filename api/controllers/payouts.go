package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/alihaidary/souqna-backend/api/responses"
	"github.com/alihaidary/souqna-backend/api/validators"
	"github.com/alihaidary/souqna-backend/internal/payouts"
	pkgerrors "github.com/alihaidary/souqna-backend/pkg/errors"
	"github.com/alihaidary/souqna-backend/pkg/logger"
)

type sellerPayoutsResponse struct {
	Payouts        any       `json:"payouts"`
	NextPayoutDate time.Time `json:"next_payout_date"`
}

// SellerPayouts lists the caller's payout history, newest week first.
func SellerPayouts(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		sellerID, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListSellerPayouts(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sellerPayoutsResponse{
			Payouts:        list,
			NextPayoutDate: payouts.NextPayoutDate(time.Now()),
		})
	}
}

// AdminPendingPayouts is the transfer worklist for finance, oldest week
// first.
func AdminPendingPayouts(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		list, err := svc.ListPendingPayouts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type markPaidRequest struct {
	Method    string `json:"method" validate:"required,max=64"`
	Reference string `json:"reference" validate:"max=128"`
}

// AdminMarkPayoutPaid records that the transfer behind a payout went out.
func AdminMarkPayoutPaid(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		adminID, err := requesterID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payoutID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "payoutId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payout id"))
			return
		}

		var req markPaidRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := svc.MarkPayoutAsPaid(r.Context(), payouts.MarkPaidInput{
			PayoutID:  payoutID,
			AdminID:   adminID,
			Method:    req.Method,
			Reference: req.Reference,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payout)
	}
}

type runPayoutsRequest struct {
	WeekStart string `json:"week_start,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// AdminRunPayoutBatch triggers a batch run outside the weekly schedule.
// Without an explicit week it targets the last completed week.
func AdminRunPayoutBatch(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		var req runPayoutsRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		weekStart := payouts.NextPayoutDate(time.Now()).AddDate(0, 0, -14)
		if req.WeekStart != "" {
			parsed, err := time.ParseInLocation("2006-01-02", req.WeekStart, time.UTC)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid week_start"))
				return
			}
			if parsed.Weekday() != time.Monday {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "week_start must be a Monday"))
				return
			}
			weekStart = parsed
		}

		result, err := svc.ProcessWeeklyPayouts(r.Context(), weekStart)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminWeeklyPayoutReport previews per-seller totals for a week without
// writing payout rows.
func AdminWeeklyPayoutReport(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		weekStart := payouts.NextPayoutDate(time.Now()).AddDate(0, 0, -14)
		if raw := strings.TrimSpace(r.URL.Query().Get("weekStart")); raw != "" {
			parsed, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid weekStart"))
				return
			}
			weekStart = parsed
		}

		summaries, err := svc.GenerateWeeklyPayoutReport(r.Context(), weekStart)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"week_start": weekStart,
			"sellers":    summaries,
		})
	}
}

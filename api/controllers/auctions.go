package controllers

import (
	"net/http"

	"github.com/alihaidary/souqna-backend/api/responses"
	"github.com/alihaidary/souqna-backend/internal/auctions"
	pkgerrors "github.com/alihaidary/souqna-backend/pkg/errors"
	"github.com/alihaidary/souqna-backend/pkg/logger"
)

// AdminAuctionCloserStatus exposes the closer's last run for ops checks. The
// closer runs in the cron worker, so the snapshot is read from the shared
// status store rather than a local instance.
func AdminAuctionCloserStatus(store auctions.StatusStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "closer status store unavailable"))
			return
		}
		status, err := store.Load(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load closer status"))
			return
		}
		if status == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "closer has not reported a run yet"))
			return
		}
		responses.WriteSuccess(w, status)
	}
}

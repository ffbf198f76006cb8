package handlers

import (
	"net/http"

	"github.com/spacelink/spacelink/internal/core/engine"
	apperrors "github.com/spacelink/spacelink/internal/errors"
)

// RateWindowStatus is one category of the rate budget report.
type RateWindowStatus struct {
	engine.WindowSnapshot
	Remaining int `json:"remaining"`
}

// RateLimitResponse reports the live budget of every category.
type RateLimitResponse struct {
	Windows []RateWindowStatus `json:"windows"`
}

// RateLimitHandler returns a handler reporting tracker budgets.
func RateLimitHandler(tracker *engine.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tracker == nil {
			respondWithError(w, r, apperrors.NewServiceUnavailableError("rate tracker not configured"))
			return
		}

		snapshots := tracker.Snapshot()
		response := RateLimitResponse{Windows: make([]RateWindowStatus, 0, len(snapshots))}
		for _, snap := range snapshots {
			response.Windows = append(response.Windows, RateWindowStatus{
				WindowSnapshot: snap,
				Remaining:      snap.Remaining(),
			})
		}
		writeJSON(w, http.StatusOK, response)
	}
}

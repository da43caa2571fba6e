package handlers

import (
	"net/http"
	"time"
)

// activeResponse is the wire shape for the active-person session.
type activeResponse struct {
	Known    bool       `json:"known"`
	PersonID *int64     `json:"person_id,omitempty"`
	Name     string     `json:"name"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// ActivePerson returns the current "who is present" state for display logic.
func (a *API) ActivePerson(w http.ResponseWriter, r *http.Request) {
	ap, err := a.svc.ActivePerson(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read active session")
		return
	}

	resp := activeResponse{Known: ap.Known, Name: ap.Name}
	if ap.Known {
		resp.PersonID = &ap.PersonID
		if !ap.LastSeen.IsZero() {
			resp.LastSeen = &ap.LastSeen
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

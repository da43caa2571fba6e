package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-sentry/internal/identity"
)

// personResponse is the wire shape for one person.
type personResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	BankSize  int       `json:"bank_size"`
	CreatedAt time.Time `json:"created_at"`
}

// ListPersons returns every known person with its bank size.
func (a *API) ListPersons(w http.ResponseWriter, r *http.Request) {
	summaries, err := a.svc.Persons(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list persons")
		return
	}

	out := make([]personResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, personResponse{
			ID:        s.Person.ID,
			Name:      s.Person.Name,
			BankSize:  s.BankSize,
			CreatedAt: s.Person.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"persons": out,
		"count":   len(out),
	})
}

// RegisterPerson enrolls a person from an uploaded image. Multipart form:
// "name" plus a single-face image in "file".
func (a *API) RegisterPerson(w http.ResponseWriter, r *http.Request) {
	imageData, err := a.readUploadedImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing or invalid image upload")
		return
	}
	name := r.FormValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	face, err := a.emb.DetectSingleFace(r.Context(), imageData)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	person, outcomes, err := a.svc.Register(r.Context(), name, []identity.Observation{
		{Vector: face.Embedding, Quality: face.Quality()},
	})
	if err != nil {
		var dup *identity.DuplicateIdentityError
		switch {
		case errors.As(err, &dup):
			respondJSON(w, http.StatusConflict, map[string]any{
				"error":      "duplicate identity",
				"person_id":  dup.PersonID,
				"name":       dup.Name,
				"similarity": dup.Similarity,
			})
		case errors.Is(err, identity.ErrRegistrationTooSoon):
			respondError(w, http.StatusTooManyRequests, "registration cooldown active")
		default:
			respondError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"id":      person.ID,
		"name":    person.Name,
		"outcome": outcomes[0].Status.String(),
	})
}

// RenamePerson updates a person's display name. JSON body: {"name": "..."}.
func (a *API) RenamePerson(w http.ResponseWriter, r *http.Request) {
	id, ok := personIDParam(w, r)
	if !ok {
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSONBody(r, &body); err != nil || body.Name == "" {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if err := a.svc.RenamePerson(r.Context(), id, body.Name); err != nil {
		respondError(w, http.StatusInternalServerError, "rename failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "name": body.Name})
}

// RemovePerson deletes a person and its embedding bank.
func (a *API) RemovePerson(w http.ResponseWriter, r *http.Request) {
	id, ok := personIDParam(w, r)
	if !ok {
		return
	}
	if err := a.svc.RemovePerson(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "remove failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearPersons removes all persons and banks. Full reset.
func (a *API) ClearPersons(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Clear(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "clear failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// personIDParam parses the {id} URL parameter, responding with 400 itself
// when the value is not a valid id.
func personIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid person id")
		return 0, false
	}
	return id, true
}

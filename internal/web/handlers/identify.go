package handlers

import (
	"errors"
	"net/http"

	"github.com/kozaktomas/face-sentry/internal/store"
)

// identifyFace is the per-face verdict of an identify request.
type identifyFace struct {
	FaceIndex      int     `json:"face_index"`
	Matched        bool    `json:"matched"`
	PersonID       *int64  `json:"person_id,omitempty"`
	Name           string  `json:"name,omitempty"`
	Confidence     float64 `json:"confidence"`
	HighConfidence bool    `json:"high_confidence"`
}

// Identify runs a one-shot matcher verdict for every face in the uploaded
// image. Independent of the temporal consensus; meant for live "who is
// this" feedback.
func (a *API) Identify(w http.ResponseWriter, r *http.Request) {
	imageData, err := a.readUploadedImage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing or invalid image upload")
		return
	}

	resp, err := a.emb.DetectFaces(r.Context(), imageData)
	if err != nil {
		respondError(w, http.StatusBadGateway, "embedding server unavailable")
		return
	}

	faces := make([]identifyFace, 0, len(resp.Faces))
	for _, face := range resp.Faces {
		match, err := a.svc.Identify(face.Embedding)
		if err != nil {
			if errors.Is(err, store.ErrDimensionMismatch) {
				respondError(w, http.StatusUnprocessableEntity, "embedding dimension mismatch")
				return
			}
			respondError(w, http.StatusInternalServerError, "match failed")
			return
		}

		out := identifyFace{
			FaceIndex:  face.FaceIndex,
			Confidence: a.svc.DisplayConfidence(match),
		}
		if match != nil {
			out.Matched = true
			out.PersonID = &match.PersonID
			out.Name = match.Name
			out.HighConfidence = match.HighConfidence
		}
		faces = append(faces, out)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"faces_count": resp.FacesCount,
		"faces":       faces,
	})
}

// Package handlers implements the HTTP API over the identity core.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-sentry/internal/embedder"
	"github.com/kozaktomas/face-sentry/internal/identity"
	"github.com/kozaktomas/face-sentry/internal/store"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// maxUploadBytes caps the accepted image payload.
const maxUploadBytes = 20 << 20 // 20 MiB

// IdentityService is the part of identity.Service the handlers consume.
// Declared here so tests can substitute a mock.
type IdentityService interface {
	Identify(query []float32) (*identity.Match, error)
	DisplayConfidence(m *identity.Match) float64
	Register(ctx context.Context, name string, obs []identity.Observation) (*store.Person, []store.InsertOutcome, error)
	Persons(ctx context.Context) ([]identity.PersonSummary, error)
	RenamePerson(ctx context.Context, id int64, name string) error
	RemovePerson(ctx context.Context, id int64) error
	Clear(ctx context.Context) error
	ActivePerson(ctx context.Context) (store.ActivePerson, error)
	StartTrack() uuid.UUID
	FeedTrack(ctx context.Context, trackID uuid.UUID, vec []float32, quality float64) (*identity.Decision, error)
	LoseTrack(trackID uuid.UUID)
}

// FaceEmbedder is the embedding-server client surface the handlers consume.
type FaceEmbedder interface {
	DetectFaces(ctx context.Context, imageData []byte) (*embedder.Response, error)
	DetectSingleFace(ctx context.Context, imageData []byte) (*embedder.Face, error)
}

// API bundles the handler dependencies.
type API struct {
	svc          IdentityService
	emb          FaceEmbedder
	maxImageSize int
}

// NewAPI creates the handler set.
func NewAPI(svc IdentityService, emb FaceEmbedder, maxImageSize int) *API {
	return &API{svc: svc, emb: emb, maxImageSize: maxImageSize}
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSONBody decodes a JSON request body into target.
func decodeJSONBody(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(target)
}

// readUploadedImage extracts the "file" part of a multipart upload and
// downscales it for the embedding server.
func (a *API) readUploadedImage(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, err
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, err
	}
	return embedder.Downscale(data, a.maxImageSize)
}

// HealthCheck handles the health check endpoint.
func (a *API) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

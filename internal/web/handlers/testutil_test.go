package handlers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/face-sentry/internal/embedder"
	"github.com/kozaktomas/face-sentry/internal/identity"
	"github.com/kozaktomas/face-sentry/internal/store"
)

// mockService is a hand-rolled IdentityService with injectable results.
type mockService struct {
	identifyMatch *identity.Match
	identifyErr   error

	registerPerson   *store.Person
	registerOutcomes []store.InsertOutcome
	registerErr      error
	registeredName   string

	summaries  []identity.PersonSummary
	personsErr error

	renameErr error
	removeErr error
	clearErr  error
	removedID int64

	active    store.ActivePerson
	activeErr error
}

func (m *mockService) Identify(query []float32) (*identity.Match, error) {
	return m.identifyMatch, m.identifyErr
}

func (m *mockService) DisplayConfidence(match *identity.Match) float64 {
	if match == nil {
		return 0.01
	}
	return match.Similarity
}

func (m *mockService) Register(ctx context.Context, name string, obs []identity.Observation) (*store.Person, []store.InsertOutcome, error) {
	m.registeredName = name
	if m.registerErr != nil {
		return nil, nil, m.registerErr
	}
	return m.registerPerson, m.registerOutcomes, nil
}

func (m *mockService) Persons(ctx context.Context) ([]identity.PersonSummary, error) {
	return m.summaries, m.personsErr
}

func (m *mockService) RenamePerson(ctx context.Context, id int64, name string) error {
	return m.renameErr
}

func (m *mockService) RemovePerson(ctx context.Context, id int64) error {
	m.removedID = id
	return m.removeErr
}

func (m *mockService) Clear(ctx context.Context) error {
	return m.clearErr
}

func (m *mockService) ActivePerson(ctx context.Context) (store.ActivePerson, error) {
	return m.active, m.activeErr
}

func (m *mockService) StartTrack() uuid.UUID {
	return uuid.New()
}

func (m *mockService) FeedTrack(ctx context.Context, trackID uuid.UUID, vec []float32, quality float64) (*identity.Decision, error) {
	return nil, nil
}

func (m *mockService) LoseTrack(trackID uuid.UUID) {}

// mockEmbedder is a hand-rolled FaceEmbedder with injectable results.
type mockEmbedder struct {
	faces      []embedder.Face
	detectErr  error
	singleFace *embedder.Face
	singleErr  error
}

func (m *mockEmbedder) DetectFaces(ctx context.Context, imageData []byte) (*embedder.Response, error) {
	if m.detectErr != nil {
		return nil, m.detectErr
	}
	return &embedder.Response{FacesCount: len(m.faces), Faces: m.faces}, nil
}

func (m *mockEmbedder) DetectSingleFace(ctx context.Context, imageData []byte) (*embedder.Face, error) {
	return m.singleFace, m.singleErr
}

// testRouter mounts the API the same way the server does.
func testRouter(svc IdentityService, emb FaceEmbedder) *chi.Mux {
	api := NewAPI(svc, emb, 1920)
	r := chi.NewRouter()
	r.Get("/health", api.HealthCheck)
	r.Get("/persons", api.ListPersons)
	r.Post("/persons", api.RegisterPerson)
	r.Patch("/persons/{id}", api.RenamePerson)
	r.Delete("/persons/{id}", api.RemovePerson)
	r.Delete("/persons", api.ClearPersons)
	r.Get("/active", api.ActivePerson)
	r.Post("/identify", api.Identify)
	return r
}

// testJPEG returns a small valid JPEG payload.
func testJPEG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

// multipartImage builds a multipart body with an optional name field and an
// image in the "file" part.
func multipartImage(t *testing.T, name string, imageData []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if name != "" {
		if err := mw.WriteField("name", name); err != nil {
			t.Fatalf("writing name field: %v", err)
		}
	}
	if imageData != nil {
		part, err := mw.CreateFormFile("file", "face.jpg")
		if err != nil {
			t.Fatalf("creating file part: %v", err)
		}
		if _, err := part.Write(imageData); err != nil {
			t.Fatalf("writing file part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func testFace(embedding []float32, score float64) embedder.Face {
	return embedder.Face{
		FaceIndex: 0,
		Dim:       len(embedding),
		Embedding: embedding,
		DetScore:  score,
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/face-sentry/internal/embedder"
	"github.com/kozaktomas/face-sentry/internal/identity"
	"github.com/kozaktomas/face-sentry/internal/store"
)

func TestIdentify(t *testing.T) {
	faces := []embedder.Face{
		testFace([]float32{1, 0, 0, 0}, 0.9),
	}
	svc := &mockService{
		identifyMatch: &identity.Match{
			PersonID:       4,
			Name:           "Alice",
			Similarity:     0.93,
			BankSize:       8,
			MeetsFloor:     true,
			HighConfidence: true,
		},
	}
	router := testRouter(svc, &mockEmbedder{faces: faces})

	body, contentType := multipartImage(t, "", testJPEG(t))
	req := httptest.NewRequest(http.MethodPost, "/identify", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		FacesCount int `json:"faces_count"`
		Faces      []struct {
			Matched        bool    `json:"matched"`
			PersonID       *int64  `json:"person_id"`
			Name           string  `json:"name"`
			Confidence     float64 `json:"confidence"`
			HighConfidence bool    `json:"high_confidence"`
		} `json:"faces"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.FacesCount != 1 || len(resp.Faces) != 1 {
		t.Fatalf("faces_count = %d, faces = %d, want 1 each", resp.FacesCount, len(resp.Faces))
	}
	face := resp.Faces[0]
	if !face.Matched || face.PersonID == nil || *face.PersonID != 4 || face.Name != "Alice" {
		t.Errorf("face = %+v, want matched Alice (4)", face)
	}
	if !face.HighConfidence || face.Confidence != 0.93 {
		t.Errorf("confidence = %v high=%v, want 0.93 high", face.Confidence, face.HighConfidence)
	}
}

func TestIdentifyUnmatchedFace(t *testing.T) {
	faces := []embedder.Face{testFace([]float32{0, 1, 0, 0}, 0.5)}
	router := testRouter(&mockService{}, &mockEmbedder{faces: faces})

	body, contentType := multipartImage(t, "", testJPEG(t))
	req := httptest.NewRequest(http.MethodPost, "/identify", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Faces []struct {
			Matched    bool    `json:"matched"`
			Confidence float64 `json:"confidence"`
		} `json:"faces"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Faces) != 1 || resp.Faces[0].Matched {
		t.Fatalf("faces = %+v, want one unmatched face", resp.Faces)
	}
	if resp.Faces[0].Confidence != 0.01 {
		t.Errorf("confidence = %v, want the default 0.01", resp.Faces[0].Confidence)
	}
}

func TestIdentifyDimensionMismatch(t *testing.T) {
	faces := []embedder.Face{testFace([]float32{1, 0}, 0.9)}
	svc := &mockService{identifyErr: store.ErrDimensionMismatch}
	router := testRouter(svc, &mockEmbedder{faces: faces})

	body, contentType := multipartImage(t, "", testJPEG(t))
	req := httptest.NewRequest(http.MethodPost, "/identify", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestIdentifyEmbedderUnavailable(t *testing.T) {
	router := testRouter(&mockService{}, &mockEmbedder{detectErr: errors.New("connection refused")})

	body, contentType := multipartImage(t, "", testJPEG(t))
	req := httptest.NewRequest(http.MethodPost, "/identify", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestActivePerson(t *testing.T) {
	t.Run("known", func(t *testing.T) {
		seen := time.Now().UTC()
		svc := &mockService{
			active: store.ActivePerson{PersonID: 2, Name: "Alice", LastSeen: seen, Known: true},
		}
		router := testRouter(svc, &mockEmbedder{})

		req := httptest.NewRequest(http.MethodGet, "/active", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var resp struct {
			Known    bool   `json:"known"`
			PersonID *int64 `json:"person_id"`
			Name     string `json:"name"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if !resp.Known || resp.PersonID == nil || *resp.PersonID != 2 || resp.Name != "Alice" {
			t.Errorf("response = %+v, want known Alice (2)", resp)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		svc := &mockService{active: store.ActivePerson{Name: "Unknown"}}
		router := testRouter(svc, &mockEmbedder{})

		req := httptest.NewRequest(http.MethodGet, "/active", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var resp struct {
			Known    bool   `json:"known"`
			PersonID *int64 `json:"person_id"`
			Name     string `json:"name"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if resp.Known || resp.PersonID != nil || resp.Name != "Unknown" {
			t.Errorf("response = %+v, want unknown", resp)
		}
	})
}

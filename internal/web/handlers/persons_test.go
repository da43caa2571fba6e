package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-sentry/internal/identity"
	"github.com/kozaktomas/face-sentry/internal/store"
)

func TestHealthCheck(t *testing.T) {
	router := testRouter(&mockService{}, &mockEmbedder{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestListPersons(t *testing.T) {
	svc := &mockService{
		summaries: []identity.PersonSummary{
			{Person: store.Person{ID: 1, Name: "Alice", CreatedAt: time.Now()}, BankSize: 3},
			{Person: store.Person{ID: 2, Name: "Bob", CreatedAt: time.Now()}, BankSize: 1},
		},
	}
	router := testRouter(svc, &mockEmbedder{})

	req := httptest.NewRequest(http.MethodGet, "/persons", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Count   int `json:"count"`
		Persons []struct {
			ID       int64  `json:"id"`
			Name     string `json:"name"`
			BankSize int    `json:"bank_size"`
		} `json:"persons"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Count != 2 || len(body.Persons) != 2 {
		t.Fatalf("count = %d, persons = %d, want 2 each", body.Count, len(body.Persons))
	}
	if body.Persons[0].Name != "Alice" || body.Persons[0].BankSize != 3 {
		t.Errorf("first person = %+v, want Alice with bank 3", body.Persons[0])
	}
}

func TestListPersonsError(t *testing.T) {
	svc := &mockService{personsErr: errors.New("db down")}
	router := testRouter(svc, &mockEmbedder{})

	req := httptest.NewRequest(http.MethodGet, "/persons", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestRegisterPerson(t *testing.T) {
	face := testFace([]float32{1, 0, 0, 0}, 0.9)
	svc := &mockService{
		registerPerson:   &store.Person{ID: 7, Name: "Alice"},
		registerOutcomes: []store.InsertOutcome{{Status: store.Inserted}},
	}
	router := testRouter(svc, &mockEmbedder{singleFace: &face})

	body, contentType := multipartImage(t, "Alice", testJPEG(t))
	req := httptest.NewRequest(http.MethodPost, "/persons", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if svc.registeredName != "Alice" {
		t.Errorf("registered name = %q, want Alice", svc.registeredName)
	}

	var resp struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Outcome string `json:"outcome"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.ID != 7 || resp.Outcome != "inserted" {
		t.Errorf("response = %+v, want id 7, outcome inserted", resp)
	}
}

func TestRegisterPersonValidation(t *testing.T) {
	face := testFace([]float32{1, 0, 0, 0}, 0.9)

	t.Run("missing name", func(t *testing.T) {
		router := testRouter(&mockService{}, &mockEmbedder{singleFace: &face})
		body, contentType := multipartImage(t, "", testJPEG(t))
		req := httptest.NewRequest(http.MethodPost, "/persons", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		router := testRouter(&mockService{}, &mockEmbedder{singleFace: &face})
		body, contentType := multipartImage(t, "Alice", nil)
		req := httptest.NewRequest(http.MethodPost, "/persons", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("face detection failure", func(t *testing.T) {
		router := testRouter(&mockService{}, &mockEmbedder{singleErr: errors.New("no face detected")})
		body, contentType := multipartImage(t, "Alice", testJPEG(t))
		req := httptest.NewRequest(http.MethodPost, "/persons", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
		}
	})
}

func TestRegisterPersonDuplicate(t *testing.T) {
	face := testFace([]float32{1, 0, 0, 0}, 0.9)
	svc := &mockService{
		registerErr: &identity.DuplicateIdentityError{PersonID: 3, Name: "Alice", Similarity: 0.82},
	}
	router := testRouter(svc, &mockEmbedder{singleFace: &face})

	body, contentType := multipartImage(t, "Bob", testJPEG(t))
	req := httptest.NewRequest(http.MethodPost, "/persons", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}

	var resp struct {
		PersonID   int64   `json:"person_id"`
		Name       string  `json:"name"`
		Similarity float64 `json:"similarity"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.PersonID != 3 || resp.Name != "Alice" {
		t.Errorf("response = %+v, want person 3 Alice", resp)
	}
}

func TestRegisterPersonCooldown(t *testing.T) {
	face := testFace([]float32{1, 0, 0, 0}, 0.9)
	svc := &mockService{registerErr: identity.ErrRegistrationTooSoon}
	router := testRouter(svc, &mockEmbedder{singleFace: &face})

	body, contentType := multipartImage(t, "Alice", testJPEG(t))
	req := httptest.NewRequest(http.MethodPost, "/persons", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}

func TestRenamePerson(t *testing.T) {
	svc := &mockService{}
	router := testRouter(svc, &mockEmbedder{})

	req := httptest.NewRequest(http.MethodPatch, "/persons/5", strings.NewReader(`{"name":"Alicia"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRenamePersonValidation(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
	}{
		{"invalid id", "/persons/abc", `{"name":"Alicia"}`},
		{"zero id", "/persons/0", `{"name":"Alicia"}`},
		{"empty name", "/persons/5", `{"name":""}`},
		{"malformed body", "/persons/5", `{not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := testRouter(&mockService{}, &mockEmbedder{})
			req := httptest.NewRequest(http.MethodPatch, tt.target, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestRemovePerson(t *testing.T) {
	svc := &mockService{}
	router := testRouter(svc, &mockEmbedder{})

	req := httptest.NewRequest(http.MethodDelete, "/persons/5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if svc.removedID != 5 {
		t.Errorf("removed id = %d, want 5", svc.removedID)
	}
}

func TestClearPersons(t *testing.T) {
	router := testRouter(&mockService{}, &mockEmbedder{})

	req := httptest.NewRequest(http.MethodDelete, "/persons", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

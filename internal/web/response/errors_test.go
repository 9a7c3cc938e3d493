package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRenderError(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusBadRequest, "bad_request"},
		{http.StatusNotFound, "not_found"},
		{http.StatusUnprocessableEntity, "unprocessable_entity"},
		{http.StatusInternalServerError, "internal_error"},
		{http.StatusTeapot, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			RenderError(w, tt.status, errors.New("boom"))

			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
				t.Errorf("unexpected content type %q", ct)
			}

			var body ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Code != tt.code || body.Message != "boom" {
				t.Errorf("unexpected body %+v", body)
			}
		})
	}
}

func TestRenderErrorWithDetails(t *testing.T) {
	w := httptest.NewRecorder()
	RenderErrorWithDetails(w, http.StatusUnprocessableEntity, errors.New("bad key"), map[string]interface{}{"missing": []string{"b"}})

	var body ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Details["missing"] == nil {
		t.Errorf("expected details, got %+v", body)
	}
}

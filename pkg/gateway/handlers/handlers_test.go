package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tutorvox/tutorvox/pkg/gateway/auth"
)

// withPrincipal attaches an authenticated caller, standing in for the
// session middleware.
func withPrincipal(r *http.Request, userID uuid.UUID) *http.Request {
	p := &auth.Principal{UserID: userID, Email: "ada@example.com"}
	return r.WithContext(auth.WithPrincipal(r.Context(), p))
}

func jsonRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	decodeBody(t, rec, &body)
	return body.Error.Type
}

package fetchhttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/medrec-labs/profilecache"
)

func newClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestFetchSendsAllIdentifiers(t *testing.T) {
	var gotQuery url.Values
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"patient_id":"AB12C","first_name":"Ada"}`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Token: func() string { return "tok-123" }})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	raw, err := c.Fetch(context.Background(), profilecache.IdentifierSet{
		PatientID: "AB12C", UserID: "42", Email: "ada@example.org",
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if raw.PatientID != "AB12C" || raw.FirstName != "Ada" {
		t.Fatalf("decoded profile = %+v", raw)
	}
	if gotQuery.Get("patient_id") != "AB12C" || gotQuery.Get("user_id") != "42" || gotQuery.Get("email") != "ada@example.org" {
		t.Fatalf("query = %v", gotQuery)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("authorization = %q", gotAuth)
	}
}

func TestFetchEmptyIdentifierSet(t *testing.T) {
	c, err := New(Config{BaseURL: "https://api.clinic.example"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Fetch(context.Background(), profilecache.IdentifierSet{}); err != profilecache.ErrNoIdentifiers {
		t.Fatalf("err = %v, want ErrNoIdentifiers", err)
	}
}

// TestFetchStatusClassification: the error kind depends on the status
// code alone, never on response body text.
func TestFetchStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   profilecache.FetchKind
	}{
		{http.StatusUnauthorized, `{"detail":"token expired"}`, profilecache.FetchUnauthorized},
		{http.StatusForbidden, `{"detail":"not yours"}`, profilecache.FetchUnauthorized},
		{http.StatusNotFound, `{"detail":"no such patient"}`, profilecache.FetchNotFound},
		// A body that happens to contain "404" must not change the kind.
		{http.StatusInternalServerError, `{"detail":"upstream returned 404"}`, profilecache.FetchServerError},
		{http.StatusBadGateway, ``, profilecache.FetchServerError},
		{http.StatusRequestTimeout, ``, profilecache.FetchServerError},
		{http.StatusTooManyRequests, ``, profilecache.FetchServerError},
		{http.StatusTeapot, ``, profilecache.FetchMalformed},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(tc.body))
		}))
		c := newClient(t, srv)
		_, err := c.Fetch(context.Background(), profilecache.IdentifierSet{PatientID: "AB12C"})
		srv.Close()

		var fe *profilecache.FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("status %d: err = %v, want *FetchError", tc.status, err)
		}
		if fe.Kind != tc.want || fe.Status != tc.status {
			t.Fatalf("status %d: classified as %v/%d, want %v", tc.status, fe.Kind, fe.Status, tc.want)
		}
	}
}

func TestFetchUndecodableBodyIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html>login page</html>`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv).Fetch(context.Background(), profilecache.IdentifierSet{PatientID: "AB12C"})
	if !profilecache.IsMalformed(err) {
		t.Fatalf("err = %v, want malformed", err)
	}
}

func TestFetchTransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse the connection

	_, err := newClient(t, srv).Fetch(context.Background(), profilecache.IdentifierSet{PatientID: "AB12C"})
	if !profilecache.IsTransient(err) {
		t.Fatalf("err = %v, want transient", err)
	}
}

func TestFetchPhoto(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		var gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			w.Write([]byte(`{"photo_url":"https://cdn.clinic.example/p/ab12c.jpg"}`))
		}))
		defer srv.Close()

		url, found, err := newClient(t, srv).FetchPhoto(context.Background(), "AB12C")
		if err != nil || !found || url != "https://cdn.clinic.example/p/ab12c.jpg" {
			t.Fatalf("FetchPhoto = %q, %v, %v", url, found, err)
		}
		if gotPath != "/api/patients/AB12C/photo/" {
			t.Fatalf("path = %q", gotPath)
		}
	})

	// Confirmed absence in all three shapes the store produces.
	for _, tc := range []struct {
		name   string
		status int
		body   string
	}{
		{"404", http.StatusNotFound, ``},
		{"204", http.StatusNoContent, ``},
		{"empty url", http.StatusOK, `{"photo_url":""}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			url, found, err := newClient(t, srv).FetchPhoto(context.Background(), "AB12C")
			if err != nil || found || url != "" {
				t.Fatalf("FetchPhoto = %q, %v, %v; want confirmed absence", url, found, err)
			}
		})
	}

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, found, err := newClient(t, srv).FetchPhoto(context.Background(), "AB12C")
		if found || !profilecache.IsTransient(err) {
			t.Fatalf("FetchPhoto = %v, %v; want transient error", found, err)
		}
	})
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected an error for a missing base URL")
	}
}

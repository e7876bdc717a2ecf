package storage

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestStorage(t *testing.T, handler http.HandlerFunc) *SupabaseStorage {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSupabase(srv.URL, "service-key", "presentations", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestUpload(t *testing.T) {
	content := []byte("PK\x03\x04 deck bytes")

	s := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %q", r.Method)
		}
		wantPath := "/storage/v1/object/presentations/user123/deck.pptx"
		if r.URL.Path != wantPath {
			t.Errorf("path = %q, want %q", r.URL.Path, wantPath)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer service-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.presentationml.presentation" {
			t.Errorf("Content-Type = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != string(content) {
			t.Error("uploaded body did not match")
		}
		w.WriteHeader(http.StatusOK)
	})

	url, err := s.Upload(context.Background(), "user123/deck.pptx",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation", content)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	wantSuffix := "/storage/v1/object/public/presentations/user123/deck.pptx"
	if len(url) < len(wantSuffix) || url[len(url)-len(wantSuffix):] != wantSuffix {
		t.Errorf("public URL = %q, want suffix %q", url, wantSuffix)
	}
}

func TestUpload_ServerError(t *testing.T) {
	s := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bucket not found"}`, http.StatusNotFound)
	})

	_, err := s.Upload(context.Background(), "user123/deck.pptx", "application/pdf", []byte("x"))
	if err == nil {
		t.Fatal("expected an error for a failed upload")
	}
}

func TestFetch(t *testing.T) {
	content := []byte("%PDF-1.7 bytes")

	s := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method %q", r.Method)
		}
		w.Write(content)
	})

	// Fetch takes a full URL; build one pointing at the test server.
	got, err := s.Fetch(context.Background(), s.PublicURL("user123/deck.pdf"))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(got) != string(content) {
		t.Error("fetched bytes did not match")
	}
}

func TestFetch_NotFound(t *testing.T) {
	s := newTestStorage(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := s.Fetch(context.Background(), s.PublicURL("user123/missing.pdf"))
	if err == nil {
		t.Fatal("expected an error for a missing object")
	}
}

package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"

	"github.com/leaflog/leaflog"
	"github.com/leaflog/leaflog/internal/domain"
)

func TestRequestUnwrapsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-1" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("User-Agent") != "leaflog-client" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		json.NewEncoder(w).Encode(leaflog.OKResponse(map[string]string{"name": "monstera"}))
	}))
	defer server.Close()

	c := New(server.URL)
	c.SetToken("token-1")

	var out struct {
		Name string `json:"name"`
	}
	if err := c.Request(context.Background(), http.MethodGet, "/api/v1/plants", nil, &out); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if out.Name != "monstera" {
		t.Fatalf("data not unwrapped: %+v", out)
	}
}

func TestErrorEnvelopeBecomesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(leaflog.ErrResponse(leaflog.ErrCodeNotFound, "Not found"))
	}))
	defer server.Close()

	c := New(server.URL)
	err := c.Request(context.Background(), http.MethodGet, "/api/v1/shares/u/1", nil, nil)
	if err == nil {
		t.Fatal("expected an error")
	}

	var apiErr APIError
	if !errors.As(err, &apiErr) || apiErr.Code != leaflog.ErrCodeNotFound {
		t.Fatalf("expected not_found APIError, got %v", err)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("not_found should match domain.ErrNotFound: %v", err)
	}
	if errors.Is(err, domain.ErrNotImplemented) {
		t.Fatal("not_found must not match ErrNotImplemented")
	}
}

func TestNotImplementedMapping(t *testing.T) {
	err := APIError{Code: leaflog.ErrCodeNotImplemented}
	if !errors.Is(err, domain.ErrNotImplemented) {
		t.Fatalf("not_implemented should match domain.ErrNotImplemented: %v", err)
	}
}

func TestGetCachedServesRepeatsLocally(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode(leaflog.OKResponse(map[string]int{"count": 3}))
	}))
	defer server.Close()

	c := New(server.URL)

	var out map[string]int
	for i := 0; i < 3; i++ {
		if err := c.GetCached(context.Background(), "/api/v1/shares/likes?key=k", &out); err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if out["count"] != 3 {
			t.Fatalf("get %d: bad data %v", i, out)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("expected 1 upstream hit, got %d", hits.Load())
	}

	c.InvalidateCached("/api/v1/shares/likes?key=k")
	if err := c.GetCached(context.Background(), "/api/v1/shares/likes?key=k", &out); err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("invalidate did not drop the entry, hits=%d", hits.Load())
	}
}

func TestUploadSendsMultipartFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("no file field: %v", err)
			json.NewEncoder(w).Encode(leaflog.ErrResponse(leaflog.ErrCodeUploadFailed, ""))
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "leaf.jpg" || string(data) != "jpegbytes" {
			t.Errorf("bad upload: %q %q", header.Filename, data)
		}
		json.NewEncoder(w).Encode(leaflog.OKResponse(map[string]string{"ref": "asset://u/plants/x.jpg"}))
	}))
	defer server.Close()

	c := New(server.URL)

	var out struct {
		Ref string `json:"ref"`
	}
	if err := c.Upload(context.Background(), "/api/v1/assets", "leaf.jpg", []byte("jpegbytes"), &out); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if out.Ref == "" {
		t.Fatal("no ref returned")
	}
}

func TestQueryPath(t *testing.T) {
	got := QueryPath("/api/v1/shares/likes", map[string]string{"key": "owner#1", "imageKey": "0"})
	want := "/api/v1/shares/likes?imageKey=0&key=owner%231"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if QueryPath("/x", nil) != "/x" {
		t.Fatal("empty params must leave the path untouched")
	}
}

package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-nbgen/pkg/client"
	"github.com/goliatone/go-nbgen/pkg/generators"
)

const searchFixture = `{
  "hits": {
    "hits": [
      {"_source": {
        "uuid": "u1",
        "organ": "kidney",
        "files": [
          {"rel_path": "raw/counts.csv", "size": 12},
          {"rel_path": "secondary_analysis.h5ad", "description": "expression"}
        ]
      }}
    ]
  }
}`

func newServer(t *testing.T, seen *http.Request, seenBody *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = *r.Clone(context.Background())
		if seenBody != nil {
			if err := json.NewDecoder(r.Body).Decode(seenBody); err != nil {
				t.Errorf("decode body: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchFixture))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Metadata(t *testing.T) {
	var seen http.Request
	var body map[string]any
	srv := newServer(t, &seen, &body)

	c := client.New("secret", client.WithBaseURL(srv.URL+"/v3/"))
	records, err := c.Metadata(context.Background(), []string{"u1", "u2"})
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}

	want := []map[string]any{
		{"uuid": "u1", "organ": "kidney"},
		{"uuid": "u2"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	if seen.Method != http.MethodPost {
		t.Fatalf("method mismatch: %s", seen.Method)
	}
	if seen.URL.Path != "/v3/search" {
		t.Fatalf("path mismatch: %s", seen.URL.Path)
	}
	if got := seen.Header.Get("Authorization"); got != "Bearer secret" {
		t.Fatalf("authorization mismatch: %q", got)
	}
	terms, _ := body["query"].(map[string]any)["terms"].(map[string]any)
	if diff := cmp.Diff([]any{"u1", "u2"}, terms["uuid"]); diff != "" {
		t.Fatalf("query terms mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_FilesAndAnnData(t *testing.T) {
	var seen http.Request
	srv := newServer(t, &seen, nil)

	c := client.New("", client.WithBaseURL(srv.URL), client.WithAssetsURL("https://assets.example/"))

	files, err := c.Files(context.Background(), []string{"u1"})
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	wantFiles := map[string][]generators.File{
		"u1": {
			{RelPath: "raw/counts.csv", Size: 12, URL: "https://assets.example/u1/raw/counts.csv"},
			{RelPath: "secondary_analysis.h5ad", Description: "expression", URL: "https://assets.example/u1/secondary_analysis.h5ad"},
		},
	}
	if diff := cmp.Diff(wantFiles, files); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}
	if got := seen.Header.Get("Authorization"); got != "" {
		t.Fatalf("anonymous request carried authorization %q", got)
	}

	ann, err := c.AnnData(context.Background(), []string{"u1"})
	if err != nil {
		t.Fatalf("anndata: %v", err)
	}
	if len(ann["u1"]) != 1 || !strings.HasSuffix(ann["u1"][0].RelPath, ".h5ad") {
		t.Fatalf("anndata mismatch: %#v", ann)
	}
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	c := client.New("bad", client.WithBaseURL(srv.URL))
	_, err := c.Metadata(context.Background(), []string{"u1"})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestClient_EmptyUUIDsSkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	t.Cleanup(srv.Close)

	c := client.New("", client.WithBaseURL(srv.URL))
	records, err := c.Metadata(context.Background(), nil)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if len(records) != 0 || called {
		t.Fatalf("expected no request and no records, got %v (called=%v)", records, called)
	}
}

func TestFactory(t *testing.T) {
	factory := client.Factory(client.WithBaseURL("http://localhost:1"))
	c, err := factory("token")
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if _, ok := c.(*client.Client); !ok {
		t.Fatalf("unexpected client type %T", c)
	}
}

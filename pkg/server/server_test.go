package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-nbgen/pkg/catalog"
	"github.com/goliatone/go-nbgen/pkg/generators"
	"github.com/goliatone/go-nbgen/pkg/render"
	"github.com/goliatone/go-nbgen/pkg/server"
	"github.com/goliatone/go-nbgen/pkg/testsupport"
)

func newServer(t *testing.T, fake *testsupport.FakeClient, options ...server.Option) http.Handler {
	t.Helper()
	c, err := catalog.Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	factory := render.WithClientFactory(func(token string) (generators.Client, error) {
		fake.Token = token
		return fake, nil
	})
	s, err := server.New(c, append([]server.Option{server.WithRenderOptions(factory)}, options...)...)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return s.Handler()
}

func do(h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTemplates(t *testing.T) {
	h := newServer(t, &testsupport.FakeClient{})

	rec := do(h, http.MethodGet, "/templates", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var got []struct {
		Name   string `json:"name"`
		Format string `json:"template_format"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	names := make([]string, 0, len(got))
	for _, tpl := range got {
		names = append(names, tpl.Name)
	}
	want := []string{"anndata_analysis", "blank", "dataset_summary", "metadata_overview"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}

	if rec := do(h, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body)
	}
}

func TestTemplateNotebook(t *testing.T) {
	fake := &testsupport.FakeClient{}
	h := newServer(t, fake)

	rec := do(h, http.MethodPost, "/templates/dataset_summary/notebook",
		`{"uuids": ["u1"], "title": "Kidney"}`,
		map[string]string{"Authorization": "Bearer secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ipynb+json" {
		t.Fatalf("content type %q", ct)
	}
	if fake.Token != "secret" {
		t.Fatalf("bearer token not forwarded, got %q", fake.Token)
	}
	if !strings.Contains(rec.Body.String(), `# Kidney`) {
		t.Fatalf("title not rendered: %s", rec.Body)
	}
}

func TestTemplateNotebook_Errors(t *testing.T) {
	h := newServer(t, &testsupport.FakeClient{})

	cases := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{name: "unknown template", target: "/templates/nope/notebook", body: `{}`, want: http.StatusNotFound},
		{name: "empty body", target: "/templates/blank/notebook", body: ``, want: http.StatusBadRequest},
		{name: "bad uuids", target: "/templates/blank/notebook", body: `{"uuids": "u1"}`, want: http.StatusBadRequest},
		{name: "missing token", target: "/templates/metadata_overview/notebook", body: `{"uuids": ["u1"]}`, want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(h, http.MethodPost, tc.target, tc.body, nil)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body)
			}
		})
	}
}

func TestTemplateNotebook_NonStringTokenRejected(t *testing.T) {
	fake := &testsupport.FakeClient{}
	h := newServer(t, fake)

	rec := do(h, http.MethodPost, "/templates/dataset_summary/notebook",
		`{"uuids": ["u1"], "group_token": 7}`,
		map[string]string{"Authorization": "Bearer secret"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "group_token must be a string") {
		t.Fatalf("unexpected error body: %s", rec.Body)
	}
	if fake.Token != "" {
		t.Fatalf("bearer token should not be used, client built with %q", fake.Token)
	}
}

func TestRender_Inline(t *testing.T) {
	h := newServer(t, &testsupport.FakeClient{})

	body := `{"metadata": {"template_format": "json"}, "uuids": ["u1"], "group_token": "t",
	  "template": [{"cell_type": "code_cell", "src": "print({{ uuids|length }})"}]}`
	rec := do(h, http.MethodPost, "/render", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"source":"print(1)"`) {
		t.Fatalf("unexpected notebook: %s", rec.Body)
	}

	cases := map[string]struct {
		body string
		want int
	}{
		"unsupported format": {body: `{"metadata": {"template_format": "yaml"}}`, want: http.StatusBadRequest},
		"broken json":        {body: `{`, want: http.StatusBadRequest},
		"jinja without asset": {
			body: `{"metadata": {"template_format": "jinja"}, "group_token": "t"}`,
			want: http.StatusNotFound,
		},
		"template error": {
			body: `{"metadata": {"template_format": "json"}, "group_token": "t",
			  "template": [{"cell_type": "code_cell", "src": "{{ broken"}]}`,
			want: http.StatusUnprocessableEntity,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(h, http.MethodPost, "/render", tc.body, nil)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newServer(t, &testsupport.FakeClient{}, server.WithMetrics(reg))

	if rec := do(h, http.MethodPost, "/templates/blank/notebook", `{}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("render blank: %d %s", rec.Code, rec.Body)
	}
	rec := do(h, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `nbgen_renders_total{format="python",outcome="ok",template="blank"} 1`) {
		t.Fatalf("render counter missing:\n%s", rec.Body)
	}
}

func TestNew_RequiresCatalog(t *testing.T) {
	if _, err := server.New(nil); err == nil {
		t.Fatalf("expected error for nil catalog")
	}
}

// Package client implements generators.Client against an Elasticsearch-style
// search API that indexes dataset entities by uuid. Files are resolved to
// download URLs under a separate assets host.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/goliatone/go-nbgen/pkg/generators"
)

const (
	DefaultBaseURL   = "https://search.api.hubmapconsortium.org/v3/"
	DefaultAssetsURL = "https://assets.hubmapconsortium.org/"
	defaultTimeout   = 30 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the search API root.
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithAssetsURL overrides the host files are downloaded from.
func WithAssetsURL(raw string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			c.assetsURL = trimmed
		}
	}
}

// WithHTTPClient injects the HTTP client. It is copied so the timeout option
// never mutates the caller's client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			clone := *httpClient
			c.http = &clone
		}
	}
}

// WithTimeout bounds each search request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// Client queries the search API with the group token as bearer credential.
type Client struct {
	token     string
	baseURL   string
	assetsURL string
	http      *http.Client
	timeout   time.Duration
}

var _ generators.Client = (*Client)(nil)

// New constructs a Client. An empty token sends anonymous requests.
func New(token string, options ...Option) *Client {
	c := &Client{
		token:     strings.TrimSpace(token),
		baseURL:   DefaultBaseURL,
		assetsURL: DefaultAssetsURL,
		timeout:   defaultTimeout,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	return c
}

// Factory returns a generators.ClientFactory building Clients with options.
func Factory(options ...Option) generators.ClientFactory {
	return func(token string) (generators.Client, error) {
		return New(token, options...), nil
	}
}

// Metadata returns the indexed entity for each uuid with its file list
// removed. Uuids the index does not know yield a record holding only the uuid.
func (c *Client) Metadata(ctx context.Context, uuids []string) ([]map[string]any, error) {
	sources, err := c.search(ctx, uuids)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(uuids))
	for _, uuid := range uuids {
		source, ok := sources[uuid]
		if !ok {
			out = append(out, map[string]any{"uuid": uuid})
			continue
		}
		record := make(map[string]any, len(source))
		for key, value := range source {
			if key == "files" {
				continue
			}
			record[key] = value
		}
		out = append(out, record)
	}
	return out, nil
}

// Files returns every file listed on each uuid's entity.
func (c *Client) Files(ctx context.Context, uuids []string) (map[string][]generators.File, error) {
	return c.files(ctx, uuids, func(generators.File) bool { return true })
}

// AnnData returns the .h5ad files listed on each uuid's entity.
func (c *Client) AnnData(ctx context.Context, uuids []string) (map[string][]generators.File, error) {
	return c.files(ctx, uuids, func(f generators.File) bool {
		return strings.HasSuffix(strings.ToLower(f.RelPath), ".h5ad")
	})
}

func (c *Client) files(ctx context.Context, uuids []string, keep func(generators.File) bool) (map[string][]generators.File, error) {
	sources, err := c.search(ctx, uuids)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]generators.File, len(sources))
	for _, uuid := range uuids {
		source, ok := sources[uuid]
		if !ok {
			continue
		}
		files, err := decodeFiles(source["files"])
		if err != nil {
			return nil, fmt.Errorf("client: files for %s: %w", uuid, err)
		}
		for _, file := range files {
			if !keep(file) {
				continue
			}
			file.URL = c.fileURL(uuid, file.RelPath)
			out[uuid] = append(out[uuid], file)
		}
	}
	return out, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// search fetches the indexed entities for uuids keyed by uuid.
func (c *Client) search(ctx context.Context, uuids []string) (map[string]map[string]any, error) {
	if len(uuids) == 0 {
		return map[string]map[string]any{}, nil
	}

	body, err := json.Marshal(map[string]any{
		"size": len(uuids),
		"query": map[string]any{
			"terms": map[string]any{"uuid": uuids},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("client: encode query: %w", err)
	}

	endpoint, err := url.JoinPath(c.baseURL, "search")
	if err != nil {
		return nil, fmt.Errorf("client: search url: %w", err)
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if c.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New("client: unexpected status " + resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var decoded searchResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("client: decode search response: %w", err)
	}

	out := make(map[string]map[string]any, len(decoded.Hits.Hits))
	for _, hit := range decoded.Hits.Hits {
		uuid, _ := hit.Source["uuid"].(string)
		if uuid == "" {
			continue
		}
		out[uuid] = hit.Source
	}
	return out, nil
}

func (c *Client) fileURL(uuid, relPath string) string {
	base, err := url.Parse(c.assetsURL)
	if err != nil {
		return ""
	}
	base.Path = path.Join("/", base.Path, uuid, relPath)
	return base.String()
}

func decodeFiles(raw any) ([]generators.File, error) {
	if raw == nil {
		return nil, nil
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var files []generators.File
	if err := json.Unmarshal(payload, &files); err != nil {
		return nil, err
	}
	return files, nil
}

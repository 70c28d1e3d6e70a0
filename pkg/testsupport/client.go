package testsupport

import (
	"context"
	"sync"

	"github.com/goliatone/go-nbgen/pkg/generators"
)

// FakeClient is an in-memory generators.Client. It records the uuids of every
// call so tests can assert the renderer forwarded them.
type FakeClient struct {
	Token    string
	Records  map[string]map[string]any
	FileSets map[string][]generators.File
	AnnSets  map[string][]generators.File
	Err      error

	mu    sync.Mutex
	calls []string
}

var _ generators.Client = (*FakeClient)(nil)

// Metadata returns the configured record for each uuid, or a stub record
// holding only the uuid.
func (c *FakeClient) Metadata(_ context.Context, uuids []string) ([]map[string]any, error) {
	c.record("metadata")
	if c.Err != nil {
		return nil, c.Err
	}
	out := make([]map[string]any, 0, len(uuids))
	for _, uuid := range uuids {
		if record, ok := c.Records[uuid]; ok {
			out = append(out, record)
			continue
		}
		out = append(out, map[string]any{"uuid": uuid})
	}
	return out, nil
}

// Files returns the configured file sets.
func (c *FakeClient) Files(_ context.Context, uuids []string) (map[string][]generators.File, error) {
	c.record("files")
	if c.Err != nil {
		return nil, c.Err
	}
	return pick(c.FileSets, uuids), nil
}

// AnnData returns the configured AnnData sets.
func (c *FakeClient) AnnData(_ context.Context, uuids []string) (map[string][]generators.File, error) {
	c.record("anndata")
	if c.Err != nil {
		return nil, c.Err
	}
	return pick(c.AnnSets, uuids), nil
}

// Calls returns the operations invoked so far, in order.
func (c *FakeClient) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *FakeClient) record(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, op)
}

func pick(sets map[string][]generators.File, uuids []string) map[string][]generators.File {
	out := make(map[string][]generators.File, len(uuids))
	for _, uuid := range uuids {
		if files, ok := sets[uuid]; ok {
			out[uuid] = files
		}
	}
	return out
}

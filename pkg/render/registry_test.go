package render_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-nbgen/pkg/render"
)

func TestRegistry(t *testing.T) {
	reg := render.NewRegistry()
	reg.MustRegister(render.MustNew(render.WithName("beta")))
	reg.MustRegister(render.MustNew(render.WithName("alpha")))

	if diff := cmp.Diff([]string{"alpha", "beta"}, reg.List()); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}
	if !reg.Has("alpha") || reg.Has("gamma") {
		t.Fatalf("has mismatch")
	}
	if err := reg.Register(render.MustNew(render.WithName("alpha"))); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if err := reg.Register(render.MustNew()); err == nil {
		t.Fatalf("expected error for unnamed renderer")
	}
	if _, err := reg.Get("gamma"); err == nil {
		t.Fatalf("expected error for missing renderer")
	}
	if got := reg.MustGet("beta").Name(); got != "beta" {
		t.Fatalf("name mismatch: %q", got)
	}
}

package cli

import (
	"testing"

	"github.com/git-theta/theta/internal/config"
)

func TestMergeAttributesAddsAllThreeWhenAbsent(t *testing.T) {
	got, err := mergeAttributes("*.pt", nil)
	if err != nil {
		t.Fatalf("mergeAttributes: %v", err)
	}
	want := "*.pt filter=theta diff=theta merge=theta"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMergeAttributesPreservesUnrelatedAttributes(t *testing.T) {
	got, err := mergeAttributes("*.pt", []string{"text", "eol=lf"})
	if err != nil {
		t.Fatalf("mergeAttributes: %v", err)
	}
	want := "*.pt text eol=lf filter=theta diff=theta merge=theta"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMergeAttributesIsIdempotent(t *testing.T) {
	first, err := mergeAttributes("*.pt", nil)
	if err != nil {
		t.Fatalf("mergeAttributes: %v", err)
	}
	fields := append([]string{}, []string{"filter=theta", "diff=theta", "merge=theta"}...)
	second, err := mergeAttributes("*.pt", fields)
	if err != nil {
		t.Fatalf("mergeAttributes: %v", err)
	}
	if first != second {
		t.Errorf("got %q, want %q", second, first)
	}
}

func TestMergeAttributesRefusesToOverwriteOtherFilter(t *testing.T) {
	_, err := mergeAttributes("*.bin", []string{"filter=lfs"})
	if err == nil {
		t.Error("want an error when filter is already set to something other than theta")
	}
}

func TestUpsertPatternAddsNewPattern(t *testing.T) {
	cfg := &config.Config{}
	upsertPattern(cfg, "*.pt", "pickled-dict")
	if len(cfg.Patterns) != 1 {
		t.Fatalf("want 1 pattern, got %d", len(cfg.Patterns))
	}
	if cfg.Patterns[0].Pattern != "*.pt" || cfg.Patterns[0].CheckpointFormat != "pickled-dict" {
		t.Errorf("got %+v", cfg.Patterns[0])
	}
}

func TestUpsertPatternUpdatesExistingPattern(t *testing.T) {
	cfg := &config.Config{Patterns: []config.PatternConfig{{Pattern: "*.pt", CheckpointFormat: "pickled-dict"}}}
	upsertPattern(cfg, "*.pt", "sharded")
	if len(cfg.Patterns) != 1 {
		t.Fatalf("want 1 pattern, got %d", len(cfg.Patterns))
	}
	if cfg.Patterns[0].CheckpointFormat != "sharded" {
		t.Errorf("got %q, want sharded", cfg.Patterns[0].CheckpointFormat)
	}
}

func TestUpsertPatternKeepsExistingFormatWhenNewOneIsEmpty(t *testing.T) {
	cfg := &config.Config{Patterns: []config.PatternConfig{{Pattern: "*.pt", CheckpointFormat: "pickled-dict"}}}
	upsertPattern(cfg, "*.pt", "")
	if cfg.Patterns[0].CheckpointFormat != "pickled-dict" {
		t.Errorf("got %q, want pickled-dict preserved", cfg.Patterns[0].CheckpointFormat)
	}
}

// Package paramdiff renders a human-readable per-parameter change
// summary between two Metadata documents, for the `explain` sub-command
// wired to Git's `diff.theta.command` (spec.md §6). Grounded on
// cmd/entire/cli/strategy/manual_commit_attribution.go's
// DiffLinesToChars/DiffMain/DiffCharsToLines line-diff pattern and its
// added/removed/unchanged line accounting.
package paramdiff

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/git-theta/theta/internal/metadata"
)

// ParamChange describes one parameter's change between two revisions.
type ParamChange struct {
	Name    string
	Kind    string // "added", "removed", or "modified"
	Summary string // one-line human-readable description
}

// Explain computes the per-parameter changes between doc (the newer
// revision) and other (the older revision), in lexicographic name
// order.
func Explain(doc, other metadata.Document) []ParamChange {
	added, removed, modified := metadata.Diff(doc, other)

	var changes []ParamChange
	for name, rec := range added {
		changes = append(changes, ParamChange{
			Name: name, Kind: "added",
			Summary: fmt.Sprintf("shape=%v dtype=%s update_type=%s", rec.Tensor.Shape, rec.Tensor.DType, rec.Theta.UpdateType),
		})
	}
	for name, rec := range removed {
		changes = append(changes, ParamChange{
			Name: name, Kind: "removed",
			Summary: fmt.Sprintf("shape=%v dtype=%s update_type=%s", rec.Tensor.Shape, rec.Tensor.DType, rec.Theta.UpdateType),
		})
	}
	otherFlat := metadata.Flatten(other)
	for name, rec := range modified {
		changes = append(changes, ParamChange{
			Name: name, Kind: "modified",
			Summary: summarizeModification(rec, otherFlat[name]),
		})
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Name < changes[j].Name })
	return changes
}

func summarizeModification(newRec, oldRec *metadata.ParamRecord) string {
	var parts []string
	if !shapeEqual(newRec.Tensor.Shape, oldRec.Tensor.Shape) {
		parts = append(parts, fmt.Sprintf("shape %v -> %v", oldRec.Tensor.Shape, newRec.Tensor.Shape))
	}
	if newRec.Tensor.DType != oldRec.Tensor.DType {
		parts = append(parts, fmt.Sprintf("dtype %s -> %s", oldRec.Tensor.DType, newRec.Tensor.DType))
	}
	if newRec.Theta.UpdateType != oldRec.Theta.UpdateType {
		parts = append(parts, fmt.Sprintf("update_type %s -> %s", oldRec.Theta.UpdateType, newRec.Theta.UpdateType))
	}
	added, removed, unchanged := lineDiff(renderRecord(oldRec), renderRecord(newRec))
	parts = append(parts, fmt.Sprintf("record: +%d/-%d lines (%d unchanged)", added, removed, unchanged))
	return strings.Join(parts, ", ")
}

func shapeEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func renderRecord(rec *metadata.ParamRecord) string {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}

// lineDiff runs a line-granular diff of before -> after, returning the
// number of added, removed, and unchanged lines.
func lineDiff(before, after string) (added, removed, unchanged int) {
	dmp := diffmatchpatch.New()
	text1, text2, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(text1, text2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	for _, d := range diffs {
		lines := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			unchanged += lines
		case diffmatchpatch.DiffInsert:
			added += lines
		case diffmatchpatch.DiffDelete:
			removed += lines
		}
	}
	return added, removed, unchanged
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	lines := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		lines++
	}
	return lines
}

// Render joins a slice of ParamChange into the final text printed by
// the explain sub-command, one line per parameter.
func Render(changes []ParamChange) string {
	lines := make([]string, 0, len(changes))
	for _, c := range changes {
		lines = append(lines, fmt.Sprintf("%s %s: %s", c.Kind, c.Name, c.Summary))
	}
	return strings.Join(lines, "\n")
}

package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/git-theta/theta/internal/config"
	"github.com/git-theta/theta/internal/logging"
	"github.com/git-theta/theta/internal/paths"
)

const gitAttributesFile = ".gitattributes"

func newTrackCmd() *cobra.Command {
	var checkpointFormat string
	cmd := &cobra.Command{
		Use:   "track <pattern>",
		Short: "Register a glob pattern as a theta-tracked checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging("track")
			defer logging.Close()
			if err := runTrack(args[0], checkpointFormat); err != nil {
				return fail(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "git-theta: now tracking %q\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&checkpointFormat, "checkpoint-format", "", "checkpoint format plug-in for paths matching this pattern")
	return cmd
}

func runTrack(pattern, checkpointFormat string) error {
	root, err := paths.RepoRoot()
	if err != nil {
		return err
	}

	if err := trackAttribute(root, pattern); err != nil {
		return err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	upsertPattern(cfg, pattern, checkpointFormat)
	return config.Save(root, cfg)
}

func upsertPattern(cfg *config.Config, pattern, checkpointFormat string) {
	for i, p := range cfg.Patterns {
		if p.Pattern == pattern {
			if checkpointFormat != "" {
				cfg.Patterns[i].CheckpointFormat = checkpointFormat
			}
			return
		}
	}
	cfg.Patterns = append(cfg.Patterns, config.PatternConfig{Pattern: pattern, CheckpointFormat: checkpointFormat})
}

// trackAttribute appends or amends pattern's line in .gitattributes so
// it carries filter=theta, diff=theta, and merge=theta, preserving any
// other attribute already on the line and erroring if filter/diff/merge
// is already set to something other than theta (spec.md §6's track
// sub-command contract).
func trackAttribute(root, pattern string) error {
	path := filepath.Join(root, gitAttributesFile)
	lines, err := readLines(path)
	if err != nil {
		return err
	}

	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] != pattern {
			continue
		}
		merged, err := mergeAttributes(pattern, fields[1:])
		if err != nil {
			return err
		}
		lines[i] = merged
		return writeLines(path, lines)
	}

	lines = append(lines, fmt.Sprintf("%s filter=theta diff=theta merge=theta", pattern))
	return writeLines(path, lines)
}

func mergeAttributes(pattern string, attrs []string) (string, error) {
	required := map[string]bool{"filter": false, "diff": false, "merge": false}
	var kept []string
	for _, attr := range attrs {
		name, value, ok := strings.Cut(attr, "=")
		if ok {
			if _, isThetaAttr := required[name]; isThetaAttr {
				if value != "theta" {
					return "", fmt.Errorf("%s already has %s=%s, refusing to overwrite with theta", pattern, name, value)
				}
				required[name] = true
				kept = append(kept, attr)
				continue
			}
		}
		kept = append(kept, attr)
	}
	for _, name := range []string{"filter", "diff", "merge"} {
		if !required[name] {
			kept = append(kept, name+"=theta")
		}
	}
	return pattern + " " + strings.Join(kept, " "), nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // path is derived from the repository root
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func writeLines(path string, lines []string) error {
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

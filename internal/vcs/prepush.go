package vcs

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/git-theta/theta/internal/thetaerr"
)

// PrePushLine is one parsed line of git's pre-push hook stdin:
// "<local ref> SP <local sha1> SP <remote ref> SP <remote sha1>".
type PrePushLine struct {
	LocalRef  string
	LocalSHA  string
	RemoteRef string
	RemoteSHA string
}

// ParsePrePushStdin parses every line of a pre-push hook's stdin.
func ParsePrePushStdin(r io.Reader) ([]PrePushLine, error) {
	var lines []PrePushLine
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		line, err := parsePrePushLine(text)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, thetaerr.New(thetaerr.Decode, fmt.Errorf("reading pre-push stdin: %w", err))
	}
	return lines, nil
}

func parsePrePushLine(text string) (PrePushLine, error) {
	fields := strings.Fields(text)
	if len(fields) != 4 {
		return PrePushLine{}, thetaerr.New(thetaerr.Decode, fmt.Errorf("malformed pre-push line %q: expected 4 fields, got %d", text, len(fields)))
	}
	return PrePushLine{
		LocalRef:  fields[0],
		LocalSHA:  fields[1],
		RemoteRef: fields[2],
		RemoteSHA: fields[3],
	}, nil
}

package linkextract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PostLink is a cross-reference to a single channel post.
type PostLink struct {
	URL       string
	Username  string
	MessageID int64
}

// Pattern is a compiled permalink shape that link targets must match in full.
type Pattern struct {
	re *regexp.Regexp
}

// CompilePattern anchors expr so that only whole link targets match.
func CompilePattern(expr string) (*Pattern, error) {
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return nil, fmt.Errorf("compile link pattern: %w", err)
	}

	return &Pattern{re: re}, nil
}

// MustCompilePattern is like CompilePattern but panics on error.
func MustCompilePattern(expr string) *Pattern {
	p, err := CompilePattern(expr)
	if err != nil {
		panic(err)
	}

	return p
}

// Matches reports whether target matches the pattern in full.
func (p *Pattern) Matches(target string) bool {
	return p.re.MatchString(target)
}

// ExtractPostLinks returns the post links among targets that fully match the pattern.
// Source order is preserved and duplicates are kept.
func ExtractPostLinks(targets []string, pattern *Pattern) []PostLink {
	var links []PostLink

	for _, target := range targets {
		if !pattern.Matches(target) {
			continue
		}

		link, ok := parsePostLink(target)
		if !ok {
			continue
		}

		links = append(links, link)
	}

	return links
}

func parsePostLink(target string) (PostLink, bool) {
	parts := strings.Split(strings.TrimRight(target, "/"), "/")
	if len(parts) < 2 {
		return PostLink{}, false
	}

	username := parts[len(parts)-2]

	msgID, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil || username == "" {
		return PostLink{}, false
	}

	return PostLink{
		URL:       target,
		Username:  username,
		MessageID: msgID,
	}, true
}

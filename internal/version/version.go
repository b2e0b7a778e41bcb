// Package version parses and extracts scenario simulation version tokens.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jacoelho/scesim/errors"
)

// Version is a major.minor document version token.
type Version struct {
	Major int
	Minor int
}

var (
	tokenPattern   = regexp.MustCompile(`^([0-9]+)\.([0-9]+)$`)
	versionPattern = regexp.MustCompile(`version="([0-9]+\.[0-9]+)`)
)

// Parse parses a major.minor token.
func Parse(token string) (Version, error) {
	m := tokenPattern.FindStringSubmatch(token)
	if m == nil {
		return Version{}, fmt.Errorf("version %q: want major.minor", token)
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return Version{}, fmt.Errorf("version %q: major: %w", token, err)
	}
	minor, err := strconv.Atoi(m[2])
	if err != nil {
		return Version{}, fmt.Errorf("version %q: minor: %w", token, err)
	}
	return Version{Major: major, Minor: minor}, nil
}

// MustParse is Parse for package-level constants; it panics on malformed tokens.
func MustParse(token string) Version {
	v, err := Parse(token)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the major.minor token.
func (v Version) String() string {
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
}

// NextMinor returns the version one minor step above v.
func (v Version) NextMinor() Version {
	return Version{Major: v.Major, Minor: v.Minor + 1}
}

// Less reports whether v precedes o.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	return v.Minor < o.Minor
}

// Extract returns the version token declared on the root element of raw,
// without building a tree. The XML declaration and other prolog markup are
// skipped so their own version pseudo-attribute is never picked up. When the
// root start tag carries no version, the rest of the text is searched.
func Extract(raw string) (Version, error) {
	body := skipProlog(raw)
	tag := body
	if end := strings.IndexByte(body, '>'); end >= 0 {
		tag = body[:end]
	}

	m := versionPattern.FindStringSubmatch(tag)
	if m == nil {
		m = versionPattern.FindStringSubmatch(body)
	}
	if m == nil {
		return Version{}, errors.New(errors.ErrVersionNotFound, "impossible to extract version from the file")
	}
	v, err := Parse(m[1])
	if err != nil {
		return Version{}, errors.Wrap(errors.ErrVersionNotFound, err, "impossible to extract version from the file")
	}
	return v, nil
}

// skipProlog returns raw starting at the first element start tag, or the
// empty string when raw has none.
func skipProlog(raw string) string {
	s := raw
	for {
		i := strings.IndexByte(s, '<')
		if i < 0 {
			return ""
		}
		s = s[i:]
		switch {
		case strings.HasPrefix(s, "<?"):
			s = skipPast(s, "?>")
		case strings.HasPrefix(s, "<!--"):
			s = skipPast(s, "-->")
		case strings.HasPrefix(s, "<!"):
			s = skipPast(s, ">")
		default:
			return s
		}
	}
}

func skipPast(s, terminator string) string {
	i := strings.Index(s, terminator)
	if i < 0 {
		return ""
	}
	return s[i+len(terminator):]
}

// File: internal/graph/normalize.go
package graph

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalizer maps a raw URL to its canonical node identity. Two URLs belong to
// the same page node iff their normalized forms are equal. The exact matching
// policy is a product decision, so the store accepts any Normalizer.
type Normalizer func(raw string) (string, error)

// DefaultNormalizer canonicalizes to scheme + lowercased host + path + query
// with keys in sorted order. Fragments are stripped and default ports dropped.
func DefaultNormalizer(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("unparseable url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q lacks scheme or host", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.User = nil

	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}

	if u.Path == "" {
		u.Path = "/"
	}

	// Re-encoding sorts query keys, giving a stable parameter order.
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}

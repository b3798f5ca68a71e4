// url.go — URL helpers shared by navigation validation and URL matching.
package util

import (
	"net/url"
	"strings"
)

// ExtractURLPath returns rawURL's path component with the query and
// fragment stripped, "/" when the URL has no path, and the input unchanged
// when it cannot be parsed at all.
func ExtractURLPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if parsed.Path == "" {
		return "/"
	}
	return parsed.Path
}

// ExtractOrigin returns rawURL's scheme://host[:port] origin. A blob: URL
// yields its nested origin; data: URLs, scheme-less strings, and anything
// unparseable yield "".
func ExtractOrigin(rawURL string) string {
	if strings.HasPrefix(rawURL, "data:") {
		return ""
	}
	rawURL = strings.TrimPrefix(rawURL, "blob:")

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

package httpclient

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildURL joins path segments onto base and sets query parameters. Empty segments are
// skipped and segments are escaped, so "a/b" becomes one segment "a%2Fb".
func BuildURL(base string, segments []string, params map[string]string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", base, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid URL %q: scheme and host are required", base)
	}

	escaped := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		escaped = append(escaped, url.PathEscape(segment))
	}
	if len(escaped) > 0 {
		parsed = parsed.JoinPath(escaped...)
	}

	if len(params) > 0 {
		query := parsed.Query()
		for key, value := range params {
			query.Set(key, value)
		}
		parsed.RawQuery = query.Encode()
	}

	return parsed.String(), nil
}

// AppendPath appends a raw sub path (which may contain slashes) to base.
func AppendPath(base, subPath string) string {
	subPath = strings.Trim(subPath, "/")
	if subPath == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + subPath
}

package upstream

import (
	"fmt"
	"net/url"
)

// BuildURL returns base with the prompt, api_key and model query parameters
// added. Query parameters already present on base are kept; api_key is
// omitted when apiKey is empty.
func BuildURL(base, prompt, apiKey, model string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse upstream url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("upstream url %q must be http or https", base)
	}

	q := u.Query()
	q.Set("prompt", prompt)
	if apiKey != "" {
		q.Set("api_key", apiKey)
	}
	if model != "" {
		q.Set("model", model)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Redact strips credentials, the query and the fragment from an upstream
// request URL. The query carries api_key and the prompt, so only the
// redacted form may appear in errors and logs.
func Redact(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return "upstream"
	}
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	return u.String()
}

package validation

import "net/url"

// ValidContinueURL exige una URL absoluta con scheme y host.
func ValidContinueURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

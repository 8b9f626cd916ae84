package client

import "strings"

// defaultPublicRoutes are the path fragments reachable without an
// access token: token issuance (login and refresh), registration, and
// the public creator catalog and profile listings.
var defaultPublicRoutes = []string{
	"/auth/token/",
	"/auth/register/",
	"/creators/all/",
	"/creator-catalog/",
	"/creator-profile/",
}

// isPublicPath reports whether a request path may be sent without
// bearer credentials. Matching is substring-based, so query strings
// and version prefixes do not affect classification. Paths matching
// no public route are private: the safe default is to attach the token.
func isPublicPath(path string, publicRoutes []string) bool {
	for _, route := range publicRoutes {
		if strings.Contains(path, route) {
			return true
		}
	}
	return false
}

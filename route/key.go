// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package route

import "regexp"

var keyPattern = regexp.MustCompile(`^http://[^/]+/([^/?#]+)`)

// KeyFromURI extracts the path key from an absolute request URI.
// The key is the text between the slash ending the host and the next
// '/', '?' or '#'. URIs which do not have that shape yield the empty key.
//
//	KeyFromURI("http://localhost:8080/users/1?x=y") == "users"
//	KeyFromURI("http://localhost:8080/")           == ""
func KeyFromURI(uri string) string {
	m := keyPattern.FindStringSubmatch(uri)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

package database

import (
	"net/url"
	"strings"
)

// ConstructDatabaseURL combines a server URL with a database name. The name
// replaces any path on baseURL, existing query parameters are kept and
// sslmode=disable is added when no sslmode is given.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" {
		// Not a URL we understand, leave it to the driver to reject
		return baseURL
	}

	u.Path = "/" + databaseName
	u.RawPath = ""

	q := u.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "disable")
	}
	u.RawQuery = q.Encode()

	return u.String()
}

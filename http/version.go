package http

import (
	"net/http"
)

// HandleVersion responds with the version of the server in plain text.
func HandleVersion(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write([]byte(version))
	}
}

package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const ErrTypeUnauthorized = "unauthorized"

// HeaderClientID is the request header carrying the id of a client.
const HeaderClientID = "X-Voxcull-Client-Id"

// GetTokenFromHTTPRequest returns the bearer token of r.
func GetTokenFromHTTPRequest(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}

func verifyToken(expected string, r *http.Request) error {
	if expected == "" {
		return nil
	}

	token := GetTokenFromHTTPRequest(r)
	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return errors.New("invalid auth token").
			WithType(ErrTypeUnauthorized).
			WithTag("client_id", r.Header.Get(HeaderClientID))
	}
	return nil
}

// VerifyAuthToken returns a websocket handshake that rejects connections
// without the given bearer token. An empty token accepts every connection.
func VerifyAuthToken(token string) func(*websocket.Config, *http.Request) error {
	return func(c *websocket.Config, r *http.Request) error {
		if err := verifyToken(token, r); err != nil {
			logs.WithTag(logs.ClientIDTag, r.Header.Get(HeaderClientID)).Warn(err)
			return err
		}

		return nil
	}
}

// VerifyAuthTokenHandler responds with 401 to requests without the given
// bearer token.
func VerifyAuthTokenHandler(token string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := verifyToken(token, r); err != nil {
			logs.WithTag(logs.ClientIDTag, r.Header.Get(HeaderClientID)).Warn(err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	}
}

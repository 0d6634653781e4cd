package handlers

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/jason-s-yu/shootingstars/internal/rpc"
)

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError reports e with the status its kind maps to.
func writeError(w http.ResponseWriter, e *rpc.Error) {
	writeJSON(w, e.Kind.HTTPStatus(), e)
}

// remoteHost strips the port from a request's remote address.
func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

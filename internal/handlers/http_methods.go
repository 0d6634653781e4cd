package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jason-s-yu/shootingstars/internal/rpc"
	"github.com/jason-s-yu/shootingstars/internal/schema"
)

const maxMethodBody = 1 << 20

// MethodHandler serves POST /methods/{name}. The body is the JSON array of
// positional parameters; an empty body means no parameters.
func MethodHandler(srv *SyncServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		params, err := readParams(r)
		if err != nil {
			writeError(w, rpc.WireError(err))
			return
		}

		caller := rpc.Caller{RemoteAddr: r.RemoteAddr}
		result, werr := srv.Call(r.Context(), caller, name, params)
		if werr != nil {
			writeError(w, werr)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": result})
	}
}

func readParams(r *http.Request) ([]json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMethodBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxMethodBody {
		return nil, &schema.Violation{Path: "params", Reason: "are too large"}
	}
	if len(body) == 0 {
		return nil, nil
	}
	var params []json.RawMessage
	if err := json.Unmarshal(body, &params); err != nil {
		return nil, &schema.Violation{Path: "params", Reason: "must be a JSON array"}
	}
	return params, nil
}

// HealthHandler reports liveness and the number of connected sessions.
func HealthHandler(srv *SyncServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": srv.Hub.Sessions(),
			"methods":  srv.Registry.Methods(),
		})
	}
}

package http

import (
	"net/http"
	"strconv"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/voxcull/engine"
	"github.com/aukilabs/voxcull/graph"
)

// GraphDebugInfo is the debug info of a graph with its handle.
type GraphDebugInfo struct {
	Handle engine.Handle `json:"handle"`
	graph.DebugInfo
}

// HandleGraphDebug responds with the debug info of the graphs of e. The
// handle query parameter selects a single graph.
func HandleGraphDebug(e *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !e.Supported() {
			writeError(w, http.StatusServiceUnavailable, errors.New("engine not supported").
				WithType(engine.ErrTypeUnsupported))
			return
		}

		if param := r.URL.Query().Get("handle"); param != "" {
			h, err := strconv.ParseUint(param, 10, 32)
			if err != nil {
				writeError(w, http.StatusBadRequest, errors.New("invalid handle").
					WithType(engine.ErrTypeInvalidHandle).
					WithTag("handle", param).
					Wrap(err))
				return
			}

			info, err := e.DebugInfo(engine.Handle(h))
			if errors.IsType(err, engine.ErrTypeInvalidHandle) {
				writeError(w, http.StatusNotFound, err)
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}

			writeJSON(w, http.StatusOK, GraphDebugInfo{
				Handle:    engine.Handle(h),
				DebugInfo: info,
			})
			return
		}

		graphs := []GraphDebugInfo{}
		for _, h := range e.Handles() {
			info, err := e.DebugInfo(h)
			if err != nil {
				// Destroyed or faulted since listed.
				continue
			}
			graphs = append(graphs, GraphDebugInfo{
				Handle:    h,
				DebugInfo: info,
			})
		}
		writeJSON(w, http.StatusOK, graphs)
	}
}

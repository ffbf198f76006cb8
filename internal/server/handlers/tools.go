package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/spacelink/spacelink/internal/errors"
	"github.com/spacelink/spacelink/internal/tools"
)

const maxToolArgsBytes = 1 << 20

// ToolListResponse lists the registered tools.
type ToolListResponse struct {
	Tools []*tools.Tool `json:"tools"`
}

// ToolCallResponse carries the result of one tool invocation.
type ToolCallResponse struct {
	Tool   string `json:"tool"`
	Result any    `json:"result"`
}

// ToolsHandler exposes a tool registry over HTTP.
type ToolsHandler struct {
	Registry *tools.Registry
}

// NewToolsHandler creates a handler for registry.
func NewToolsHandler(registry *tools.Registry) *ToolsHandler {
	return &ToolsHandler{Registry: registry}
}

// List handles GET /tools.
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Registry == nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("tool registry not configured"))
		return
	}
	writeJSON(w, http.StatusOK, ToolListResponse{Tools: h.Registry.List()})
}

// Describe handles GET /tools/{name}.
func (h *ToolsHandler) Describe(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Registry == nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("tool registry not configured"))
		return
	}
	tool, err := h.Registry.Get(chi.URLParam(r, "name"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

// Call handles POST /tools/{name}. The request body is the argument object.
func (h *ToolsHandler) Call(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Registry == nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("tool registry not configured"))
		return
	}

	args, err := io.ReadAll(io.LimitReader(r.Body, maxToolArgsBytes))
	if err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "failed to read tool arguments"))
		return
	}

	name := chi.URLParam(r, "name")
	result, err := h.Registry.Execute(r.Context(), name, json.RawMessage(args))
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ToolCallResponse{Tool: name, Result: result})
}

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/petal-labs/petaltools/tool"
)

type toolListing struct {
	Tools []toolEntry `json:"tools"`
}

type toolEntry struct {
	Tool        string           `json:"tool"`
	Endpoint    string           `json:"endpoint"`
	Description string           `json:"description,omitempty"`
	Async       bool             `json:"async"`
	Parameters  []parameterEntry `json:"parameters"`
}

type parameterEntry struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Default     any    `json:"default"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	descriptors := s.registry.Descriptors()
	listing := toolListing{Tools: make([]toolEntry, 0, len(descriptors))}
	for _, desc := range descriptors {
		entry := toolEntry{
			Tool:        desc.Name,
			Endpoint:    "/" + desc.Name,
			Description: desc.Description,
			Async:       desc.Async,
			Parameters:  make([]parameterEntry, 0, len(desc.Parameters)),
		}
		for _, p := range desc.Parameters {
			if p.Trusted {
				continue
			}
			entry.Parameters = append(entry.Parameters, parameterEntry{
				Name:        p.Name,
				Type:        p.Type,
				Default:     p.Default,
				Required:    p.Required(),
				Description: p.Description,
			})
		}
		listing.Tools = append(listing.Tools, entry)
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"tools":   s.registry.Len(),
		"version": s.version,
	})
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("tool")

	var raw map[string]any
	if r.Method == http.MethodGet {
		raw = queryParams(r)
	} else {
		body, err := decodeObject(r.Body)
		if err != nil {
			env := tool.Failure(tool.KindBadParameters, err.Error(), map[string]any{
				"request_id": tool.RequestIDFrom(r.Context()),
			})
			writeJSON(w, http.StatusBadRequest, env)
			return
		}
		raw = body
	}

	env := s.dispatcher.Dispatch(r.Context(), name, raw)
	writeJSON(w, toolStatus(env), env)
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	requestID := tool.RequestIDFrom(r.Context())

	var req queryRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		env := tool.Failure(tool.KindBadParameters, "request body must be a JSON object with a query field", map[string]any{
			"request_id": requestID,
		})
		writeJSON(w, http.StatusBadRequest, env)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		env := tool.Failure(tool.KindBadParameters, "query is empty", map[string]any{
			"parameter":  "query",
			"request_id": requestID,
		})
		writeJSON(w, http.StatusBadRequest, env)
		return
	}
	if s.router == nil {
		env := tool.Failure(tool.KindConfiguration, "no language model configured; set a provider API key", map[string]any{
			"request_id": requestID,
		})
		writeJSON(w, http.StatusInternalServerError, env)
		return
	}

	env := s.router.Route(r.Context(), req.Query)
	writeJSON(w, queryStatus(env), env)
}

// toolStatus maps a direct tool call envelope to its HTTP status.
func toolStatus(env tool.Envelope) int {
	if env.OK {
		return http.StatusOK
	}
	switch env.ErrorKind {
	case tool.KindBadParameters, tool.KindUnknownTool:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// queryStatus maps a routed envelope to its HTTP status.
func queryStatus(env tool.Envelope) int {
	if env.OK {
		return http.StatusOK
	}
	switch env.ErrorKind {
	case tool.KindBadParameters, tool.KindUnknownTool:
		return http.StatusBadRequest
	case tool.KindModelUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func queryParams(r *http.Request) map[string]any {
	values := r.URL.Query()
	raw := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			raw[key] = vals[0]
		}
	}
	return raw
}

// decodeObject reads a JSON object; an empty body is an empty object.
func decodeObject(body io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errors.New("request body too large")
		}
		return nil, errors.New("request body must be a JSON object")
	}
	if raw == nil {
		return map[string]any{}, nil
	}
	return raw, nil
}

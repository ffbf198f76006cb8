package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fulmenhq/gofulmen/schema"

	"github.com/spacelink/spacelink/internal/core"
	"github.com/spacelink/spacelink/internal/core/spaces"
	"github.com/spacelink/spacelink/internal/metrics"
)

var (
	// ErrUnknownTool is returned for a name the registry does not hold.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments wraps argument decoding and schema failures.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// Operations is the upstream surface the tools call. *spaces.Client
// satisfies it.
type Operations interface {
	ListSpaces(ctx context.Context) ([]core.Space, error)
	GetSpaceInfo(ctx context.Context, spaceID string) (*core.SpaceInfo, error)
	SearchContent(ctx context.Context, params spaces.SearchParams) ([]core.SearchResult, error)
	SaveWeblink(ctx context.Context, params spaces.WeblinkParams) (*core.WriteResult, error)
	SaveToDailyNote(ctx context.Context, params spaces.DailyNoteParams) (*core.WriteResult, error)
}

// Handler runs a tool with raw JSON arguments.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool is one callable operation exposed to agents.
type Tool struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	ReadOnly    bool           `json:"read_only" yaml:"read_only"`
	InputSchema map[string]any `json:"input_schema" yaml:"input_schema"`

	handler   Handler
	validator *schema.Validator
}

// Execute validates args against the input schema, then runs the tool.
func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	if t == nil || t.handler == nil {
		return nil, ErrUnknownTool
	}
	args = normalizeArgs(args)
	if err := t.validate(args); err != nil {
		return nil, err
	}
	return t.handler(ctx, args)
}

func (t *Tool) compile() error {
	if len(t.InputSchema) == 0 {
		return nil
	}
	schemaBytes, err := json.Marshal(t.InputSchema)
	if err != nil {
		return fmt.Errorf("encode %s input schema: %w", t.Name, err)
	}
	validator, err := schema.NewValidator(schemaBytes)
	if err != nil {
		return fmt.Errorf("compile %s input schema: %w", t.Name, err)
	}
	t.validator = validator
	return nil
}

func (t *Tool) validate(args json.RawMessage) error {
	if t.validator == nil {
		return nil
	}
	diagnostics, err := t.validator.ValidateJSON(args)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if len(diagnostics) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidArguments, describeDiagnostics(diagnostics))
	}
	return nil
}

// describeDiagnostics joins the leaf diagnostics. The root entry only names
// the schema and is dropped when anything more specific exists.
func describeDiagnostics(diagnostics []schema.Diagnostic) string {
	messages := make([]string, 0, len(diagnostics))
	for _, d := range diagnostics {
		if d.Keyword == "" && len(diagnostics) > 1 {
			continue
		}
		location := d.Pointer
		if location == "" {
			location = "/"
		}
		messages = append(messages, location+": "+d.Message)
	}
	return strings.Join(messages, "; ")
}

// Registry stores tools by name.
type Registry struct {
	tools map[string]*Tool
}

// NewRegistry builds a registry from tools.
func NewRegistry(tools []*Tool) (*Registry, error) {
	reg := &Registry{tools: make(map[string]*Tool)}
	for _, tool := range tools {
		if tool == nil {
			continue
		}
		name := strings.TrimSpace(tool.Name)
		if name == "" {
			return nil, fmt.Errorf("tool missing name")
		}
		if _, ok := reg.tools[name]; ok {
			return nil, fmt.Errorf("duplicate tool name: %s", name)
		}
		if err := tool.compile(); err != nil {
			return nil, err
		}
		reg.tools[name] = tool
	}
	return reg, nil
}

// Get returns the tool for the name.
func (r *Registry) Get(name string) (*Tool, error) {
	if r == nil {
		return nil, fmt.Errorf("tool registry not configured")
	}
	name = strings.TrimSpace(name)
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return tool, nil
}

// List returns tools sorted by name.
func (r *Registry) List() []*Tool {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	result := make([]*Tool, 0, len(names))
	for _, name := range names {
		result = append(result, r.tools[name])
	}
	return result
}

// Execute looks up a tool by name, runs it and records the invocation.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (any, error) {
	tool, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	result, err := tool.Execute(ctx, args)
	metrics.RecordToolInvocation(tool.Name, err == nil)
	return result, err
}

// normalizeArgs treats empty and null arguments as {}.
func normalizeArgs(args json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}")
	}
	return trimmed
}

// decodeArgs strictly decodes schema-checked tool arguments.
func decodeArgs(args json.RawMessage, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(normalizeArgs(args)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}

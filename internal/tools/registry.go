// Package tools exposes the service as a set of composite, action-tagged
// tools. Every call returns a Result; handler errors and panics are folded
// into its error payload.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"OpenMCP-Stellar/internal/errors"
	"OpenMCP-Stellar/internal/observability/metrics"
	"OpenMCP-Stellar/pkg/logger"
)

// Handler runs one tool call. It may return data together with an error when
// the operation produced a payload but did not succeed.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Descriptor describes a registered tool.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ErrorBody is the error payload of a failed call.
type ErrorBody struct {
	Code      errors.Code       `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Result is what every tool call returns.
type Result struct {
	Success bool       `json:"success"`
	Tool    string     `json:"tool"`
	Action  string     `json:"action,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type entry struct {
	desc    Descriptor
	handler Handler
}

// Registry holds the tools by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
	log   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]entry), log: logger.Named("tools")}
}

// Register adds a tool. The schema must be a JSON object schema.
func (r *Registry) Register(name, description, schema string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = entry{
		desc:    Descriptor{Name: name, Description: description, InputSchema: json.RawMessage(schema)},
		handler: h,
	}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// List returns the descriptors sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, e.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call runs the named tool with raw JSON arguments.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (result Result) {
	start := time.Now()
	action := actionOf(args)
	result = Result{Tool: name, Action: action}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("tool handler panicked", "tool", name, "action", action, "panic", fmt.Sprint(rec))
			result = Result{Tool: name, Action: action,
				Error: bodyOf(errors.New(errors.CodeUnknown, fmt.Sprintf("internal error: %v", rec)))}
		}
		outcome := "ok"
		if result.Error != nil {
			outcome = string(result.Error.Code)
		}
		metrics.ObserveToolCall(name, action, outcome, time.Since(start))
	}()

	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		result.Error = bodyOf(errors.New(errors.CodeNotFound, "unknown tool "+name, errors.WithMetadata("tool", name)))
		return result
	}

	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}
	data, err := e.handler(ctx, args)
	result.Data = data
	if err != nil {
		result.Error = bodyOf(err)
		r.log.Info("tool call failed", "tool", name, "action", action, "code", result.Error.Code, "message", result.Error.Message)
		return result
	}
	result.Success = true
	return result
}

func bodyOf(err error) *ErrorBody {
	coded := errors.Ensure(err)
	return &ErrorBody{
		Code:      coded.Code(),
		Message:   coded.Detail(),
		Retryable: coded.Retryable(),
		Metadata:  coded.Metadata(),
	}
}

func actionOf(args json.RawMessage) string {
	var peek struct {
		Action string `json:"action"`
	}
	if len(args) == 0 || json.Unmarshal(args, &peek) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(peek.Action))
}

// decode unmarshals args into v.
func decode(args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return errors.Wrap(errors.CodeInvalidArgument, err, "malformed tool arguments")
	}
	return nil
}

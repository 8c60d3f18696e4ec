package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/lvillar/pdfreader-mcp/mcp"

// toolHandler produces the JSON text of a successful call.
type toolHandler func(ctx context.Context, args json.RawMessage) (string, error)

// Registry holds the fixed tool set. It is read-only after construction and
// safe for concurrent use.
type Registry struct {
	tools    []ToolDescriptor
	handlers map[string]toolHandler
	log      logrus.FieldLogger
	tracer   trace.Tracer
}

// NewRegistry builds the registry of PDF tools backed by ex.
func NewRegistry(ex *Extractor) *Registry {
	r := &Registry{
		handlers: make(map[string]toolHandler),
		log:      ex.log,
		tracer:   otel.Tracer(tracerName),
	}
	r.register(extractTextDescriptor(), ex.ExtractText)
	r.register(extractMetadataDescriptor(), ex.ExtractMetadata)
	return r
}

func (r *Registry) register(d ToolDescriptor, h toolHandler) {
	r.tools = append(r.tools, d)
	r.handlers[d.Name] = h
}

// Tools returns the tool descriptors in registration order.
func (r *Registry) Tools() []ToolDescriptor {
	return append([]ToolDescriptor(nil), r.tools...)
}

// Has reports whether name is a registered tool.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Call dispatches a tool call by name. Every error it returns is a
// *ToolError.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (result string, err error) {
	handler, ok := r.handlers[name]
	if !ok {
		return "", methodNotFound(name)
	}

	ctx, span := r.tracer.Start(ctx, "tools/call "+name,
		trace.WithAttributes(attribute.String("mcp.tool.name", name)))
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		if err != nil {
			te := asToolError(name, err)
			err = te
			span.RecordError(te)
			span.SetStatus(codes.Error, te.Kind.String())
			r.logFailure(name, te, time.Since(start))
		} else {
			r.log.WithFields(logrus.Fields{
				"tool":     name,
				"duration": time.Since(start),
			}).Debug("tool call completed")
		}
		span.End()
	}()

	return handler(ctx, args)
}

func (r *Registry) logFailure(name string, te *ToolError, elapsed time.Duration) {
	entry := r.log.WithFields(logrus.Fields{
		"tool":     name,
		"kind":     te.Kind.String(),
		"duration": elapsed,
	})
	if te.Err != nil {
		entry = entry.WithError(te.Err)
	}
	if te.Kind == KindInternal {
		entry.Error(te.Message)
		return
	}
	entry.Warn(te.Message)
}

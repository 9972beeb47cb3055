package tools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/haasonsaas/livebridge/internal/daw"
	"github.com/haasonsaas/livebridge/internal/observability"
	"github.com/haasonsaas/livebridge/internal/ready"
)

// Input size caps, applied before any schema or handler work. The caps
// keep one oversized call from stalling the transports.
const (
	maxNotesPerCall       = 10000
	maxAutomationPoints   = 500
	maxBatchParameters    = 200
	maxQueryLength        = 500
	defaultCallLogEntries = 100
)

// Dispatcher routes tool calls: log, validate, check preconditions, run
// the handler with panic isolation, and shape the uniform envelope.
type Dispatcher struct {
	registry     *Registry
	log          *CallLog
	signals      *ready.Signals
	bridgeUsable bool
	logger       *slog.Logger
	metrics      *observability.Metrics
}

func NewDispatcher(registry *Registry, signals *ready.Signals, bridgeUsable bool, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		registry:     registry,
		log:          NewCallLog(defaultCallLogEntries),
		signals:      signals,
		bridgeUsable: bridgeUsable,
		logger:       logger.With("component", "dispatcher"),
		metrics:      metrics,
	}
}

// CallLog exposes the ring buffer for the dashboard.
func (d *Dispatcher) CallLog() *CallLog { return d.log }

// Registry exposes the tool table for listing surfaces.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// envelope is the uniform caller-visible response shape.
type envelope struct {
	Status  string         `json:"status"`
	Kind    daw.Kind       `json:"kind,omitempty"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Dispatch runs one tool call end to end and always returns an envelope
// JSON string; errors are folded into the envelope, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, rawArgs map[string]any) string {
	start := time.Now()

	tool, ok := d.registry.Get(name)
	if !ok {
		d.record(name, rawArgs, start, daw.E(daw.KindInvalidInput, "unknown tool"))
		return marshalEnvelope(envelope{
			Status:  "error",
			Kind:    daw.KindInvalidInput,
			Message: "unknown tool " + name,
		})
	}

	result, err := d.run(ctx, tool, rawArgs)
	d.record(name, rawArgs, start, err)

	if err != nil {
		kind := daw.KindOf(err)
		msg := tool.ErrorPrefix + ": " + userMessage(err, kind)
		var details map[string]any
		var typed *daw.Error
		if errors.As(err, &typed) {
			details = typed.Details
		}
		if kind == daw.KindInternal {
			d.logger.Error("tool failed internally", "tool", name, "error", err)
		} else {
			d.logger.Warn("tool failed", "tool", name, "kind", kind, "error", err)
		}
		return marshalEnvelope(envelope{Status: "error", Kind: kind, Message: msg, Details: details})
	}
	return marshalEnvelope(envelope{Status: "ok", Message: result.Message, Data: result.Data})
}

// run performs validation, precondition checks, and the handler call.
// A handler panic becomes KindInternal without touching other calls.
func (d *Dispatcher) run(ctx context.Context, tool *Tool, rawArgs map[string]any) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool handler panicked",
				"tool", tool.Name, "panic", r, "stack", string(debug.Stack()))
			result, err = nil, daw.E(daw.KindInternal, "handler panicked")
		}
	}()

	if rawArgs == nil {
		rawArgs = map[string]any{}
	}
	if err := checkSizeCaps(rawArgs); err != nil {
		return nil, err
	}
	if tool.compiled != nil {
		if verr := tool.compiled.Validate(map[string]any(rawArgs)); verr != nil {
			return nil, daw.Wrap(daw.KindInvalidInput, verr, "arguments do not match the %s schema", tool.Name)
		}
	}
	if err := d.checkNeeds(tool.Needs); err != nil {
		return nil, err
	}

	result, err = tool.Handler(ctx, Args(rawArgs))
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = &Result{Message: tool.Name + " completed"}
	}
	return result, nil
}

// checkNeeds enforces declared preconditions before the handler runs.
func (d *Dispatcher) checkNeeds(needs Needs) error {
	if needs.Bridge && !d.bridgeUsable {
		return daw.E(daw.KindNotReady, "OSC bridge is not configured")
	}
	if needs.Catalog && !d.signals.CatalogPopulated.IsSet() {
		return daw.E(daw.KindNotReady, "catalog is not populated yet; run refresh_catalog or retry shortly")
	}
	return nil
}

// checkSizeCaps bounds the well-known bulk arguments.
func checkSizeCaps(args map[string]any) error {
	if notes, ok := args["notes"].([]any); ok && len(notes) > maxNotesPerCall {
		return daw.E(daw.KindInvalidInput, "notes has %d entries, cap is %d", len(notes), maxNotesPerCall)
	}
	if points, ok := args["points"].([]any); ok && len(points) > maxAutomationPoints {
		return daw.E(daw.KindInvalidInput, "points has %d entries, cap is %d", len(points), maxAutomationPoints)
	}
	if params, ok := args["parameters"].([]any); ok && len(params) > maxBatchParameters {
		return daw.E(daw.KindInvalidInput, "parameters has %d entries, cap is %d", len(params), maxBatchParameters)
	}
	if query, ok := args["query"].(string); ok && len(query) > maxQueryLength {
		return daw.E(daw.KindInvalidInput, "query is %d chars, cap is %d", len(query), maxQueryLength)
	}
	return nil
}

func (d *Dispatcher) record(name string, args map[string]any, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(daw.KindOf(err))
	}
	elapsed := time.Since(start)
	d.log.Append(CallRecord{
		Tool:        name,
		ArgsSummary: summarizeArgs(args),
		Start:       start,
		Duration:    elapsed,
		Outcome:     outcome,
	})
	d.metrics.ToolExecutionCounter.WithLabelValues(name, outcome).Inc()
	d.metrics.ToolExecutionDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// userMessage keeps internal failures generic toward the caller; the
// real detail is already in the log.
func userMessage(err error, kind daw.Kind) string {
	if kind == daw.KindInternal {
		var typed *daw.Error
		if errors.As(err, &typed) {
			return typed.Message
		}
		return "internal error"
	}
	var typed *daw.Error
	if errors.As(err, &typed) && typed.Message != "" {
		return typed.Message
	}
	return err.Error()
}

func marshalEnvelope(env envelope) string {
	data, err := json.Marshal(env)
	if err != nil {
		return `{"status":"error","kind":"internal","message":"response encoding failed"}`
	}
	return string(data)
}

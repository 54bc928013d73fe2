// Package observe provides QuestWeaver's observability primitives:
// OpenTelemetry metrics with a Prometheus exporter bridge and HTTP
// middleware recording request latency.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) exists for
// convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all QuestWeaver metrics.
const meterName = "github.com/questweaver/questweaver"

// Metrics holds all metric instruments. The underlying OTel types are safe
// for concurrent use.
type Metrics struct {
	// TurnDuration tracks full turn-pipeline latency, input to commit.
	TurnDuration metric.Float64Histogram

	// LLMDuration tracks model call latency. Attributes: provider, agent.
	LLMDuration metric.Float64Histogram

	// LLMRequests counts model calls. Attributes: provider, agent, status.
	LLMRequests metric.Int64Counter

	// ToolCalls counts tool invocations. Attributes: tool, status.
	ToolCalls metric.Int64Counter

	// PlannerRuns counts planner invocations. Attributes: mode, status
	// (completed|superseded|failed).
	PlannerRuns metric.Int64Counter

	// ConsensusOutcomes counts consensus results by type
	// (UNANIMOUS|MAJORITY|SPLIT|NO_CONSENSUS).
	ConsensusOutcomes metric.Int64Counter

	// TurnsRejectedBusy counts inputs bounced because a turn was in flight.
	TurnsRejectedBusy metric.Int64Counter

	// ActiveGames tracks games with a live orchestrator.
	ActiveGames metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP latency. Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets covers both sub-second tool calls and multi-second
// narrations.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TurnDuration, err = m.Float64Histogram("questweaver.turn.duration",
		metric.WithDescription("Latency of one full turn: input to committed state."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("questweaver.llm.duration",
		metric.WithDescription("Latency of LLM calls by provider and agent."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMRequests, err = m.Int64Counter("questweaver.llm.requests",
		metric.WithDescription("Total LLM requests by provider, agent, and status."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("questweaver.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.PlannerRuns, err = m.Int64Counter("questweaver.planner.runs",
		metric.WithDescription("Total planner runs by mode and status."),
	); err != nil {
		return nil, err
	}
	if met.ConsensusOutcomes, err = m.Int64Counter("questweaver.consensus.outcomes",
		metric.WithDescription("Consensus results by type."),
	); err != nil {
		return nil, err
	}
	if met.TurnsRejectedBusy, err = m.Int64Counter("questweaver.turns.rejected_busy",
		metric.WithDescription("Inputs rejected because a turn was already in flight."),
	); err != nil {
		return nil, err
	}
	if met.ActiveGames, err = m.Int64UpDownCounter("questweaver.active_games",
		metric.WithDescription("Games with a live orchestrator."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("questweaver.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance, created on first call
// from the global meter provider. Panics if instrument creation fails,
// which cannot happen with the global provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordLLMRequest increments the LLM request counter with the standard
// attribute set.
func (m *Metrics) RecordLLMRequest(ctx context.Context, provider, agent, status string) {
	m.LLMRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("agent", agent),
		attribute.String("status", status),
	))
}

// RecordToolCall increments the tool call counter.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	))
}

// RecordPlannerRun increments the planner run counter.
func (m *Metrics) RecordPlannerRun(ctx context.Context, mode, status string) {
	m.PlannerRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status),
	))
}

// RecordConsensus increments the consensus outcome counter.
func (m *Metrics) RecordConsensus(ctx context.Context, consensusType string) {
	m.ConsensusOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", consensusType),
	))
}

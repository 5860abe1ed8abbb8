// Package metrics exports cmdmesh measurements as Prometheus collectors.
// A Collector implements the observer hooks of the command, agent,
// schedule and session packages.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/cmdmesh/agent"
	"github.com/hupe1980/cmdmesh/command"
	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/schedule"
	"github.com/hupe1980/cmdmesh/session"
)

const namespace = "cmdmesh"

// AgentWord replaces "@name" command words so label cardinality stays
// bounded by the dispatch tree.
const AgentWord = "@agent"

// Collector records measurements into its own registry.
type Collector struct {
	registry *prometheus.Registry

	commands       *prometheus.CounterVec
	commandSeconds *prometheus.HistogramVec
	modelCalls     *prometheus.CounterVec
	modelSeconds   *prometheus.HistogramVec
	modelTokens    *prometheus.CounterVec
	toolCalls      *prometheus.CounterVec
	fires          *prometheus.CounterVec
	fireSeconds    prometheus.Histogram
	sessionsOpen   *prometheus.GaugeVec
	sessionsTotal  *prometheus.CounterVec
}

// New creates a Collector registered on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Dispatched commands by top-level word and error code.",
		}, []string{"word", "code"}),
		commandSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"word"}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_calls_total",
			Help:      "Model invocations by agent, tier and outcome.",
		}, []string{"agent", "tier", "outcome"}),
		modelSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Model invocation latency by tier.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"tier"}),
		modelTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_tokens_total",
			Help:      "Tokens reported by model backends by tier and kind (prompt, completion).",
		}, []string{"tier", "kind"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool and outcome.",
		}, []string{"tool", "outcome"}),
		fires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_fires_total",
			Help:      "Scheduler fires by outcome.",
		}, []string{"outcome"}),
		fireSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_fire_duration_seconds",
			Help:      "Duration of one scheduled launch.",
			Buckets:   prometheus.DefBuckets,
		}),
		sessionsOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_open",
			Help:      "Currently open sessions by kind.",
		}, []string{"kind"}),
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Opened sessions by kind.",
		}, []string{"kind"}),
	}

	c.registry.MustRegister(
		c.commands, c.commandSeconds,
		c.modelCalls, c.modelSeconds, c.modelTokens, c.toolCalls,
		c.fires, c.fireSeconds,
		c.sessionsOpen, c.sessionsTotal,
	)

	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveCommand implements command.Observer.
func (c *Collector) ObserveCommand(word string, d time.Duration, err error) {
	word = normalizeWord(word)
	if core.CodeOf(err) == core.ErrCodeUnknownCommand {
		word = "unknown"
	}
	c.commands.WithLabelValues(word, code(err)).Inc()
	c.commandSeconds.WithLabelValues(word).Observe(d.Seconds())
}

// ObserveModelCall implements agent.Observer.
func (c *Collector) ObserveModelCall(agentName string, tier agent.Tier, d time.Duration, err error) {
	c.modelCalls.WithLabelValues(agentName, tier.String(), outcome(err)).Inc()
	c.modelSeconds.WithLabelValues(tier.String()).Observe(d.Seconds())
}

// ObserveTokens implements agent.Observer.
func (c *Collector) ObserveTokens(tier agent.Tier, prompt, completion int) {
	c.modelTokens.WithLabelValues(tier.String(), "prompt").Add(float64(prompt))
	c.modelTokens.WithLabelValues(tier.String(), "completion").Add(float64(completion))
}

// ObserveToolCall implements agent.Observer.
func (c *Collector) ObserveToolCall(_ string, tool string, _ time.Duration, err error) {
	c.toolCalls.WithLabelValues(tool, outcome(err)).Inc()
}

// ObserveFire implements schedule.Observer.
func (c *Collector) ObserveFire(_ string, d time.Duration, err error) {
	c.fires.WithLabelValues(outcome(err)).Inc()
	c.fireSeconds.Observe(d.Seconds())
}

// SessionOpened implements session.Observer.
func (c *Collector) SessionOpened(kind command.SessionKind) {
	c.sessionsOpen.WithLabelValues(string(kind)).Inc()
	c.sessionsTotal.WithLabelValues(string(kind)).Inc()
}

// SessionClosed implements session.Observer.
func (c *Collector) SessionClosed(kind command.SessionKind) {
	c.sessionsOpen.WithLabelValues(string(kind)).Dec()
}

func normalizeWord(word string) string {
	if strings.HasPrefix(word, "@") {
		return AgentWord
	}
	if word == "" {
		return "none"
	}
	return word
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func code(err error) string {
	if err == nil {
		return "ok"
	}
	if c := core.CodeOf(err); c != "" {
		return c
	}
	return "unknown"
}

var (
	_ command.Observer  = (*Collector)(nil)
	_ agent.Observer    = (*Collector)(nil)
	_ schedule.Observer = (*Collector)(nil)
	_ session.Observer  = (*Collector)(nil)
)

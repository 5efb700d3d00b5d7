package main

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"i4.energy/across/expresslink/expresslink"
)

// Metrics exports the engine hooks as Prometheus collectors.
type Metrics struct {
	commands  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	events    *prometheus.CounterVec
	selfTests *prometheus.CounterVec
	ready     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "expresslink",
				Name:      "commands_total",
				Help:      "Commands sent to the module by verb and result.",
			},
			[]string{"verb", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "expresslink",
				Name:      "command_duration_seconds",
				Help:      "Time from writing a command to its complete response.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"verb"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "expresslink",
				Name:      "events_total",
				Help:      "Events taken from the module's event queue.",
			},
			[]string{"event"},
		),
		selfTests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "expresslink",
				Name:      "self_test_attempts_total",
				Help:      "UART self-test attempts by result.",
			},
			[]string{"result"},
		),
		ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "expresslink",
			Name:      "ready",
			Help:      "1 while the command channel is ready.",
		}),
	}
	reg.MustRegister(m.commands, m.duration, m.events, m.selfTests, m.ready)
	return m
}

// Hooks returns engine hooks feeding the collectors.
func (m *Metrics) Hooks() expresslink.Hooks {
	return expresslink.Hooks{
		OnCommand: func(command string, resp expresslink.Response, elapsed time.Duration) {
			verb := commandVerb(command)
			result := resp.Type.String()
			if resp.Timeout {
				result = "timeout"
			}
			m.commands.WithLabelValues(verb, result).Inc()
			m.duration.WithLabelValues(verb).Observe(elapsed.Seconds())
		},
		OnSelfTest: func(attempt int, ok bool) {
			result := "failed"
			if ok {
				result = "ok"
			}
			m.selfTests.WithLabelValues(result).Inc()
		},
		OnEvent: func(ev expresslink.Event) {
			m.events.WithLabelValues(ev.ID.String()).Inc()
		},
		OnStateChange: func(from, to expresslink.State) {
			if to == expresslink.StateReady {
				m.ready.Set(1)
			} else {
				m.ready.Set(0)
			}
		},
	}
}

// knownVerbs bounds the verb label. Anything else sent through the command
// endpoint is counted as "other".
var knownVerbs = map[string]bool{
	"AT": true, "CONNECT": true, "CONNECT!": true, "CONNECT?": true,
	"DISCONNECT": true, "SLEEP": true, "RESET": true, "FACTORY_RESET": true,
	"CONFMODE": true, "TIME?": true, "WHERE?": true, "EVENT?": true,
	"CONF": true, "CONF?": true, "SUBSCRIBE": true, "UNSUBSCRIBE": true,
	"GET": true, "SEND": true, "OTA": true, "OTA?": true,
	"SHADOW": true, "DIAG": true,
}

// commandVerb reduces a command to a low-cardinality label: the first word
// without its topic or shadow index, as in SEND for "SEND1 hello".
func commandVerb(command string) string {
	verb, _, _ := strings.Cut(command, " ")
	verb = strings.TrimRight(strings.ToUpper(verb), "0123456789")
	if !knownVerbs[verb] {
		return "other"
	}
	return verb
}

// Package metrics exposes the Prometheus instruments of the session layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebox_actions_total",
		Help: "User interactions handled by sessions, by action and outcome",
	}, []string{"action", "outcome"}) // outcome=ok|dropped|denied|error

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicebox_sessions_active",
		Help: "Number of live playback sessions",
	})

	sessionTeardowns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebox_session_teardowns_total",
		Help: "Session teardowns by reason",
	}, []string{"reason"}) // reason=dismiss|timeout|stale|shutdown

	tracksStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebox_tracks_started_total",
		Help: "Tracks handed to the transport, by session mode",
	}, []string{"mode"})

	renderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebox_render_failures_total",
		Help: "Failed view renders, by reason",
	}, []string{"reason"}) // reason=stale|error
)

func IncAction(action, outcome string) { actionsTotal.WithLabelValues(action, outcome).Inc() }

func SessionOpened() { sessionsActive.Inc() }
func SessionClosed(reason string) {
	sessionsActive.Dec()
	sessionTeardowns.WithLabelValues(reason).Inc()
}

func IncTrackStarted(mode string)    { tracksStarted.WithLabelValues(mode).Inc() }
func IncRenderFailure(reason string) { renderFailures.WithLabelValues(reason).Inc() }

// Package metrics exposes node cycle reports as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/notnil/thermnode/node"
)

const namespace = "thermnode"

// Metrics is a node.Observer.
type Metrics struct {
	cycles         prometheus.Counter
	sampleErrors   prometheus.Counter
	framesSent     prometheus.Counter
	transmitErrors prometheus.Counter
	statusFrames   prometheus.Counter

	channelTemp  *prometheus.GaugeVec
	channelVolts *prometheus.GaugeVec
	minTemp      prometheus.Gauge
	maxTemp      prometheus.Gauge
	avgTemp      prometheus.Gauge
	alert        prometheus.Gauge
	fanDuty      prometheus.Gauge
	r2d          prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers the node metrics with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of node cycles run.",
		}),
		sampleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sample_errors_total",
			Help:      "Cycles skipped because an ADC read failed.",
		}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Module broadcast frames transmitted.",
		}),
		transmitErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transmit_errors_total",
			Help:      "Module broadcast transmissions that failed.",
		}),
		statusFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_frames_total",
			Help:      "Ready-to-drive status frames received.",
		}),
		channelTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_temperature_celsius",
			Help:      "Converted temperature per thermistor channel.",
		}, []string{"channel"}),
		channelVolts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_volts",
			Help:      "Calibrated voltage per thermistor channel.",
		}, []string{"channel"}),
		minTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "min_temperature_celsius",
			Help:      "Coldest channel temperature.",
		}),
		maxTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "max_temperature_celsius",
			Help:      "Hottest channel temperature.",
		}),
		avgTemp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "avg_temperature_celsius",
			Help:      "Integer average temperature as broadcast.",
		}),
		alert: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert",
			Help:      "Alert output level (1 high, 0 low).",
		}),
		fanDuty: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fan_duty_percent",
			Help:      "Fan duty cycle computed from the fan curve.",
		}),
		r2d: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ready_to_drive",
			Help:      "Last ready-to-drive status byte, -1 until received.",
		}),
		gatherer: reg,
	}
	m.r2d.Set(-1)

	reg.MustRegister(
		m.cycles,
		m.sampleErrors,
		m.framesSent,
		m.transmitErrors,
		m.statusFrames,
		m.channelTemp,
		m.channelVolts,
		m.minTemp,
		m.maxTemp,
		m.avgTemp,
		m.alert,
		m.fanDuty,
		m.r2d,
	)
	return m
}

// Observe updates the metrics from one cycle report.
func (m *Metrics) Observe(r node.Report) {
	m.cycles.Inc()
	if r.StatusUpdated {
		m.statusFrames.Inc()
	}
	if r.HasStatus {
		m.r2d.Set(float64(r.Status.Value))
	}
	if r.SampleErr != nil {
		m.sampleErrors.Inc()
		return
	}
	s := r.Snapshot
	for i := range s.Temps {
		ch := strconv.Itoa(i)
		m.channelTemp.WithLabelValues(ch).Set(s.Temps[i])
		m.channelVolts.WithLabelValues(ch).Set(s.Volts[i])
	}
	m.minTemp.Set(s.Min())
	m.maxTemp.Set(s.Max())
	m.avgTemp.Set(float64(s.AvgTemp))
	if r.Alert {
		m.alert.Set(1)
	} else {
		m.alert.Set(0)
	}
	m.fanDuty.Set(float64(r.FanDuty))
	if r.Sent {
		m.framesSent.Inc()
	}
	if r.TransmitErr != nil {
		m.transmitErrors.Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

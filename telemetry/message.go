// Package telemetry forwards cycle snapshots to a message broker (MQTT or
// Kafka) as JSON.
package telemetry

import (
	"context"
	"time"

	"github.com/notnil/thermnode/node"
)

// Message is the JSON document published for one cycle.
type Message struct {
	NodeID   string    `json:"node_id"`
	Time     time.Time `json:"time"`
	Temps    []float64 `json:"temps"`
	Volts    []float64 `json:"volts"`
	Min      float64   `json:"min"`
	Max      float64   `json:"max"`
	Avg      int       `json:"avg"`
	MinIndex int       `json:"min_index"`
	MaxIndex int       `json:"max_index"`
	Alert    bool      `json:"alert"`
	FanDuty  uint8     `json:"fan_duty"`
	// R2D is the last ready-to-drive byte, absent until one was received.
	R2D *byte `json:"r2d,omitempty"`
}

// NewMessage builds the message for a successful cycle.
func NewMessage(nodeID string, r node.Report) Message {
	s := r.Snapshot.Clone()
	m := Message{
		NodeID:   nodeID,
		Time:     r.Time.UTC(),
		Temps:    s.Temps,
		Volts:    s.Volts,
		Min:      s.Min(),
		Max:      s.Max(),
		Avg:      s.AvgTemp,
		MinIndex: s.MinIndex,
		MaxIndex: s.MaxIndex,
		Alert:    r.Alert,
		FanDuty:  r.FanDuty,
	}
	if r.HasStatus {
		v := r.Status.Value
		m.R2D = &v
	}
	return m
}

// Publisher delivers messages to a broker.
type Publisher interface {
	Publish(ctx context.Context, m Message) error
	Close() error
}

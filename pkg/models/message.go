package models

import "time"

// StreamMessage is a single event consumed from the broker. Partition and
// Offset are broker provenance kept for diagnostics only; ordering decisions
// are never based on them.
type StreamMessage struct {
	Topic      string
	Key        string
	Value      map[string]interface{}
	ReceivedAt time.Time
	Partition  int
	Offset     int64
}

// CloneValue returns a shallow copy of the value mapping. Transforms operate
// on copies so the source message stays unchanged.
func (m StreamMessage) CloneValue() map[string]interface{} {
	out := make(map[string]interface{}, len(m.Value))
	for k, v := range m.Value {
		out[k] = v
	}
	return out
}

// DerivedMessage is the output of a transform pipeline, tagged with the
// topic it should be published on and the derived stream it belongs to.
type DerivedMessage struct {
	Topic  string
	Key    string
	Stream string
	Value  map[string]interface{}
}

// Batch is a size/time-bounded window of messages. It is owned by the
// collector until handed to the aggregator, after which it is read-only.
type Batch struct {
	Messages []StreamMessage
	OpenedAt time.Time
	ClosedAt time.Time
}

func (b Batch) Size() int {
	return len(b.Messages)
}

func (b Batch) IsEmpty() bool {
	return len(b.Messages) == 0
}

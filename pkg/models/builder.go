package models

import (
	"time"

	"github.com/google/uuid"
)

type EnvelopeBuilder struct {
	envelope *Envelope
}

func NewEnvelopeBuilder() *EnvelopeBuilder {
	return &EnvelopeBuilder{
		envelope: &Envelope{
			Payload:  make(map[string]interface{}),
			Metadata: Metadata{},
		},
	}
}

func (b *EnvelopeBuilder) WithSource(source string) *EnvelopeBuilder {
	b.envelope.Source = source
	return b
}

func (b *EnvelopeBuilder) WithKey(key string) *EnvelopeBuilder {
	b.envelope.Key = key
	return b
}

func (b *EnvelopeBuilder) WithPayload(payload map[string]interface{}) *EnvelopeBuilder {
	b.envelope.Payload = payload
	return b
}

func (b *EnvelopeBuilder) WithStream(stream string) *EnvelopeBuilder {
	b.envelope.Metadata.Stream = stream
	return b
}

func (b *EnvelopeBuilder) WithSourceTopic(topic string) *EnvelopeBuilder {
	b.envelope.Metadata.SourceTopic = topic
	return b
}

func (b *EnvelopeBuilder) Build() *Envelope {
	if b.envelope.ID == "" {
		b.envelope.ID = uuid.NewString()
	}
	if b.envelope.Timestamp.IsZero() {
		b.envelope.Timestamp = time.Now()
	}
	return b.envelope
}

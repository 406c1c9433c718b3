package mq

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestKafkaHeaderCarrierSetAndGet(t *testing.T) {
	carrier := KafkaHeaderCarrier{}

	carrier.Set("traceparent", "00-abc-def-01")
	assert.Equal(t, "00-abc-def-01", carrier.Get("traceparent"))
	assert.Equal(t, "", carrier.Get("missing"))

	// 同名覆盖而不是追加
	carrier.Set("traceparent", "00-abc-def-02")
	assert.Equal(t, "00-abc-def-02", carrier.Get("traceparent"))
	assert.Len(t, carrier, 1)
}

func TestKafkaHeaderCarrierKeys(t *testing.T) {
	carrier := KafkaHeaderCarrier{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
	}
	assert.ElementsMatch(t, []string{"a", "b"}, carrier.Keys())
}

func TestKafkaHeaderCarrierWrapsExistingHeaders(t *testing.T) {
	headers := []kafka.Header{{Key: "baggage", Value: []byte("k=v")}}
	carrier := KafkaHeaderCarrier(headers)
	assert.Equal(t, "k=v", carrier.Get("baggage"))
}

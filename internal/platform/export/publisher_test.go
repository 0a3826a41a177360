package export

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaMessages(t *testing.T) {
	tenant := uuid.New()
	msgs := kafkaMessages([]Message{{
		Key:          "Patient/abc",
		ResourceType: "Patient",
		TenantID:     tenant,
		Body:         []byte(`{"resourceType":"Patient"}`),
	}})

	require.Len(t, msgs, 1)
	assert.Equal(t, "Patient/abc", string(msgs[0].Key))
	assert.JSONEq(t, `{"resourceType":"Patient"}`, string(msgs[0].Value))

	headers := map[string]string{}
	for _, h := range msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "Patient", headers["resource_type"])
	assert.Equal(t, tenant.String(), headers["tenant_id"])
	assert.Equal(t, "application/fhir+json", headers["content_type"])
}

func TestNewKafkaPublisher_RequiresBrokersAndTopic(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "topic")
	assert.Error(t, err)

	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "")
	assert.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "clinified.fhir.export")
	require.NoError(t, err)
	assert.Equal(t, "clinified.fhir.export", p.Topic())
	assert.NoError(t, p.Close())
}

func TestCheckpointEncoding(t *testing.T) {
	assert.Equal(t, "clinified:export:checkpoint:Encounter", checkpointKey("Encounter"))

	cur := Cursor{UpdatedAt: time.Date(2024, 6, 1, 8, 30, 0, 123456000, time.UTC), ID: uuid.New()}
	raw := []byte(`{"updated_at":"2024-06-01T08:30:00.123456Z","id":"` + cur.ID.String() + `"}`)
	got, err := decodeCursor(raw)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(cur.UpdatedAt))
	assert.Equal(t, cur.ID, got.ID)

	_, err = decodeCursor([]byte("not json"))
	assert.Error(t, err)

	assert.True(t, Cursor{}.IsZero())
	assert.False(t, cur.IsZero())
}

func TestNewRedisClient(t *testing.T) {
	c, err := NewRedisClient("redis://localhost:6379/2")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Options().DB)
	assert.NoError(t, c.Close())

	_, err = NewRedisClient("http://nope")
	assert.Error(t, err)
}

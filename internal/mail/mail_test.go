package mail

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type enqueued struct {
	topic   string
	payload []byte
	at      time.Time
}

type outboxMock struct{ jobs []enqueued }

func (m *outboxMock) Enqueue(_ context.Context, topic string, payload []byte, at time.Time) error {
	m.jobs = append(m.jobs, enqueued{topic, payload, at})
	return nil
}

func TestQueueEmailEnqueuesMessage(t *testing.T) {
	outbox := &outboxMock{}
	q := NewQueue(outbox)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return fixed }

	require.NoError(t, q.QueueEmail(context.Background(), "a@b.co", "Hi", "Body"))
	require.Len(t, outbox.jobs, 1)
	assert.Equal(t, TopicSendEmail, outbox.jobs[0].topic)
	assert.Equal(t, fixed, outbox.jobs[0].at)

	var m Message
	require.NoError(t, json.Unmarshal(outbox.jobs[0].payload, &m))
	assert.Equal(t, Message{To: "a@b.co", Subject: "Hi", Body: "Body"}, m)
}

func TestQueueEmailRejectsEmptyRecipient(t *testing.T) {
	outbox := &outboxMock{}
	assert.Error(t, NewQueue(outbox).QueueEmail(context.Background(), " ", "Hi", "Body"))
	assert.Empty(t, outbox.jobs)
}

func TestComposeStripsHeaderInjection(t *testing.T) {
	raw := compose("no-reply@x.co", Message{To: "a@b.co", Subject: "Hi\r\nBcc: evil@x.co", Body: "Body"})
	assert.Contains(t, raw, "Subject: Hi  Bcc: evil@x.co\r\n")
	assert.NotContains(t, raw, "\r\nBcc:")
}

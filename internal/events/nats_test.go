package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	obscontext "github.com/smallbiznis/catalyser/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	msgs []*nats.Msg
}

func (c *recordingConn) PublishMsg(msg *nats.Msg) error {
	c.msgs = append(c.msgs, msg)
	return nil
}

func TestNATSPublisherSetsSubjectAndCorrelation(t *testing.T) {
	conn := &recordingConn{}
	pub := NewNATSPublisher(conn)

	ctx := obscontext.WithCorrelationID(context.Background(), "01HZX")
	err := pub.Publish(ctx, SubjectCreditEntryCreated, Event{
		ID:         "1",
		Type:       "credit.entry_created",
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Data:       map[string]any{"amount": -1},
	})
	require.NoError(t, err)
	require.Len(t, conn.msgs, 1)

	msg := conn.msgs[0]
	assert.Equal(t, SubjectCreditEntryCreated, msg.Subject)
	assert.Equal(t, "01HZX", msg.Header.Get(HeaderCorrelationID))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, "credit.entry_created", decoded.Type)
	assert.Equal(t, "01HZX", decoded.CorrelationID)
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NoopPublisher{}.Publish(context.Background(), "x", Event{}))
}

package publish

import (
	"encoding/json"
	"errors"
	"testing"

	"options-observer/src/logger"
	"options-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	subject string
	data    []byte
}

type fakeConn struct {
	connected bool
	err       error
	sent      []sent
	drained   bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{subject: subject, data: data})
	return nil
}

func (f *fakeConn) IsConnected() bool { return f.connected }

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func newPublisher(prefix string, conn *fakeConn) *NATSPublisher {
	np := NewNATSPublisher(models.MNATSConfig{ClientID: "test", SubjectPrefix: prefix}, logger.NewNopLogger())
	if conn != nil {
		np.nc = conn
	}
	return np
}

func TestPublish_Subjects(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		publish func(np *NATSPublisher) error
		subject string
	}{
		{
			name:    "market",
			prefix:  "options",
			publish: func(np *NATSPublisher) error { return np.PublishMarket(&models.MMarketSnapshot{NiftySpot: 24944}) },
			subject: "options.market",
		},
		{
			name:    "chain",
			prefix:  "options",
			publish: func(np *NATSPublisher) error { return np.PublishChain(&models.MOptionChain{Expiry: "2025-05-29"}) },
			subject: "options.chain.2025-05-29",
		},
		{
			name:    "no prefix",
			publish: func(np *NATSPublisher) error { return np.PublishMarket(&models.MMarketSnapshot{}) },
			subject: "market",
		},
		{
			name:    "dotted expiry stays one level",
			prefix:  "opt",
			publish: func(np *NATSPublisher) error { return np.PublishChain(&models.MOptionChain{Expiry: "29.05.2025"}) },
			subject: "opt.chain.29_05_2025",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{connected: true}
			require.NoError(t, tt.publish(newPublisher(tt.prefix, conn)))
			require.Len(t, conn.sent, 1)
			assert.Equal(t, tt.subject, conn.sent[0].subject)
			assert.True(t, json.Valid(conn.sent[0].data))
		})
	}
}

func TestPublish_Payload(t *testing.T) {
	conn := &fakeConn{connected: true}
	np := newPublisher("options", conn)

	require.NoError(t, np.PublishChain(&models.MOptionChain{
		Expiry: "2025-05-29",
		Spot:   24944,
		Data:   []models.MOptionStrike{{Strike: 24950, CE: models.ZeroLeg(), PE: models.ZeroLeg()}},
	}))

	var chain models.MOptionChain
	require.NoError(t, json.Unmarshal(conn.sent[0].data, &chain))
	assert.Equal(t, 24950, chain.Data[0].Strike)
	assert.Equal(t, "0", chain.Data[0].PE.Change)
}

func TestPublish_Errors(t *testing.T) {
	t.Run("never connected", func(t *testing.T) {
		np := newPublisher("options", nil)
		assert.False(t, np.IsConnected())
		assert.Error(t, np.PublishMarket(&models.MMarketSnapshot{}))
		assert.NoError(t, np.Close())
	})

	t.Run("disconnected", func(t *testing.T) {
		np := newPublisher("options", &fakeConn{})
		assert.Error(t, np.PublishMarket(&models.MMarketSnapshot{}))
	})

	t.Run("publish failure", func(t *testing.T) {
		np := newPublisher("options", &fakeConn{connected: true, err: errors.New("slow consumer")})
		err := np.PublishMarket(&models.MMarketSnapshot{})
		assert.ErrorContains(t, err, "options.market")
	})

	t.Run("close drains", func(t *testing.T) {
		conn := &fakeConn{connected: true}
		np := newPublisher("options", conn)
		require.NoError(t, np.Close())
		assert.True(t, conn.drained)
		assert.False(t, np.IsConnected())
	})
}

package publish

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"options-observer/src/logger"
	"options-observer/src/models"

	"github.com/bytedance/sonic"
	"github.com/nats-io/nats.go"
)

const (
	defaultReconnectWait  = 2 * time.Second
	defaultConnectTimeout = 5 * time.Second
)

// natsConn is the subset of *nats.Conn the publisher needs.
type natsConn interface {
	Publish(subject string, data []byte) error
	IsConnected() bool
	Drain() error
}

// -----------------------------------------------------------------------------
// NATSPublisher forwards market snapshots and chains to NATS core subjects:
// <prefix>.market and <prefix>.chain.<expiry>.
// -----------------------------------------------------------------------------

type NATSPublisher struct {
	name   string
	config models.MNATSConfig
	logger *logger.Logger

	mu sync.RWMutex
	nc natsConn
}

// -----------------------------------------------------------------------------

func NewNATSPublisher(cfg models.MNATSConfig, log *logger.Logger) *NATSPublisher {
	return &NATSPublisher{
		name:   cfg.ClientID,
		config: cfg,
		logger: log,
	}
}

// -----------------------------------------------------------------------------

// Connect dials the server. With RetryOnFailedConnect the first dial does not
// fail when the server is down; publishes error until it comes up.
func (np *NATSPublisher) Connect() error {
	np.mu.Lock()
	defer np.mu.Unlock()

	if np.nc != nil && np.nc.IsConnected() {
		return nil
	}

	opts := []nats.Option{
		nats.Name(np.config.ClientID),
		nats.Timeout(defaultConnectTimeout),
		nats.ReconnectWait(defaultReconnectWait),
		nats.MaxReconnects(np.config.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			np.logger.Warning("%s : NATS disconnected, attempting reconnect: %v", np.name, err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			np.logger.Info("%s : NATS reconnected to %s", np.name, nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			np.logger.Info("%s : NATS connection closed", np.name)
		}),
	}

	nc, err := nats.Connect(np.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("nats connection failed: %w", err)
	}
	np.nc = nc
	np.logger.Info("%s : connected to NATS at %s", np.name, np.config.URL)
	return nil
}

// -----------------------------------------------------------------------------

func (np *NATSPublisher) IsConnected() bool {
	np.mu.RLock()
	defer np.mu.RUnlock()
	return np.nc != nil && np.nc.IsConnected()
}

// -----------------------------------------------------------------------------

func (np *NATSPublisher) PublishMarket(snapshot *models.MMarketSnapshot) error {
	return np.publish(np.subject("market"), snapshot)
}

// -----------------------------------------------------------------------------

func (np *NATSPublisher) PublishChain(chain *models.MOptionChain) error {
	return np.publish(np.subject("chain", chain.Expiry), chain)
}

// -----------------------------------------------------------------------------

func (np *NATSPublisher) publish(subject string, v interface{}) error {
	np.mu.RLock()
	nc := np.nc
	np.mu.RUnlock()

	if nc == nil || !nc.IsConnected() {
		return fmt.Errorf("nats client not connected")
	}

	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", subject, err)
	}
	if err := nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing %s: %w", subject, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// subject joins the prefix and tokens. Dots inside a token are replaced so an
// expiry can never add subject levels.
func (np *NATSPublisher) subject(tokens ...string) string {
	parts := make([]string, 0, len(tokens)+1)
	if np.config.SubjectPrefix != "" {
		parts = append(parts, np.config.SubjectPrefix)
	}
	for _, t := range tokens {
		parts = append(parts, strings.ReplaceAll(t, ".", "_"))
	}
	return strings.Join(parts, ".")
}

// -----------------------------------------------------------------------------

// Close drains pending messages and closes the connection.
func (np *NATSPublisher) Close() error {
	np.mu.Lock()
	defer np.mu.Unlock()

	if np.nc == nil {
		return nil
	}
	err := np.nc.Drain()
	np.nc = nil
	return err
}

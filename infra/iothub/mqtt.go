package iothub

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/flexmarket/core/logger"
)

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// session describes one MQTT connection to a broker.
type session struct {
	broker   string
	clientID string
	username string
	password string
}

func (c Config) clientOptions(s session) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(s.broker).SetClientID(s.clientID)
	opts.SetUsername(s.username)
	opts.SetPassword(s.password)
	opts.SetProtocolVersion(4)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(c.timeout())
	if c.tlsEnabled() {
		tlsCfg, err := c.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

func (c Config) connect(ctx context.Context, s session, log logger.Logger) (pahoClient, error) {
	opts, err := c.clientOptions(s)
	if err != nil {
		return nil, err
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection to %s lost: %v", s.broker, err)
	}
	cli := newMQTTClient(opts)
	if err := waitToken(ctx, cli.Connect(), c.timeout()); err != nil {
		return nil, fmt.Errorf("connect %s: %w", s.broker, err)
	}
	return cli, nil
}

// waitToken waits for tok to complete, the context to end or the timeout.
func waitToken(ctx context.Context, tok paho.Token, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return fmt.Errorf("mqtt operation timed out after %s", timeout)
	}
}

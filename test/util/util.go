// Package util holds the container and metrics helpers of the integration
// tests.
package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	BrokerStartTimeout = 10 * time.Second
	ScrapeTimeout      = 5 * time.Second

	retryEvery = 50 * time.Millisecond
)

// brokerConf lets anonymous clients publish on any topic, provisioning
// topics included.
const brokerConf = "listener 1883\nallow_anonymous true\npersistence false\nlog_dest stdout\n"

// Broker is a throwaway Mosquitto container reachable at URL.
type Broker struct {
	URL  string
	cont tc.Container
}

// StartBroker runs Mosquitto and returns once a client can connect.
func StartBroker(ctx context.Context) (*Broker, error) {
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "eclipse-mosquitto:2.0",
			ExposedPorts: []string{"1883/tcp"},
			WaitingFor:   wait.ForListeningPort("1883/tcp"),
			Files: []tc.ContainerFile{{
				Reader:            strings.NewReader(brokerConf),
				ContainerFilePath: "/mosquitto/config/mosquitto.conf",
				FileMode:          0o644,
			}},
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start mosquitto: %w", err)
	}
	b := &Broker{cont: cont}
	host, err := cont.Host(ctx)
	if err != nil {
		b.Close()
		return nil, err
	}
	port, err := cont.MappedPort(ctx, "1883")
	if err != nil {
		b.Close()
		return nil, err
	}
	b.URL = fmt.Sprintf("tcp://%s:%s", host, port.Port())

	connCtx, cancel := context.WithTimeout(ctx, BrokerStartTimeout)
	defer cancel()
	if err := b.awaitClients(connCtx); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// Close removes the container.
func (b *Broker) Close() {
	_ = b.cont.Terminate(context.Background())
}

func (b *Broker) awaitClients(ctx context.Context) error {
	opts := paho.NewClientOptions().AddBroker(b.URL).SetClientID("broker-check")
	for {
		cli := paho.NewClient(opts)
		tok := cli.Connect()
		if tok.WaitTimeout(time.Second) && tok.Error() == nil {
			cli.Disconnect(50)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("broker %s refuses clients: %w", b.URL, ctx.Err())
		case <-time.After(retryEvery):
		}
	}
}

// AwaitSample scrapes url until the exposition contains sample.
func AwaitSample(ctx context.Context, url, sample string) error {
	tick := time.NewTicker(retryEvery)
	defer tick.Stop()
	for {
		body, err := scrape(ctx, url)
		if err == nil && strings.Contains(body, sample) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("sample %q missing from %s: %w", sample, url, ctx.Err())
		case <-tick.C:
		}
	}
}

func scrape(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return string(b), err
}

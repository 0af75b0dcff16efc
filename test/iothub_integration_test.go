//go:build !no_containers

package test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/flexmarket/core/demand"
	coremetrics "github.com/kilianp07/flexmarket/core/metrics"
	"github.com/kilianp07/flexmarket/core/model"
	"github.com/kilianp07/flexmarket/infra/iothub"
	"github.com/kilianp07/flexmarket/infra/metrics"
	"github.com/kilianp07/flexmarket/internal/eventbus"
	"github.com/kilianp07/flexmarket/test/util"
)

func startBroker(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
	b, err := util.StartBroker(context.Background())
	if err != nil {
		t.Skipf("mosquitto not available: %v", err)
	}
	t.Cleanup(b.Close)
	return b.URL
}

func connect(t *testing.T, broker, id string) paho.Client {
	t.Helper()
	cli := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID(id))
	tok := cli.Connect()
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())
	t.Cleanup(func() { cli.Disconnect(100) })
	return cli
}

// serveProvisioning answers registration requests on the broker and assigns
// every device to hub after one pending poll.
func serveProvisioning(t *testing.T, broker, hub string) {
	t.Helper()
	cli := connect(t, broker, "dps-responder")
	reply := func(c paho.Client, m paho.Message) {
		_, query, _ := strings.Cut(m.Topic(), "?")
		q, _ := url.ParseQuery(query)
		rid := q.Get("$rid")
		if strings.Contains(m.Topic(), "/PUT/iotdps-register/") {
			var req struct {
				RegistrationID string `json:"registrationId"`
			}
			_ = json.Unmarshal(m.Payload(), &req)
			body := fmt.Sprintf(`{"operationId":"%s","status":"assigning"}`, req.RegistrationID)
			c.Publish("$dps/registrations/res/202/?$rid="+rid+"&retry-after=0", 1, false, body)
			return
		}
		body := fmt.Sprintf(`{"operationId":%[1]q,"status":"assigned","registrationState":{"assignedHub":%[2]q,"deviceId":%[1]q,"status":"assigned"}}`,
			q.Get("operationId"), hub)
		c.Publish("$dps/registrations/res/200/?$rid="+rid, 1, false, body)
	}
	for _, topic := range []string{"$dps/registrations/PUT/#", "$dps/registrations/GET/#"} {
		tok := cli.Subscribe(topic, 1, reply)
		require.True(t, tok.WaitTimeout(5*time.Second))
		require.NoError(t, tok.Error())
	}
}

type received struct {
	mu   sync.Mutex
	msgs map[string][]model.PowerTelemetry
}

func (r *received) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs[id])
}

func (r *received) of(id string) []model.PowerTelemetry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.PowerTelemetry(nil), r.msgs[id]...)
}

func collectTelemetry(t *testing.T, broker string) *received {
	t.Helper()
	r := &received{msgs: make(map[string][]model.PowerTelemetry)}
	cli := connect(t, broker, "hub-listener")
	tok := cli.Subscribe("devices/+/messages/events/#", 1, func(_ paho.Client, m paho.Message) {
		var p model.PowerTelemetry
		if err := json.Unmarshal(m.Payload(), &p); err != nil {
			return
		}
		id := strings.Split(m.Topic(), "/")[1]
		r.mu.Lock()
		r.msgs[id] = append(r.msgs[id], p)
		r.mu.Unlock()
	})
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())
	return r
}

func hubConfig(broker string) iothub.Config {
	off := false
	return iothub.Config{
		ScopeID:        "0ne00TEST",
		BrokerOverride: broker,
		HubOverride:    broker,
		UseTLS:         &off,
		TimeoutSeconds: 5,
	}
}

func testDevice(id string, load float64) model.Device {
	return model.Device{
		ID:                  id,
		Name:                "Usb device",
		AssetPortfolioID:    "ap1",
		InitialLoad:         load,
		CurrentLoad:         load,
		IoTDeviceID:         id,
		IoTDevicePrimaryKey: base64.StdEncoding.EncodeToString([]byte("secret-" + id)),
	}
}

func TestUploaderPublishesTelemetryThroughBroker(t *testing.T) {
	broker := startBroker(t)
	serveProvisioning(t, broker, "hub.local")
	got := collectTelemetry(t, broker)

	up := iothub.NewUploader(hubConfig(broker), nil)
	defer up.Close()

	d := testDevice("lamp-1", 10)
	d.CurrentLoad = 7
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	require.NoError(t, up.UploadLoad(ctx, d))
	require.Eventually(t, func() bool { return got.count("lamp-1") == 2 }, 5*time.Second, 50*time.Millisecond)

	msgs := got.of("lamp-1")
	assert.Equal(t, model.UsageConsumption, msgs[0].UsageMethod)
	require.NotNil(t, msgs[0].PowerAmountKW)
	assert.InDelta(t, 7, *msgs[0].PowerAmountKW, 1e-9)
	assert.Equal(t, model.UsageOptimizedConsumptionDecrease, msgs[1].UsageMethod)
	require.NotNil(t, msgs[1].PowerAmountKW)
	assert.InDelta(t, 3, *msgs[1].PowerAmountKW, 1e-9)

	// The hub connection is reused for the next cycle.
	require.NoError(t, up.UploadLoad(ctx, d))
	require.Eventually(t, func() bool { return got.count("lamp-1") == 4 }, 5*time.Second, 50*time.Millisecond)
}

type fixedOrders []model.Order

func (o fixedOrders) ActiveOrders(context.Context, ...string) ([]model.Order, error) {
	return o, nil
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestDemoCycleExportsLoadMetrics(t *testing.T) {
	broker := startBroker(t)
	serveProvisioning(t, broker, "hub.local")
	got := collectTelemetry(t, broker)

	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	bus := eventbus.NewTyped[coremetrics.DeviceLoadEvent]()
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	worker := metrics.CollectDeviceLoads(bus, sink, nil)
	go worker(ctx)
	addr := freeAddr(t)
	go func() { _ = metrics.StartPromServer(ctx, addr, reg) }()

	up := iothub.NewUploader(hubConfig(broker), nil)
	defer up.Close()
	var out bytes.Buffer
	demo := demand.New(fixedOrders{{ID: "o1", AssetPortfolioID: "ap1", Quantity: 4}}, nil, up,
		[]model.Device{testDevice("lamp-2", 10)}, demand.WithBus(bus), demand.WithOutput(&out))

	devices, err := demo.RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.InDelta(t, 6, devices[0].CurrentLoad, 1e-9)
	assert.Contains(t, out.String(), "lamp-2")

	require.Eventually(t, func() bool { return got.count("lamp-2") == 2 }, 5*time.Second, 50*time.Millisecond)
	scrapeCtx, scrapeCancel := context.WithTimeout(ctx, util.ScrapeTimeout)
	defer scrapeCancel()
	require.NoError(t, util.AwaitSample(scrapeCtx, "http://"+addr+"/metrics", `flexmarket_device_load_kw{device_id="lamp-2"} 6`))
}

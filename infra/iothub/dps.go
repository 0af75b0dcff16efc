package iothub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/flexmarket/core/logger"
)

const (
	dpsResponseTopic = "$dps/registrations/res/#"
	dpsRegisterTopic = "$dps/registrations/PUT/iotdps-register/?$rid=%s"
	dpsStatusTopic   = "$dps/registrations/GET/iotdps-get-operationstatus/?$rid=%s&operationId=%s"

	defaultRetryAfter = 3 * time.Second
)

// ErrRegistrationFailed is returned when the provisioning service does not
// assign the device to a hub.
var ErrRegistrationFailed = errors.New("device registration failed")

// Registration is the hub assignment of a device.
type Registration struct {
	Status      string
	AssignedHub string
	DeviceID    string
}

type dpsResponse struct {
	OperationID       string `json:"operationId"`
	Status            string `json:"status"`
	RegistrationState struct {
		RegistrationID string `json:"registrationId"`
		AssignedHub    string `json:"assignedHub"`
		DeviceID       string `json:"deviceId"`
		Status         string `json:"status"`
		ErrorMessage   string `json:"errorMessage"`
	} `json:"registrationState"`
	ErrorCode int    `json:"errorCode"`
	Message   string `json:"message"`
}

// dpsReply is a response received on the provisioning response topic.
type dpsReply struct {
	code       int
	rid        string
	retryAfter time.Duration
	body       []byte
}

// parseReply reads $dps/registrations/res/{code}/?$rid={rid}&retry-after={s}.
func parseReply(topic string, payload []byte) (dpsReply, error) {
	rest, ok := strings.CutPrefix(topic, "$dps/registrations/res/")
	if !ok {
		return dpsReply{}, fmt.Errorf("unexpected topic %q", topic)
	}
	codeStr, query, _ := strings.Cut(rest, "/?")
	code, err := strconv.Atoi(codeStr)
	if err != nil {
		return dpsReply{}, fmt.Errorf("bad status in topic %q", topic)
	}
	q, err := url.ParseQuery(query)
	if err != nil {
		return dpsReply{}, fmt.Errorf("bad query in topic %q: %w", topic, err)
	}
	r := dpsReply{code: code, rid: q.Get("$rid"), body: payload, retryAfter: defaultRetryAfter}
	if s := q.Get("retry-after"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			r.retryAfter = time.Duration(n) * time.Second
		}
	}
	return r, nil
}

// Provisioner registers devices with a symmetric key.
type Provisioner struct {
	cfg Config
	log logger.Logger
	now func() time.Time
}

func NewProvisioner(cfg Config, log logger.Logger) *Provisioner {
	cfg.SetDefaults()
	return &Provisioner{cfg: cfg, log: logger.OrNop(log), now: time.Now}
}

// Register runs the registration of regID in scope and polls the operation
// until the device is assigned to a hub.
func (p *Provisioner) Register(ctx context.Context, endpoint, scope, regID, key string) (Registration, error) {
	if endpoint == "" {
		endpoint = p.cfg.GlobalEndpoint
	}
	if scope == "" {
		return Registration{}, fmt.Errorf("%w: %s has no scope id", ErrRegistrationFailed, regID)
	}
	resource := scope + "/registrations/" + regID
	token, err := SASToken(resource, key, "registration", p.now().Add(p.cfg.tokenTTL()))
	if err != nil {
		return Registration{}, err
	}

	replies := make(chan dpsReply, 8)
	cli, err := p.cfg.connect(ctx, session{
		broker:   p.cfg.dpsBroker(endpoint),
		clientID: regID,
		username: fmt.Sprintf("%s/registrations/%s/api-version=%s", scope, regID, dpsAPIVersion),
		password: token,
	}, p.log)
	if err != nil {
		return Registration{}, err
	}
	defer cli.Disconnect(250)

	handler := func(_ paho.Client, m paho.Message) {
		r, err := parseReply(m.Topic(), m.Payload())
		if err != nil {
			p.log.Warnf("provisioning: %v", err)
			return
		}
		select {
		case replies <- r:
		default:
			p.log.Warnf("provisioning: dropped reply %s", m.Topic())
		}
	}
	if err := waitToken(ctx, cli.Subscribe(dpsResponseTopic, 1, handler), p.cfg.timeout()); err != nil {
		return Registration{}, fmt.Errorf("subscribe %s: %w", dpsResponseTopic, err)
	}

	p.log.Infof("registering device %s in scope %s", regID, scope)
	body, _ := json.Marshal(map[string]string{"registrationId": regID})
	reply, err := p.request(ctx, cli, replies, func(rid string) string {
		return fmt.Sprintf(dpsRegisterTopic, rid)
	}, body)
	if err != nil {
		return Registration{}, err
	}
	for {
		res, opID, err := decodeReply(reply)
		if err != nil {
			return Registration{}, fmt.Errorf("%w: %s: %v", ErrRegistrationFailed, regID, err)
		}
		if opID == "" {
			p.log.Infof("device %s assigned to hub %s as %s", regID, res.AssignedHub, res.DeviceID)
			return res, nil
		}
		p.log.Debugf("registration of %s pending, polling in %s", regID, reply.retryAfter)
		if err := sleep(ctx, reply.retryAfter); err != nil {
			return Registration{}, err
		}
		reply, err = p.request(ctx, cli, replies, func(rid string) string {
			return fmt.Sprintf(dpsStatusTopic, rid, url.QueryEscape(opID))
		}, []byte{})
		if err != nil {
			return Registration{}, err
		}
	}
}

// request publishes body on the topic built for a fresh request id and waits
// for the reply carrying that id.
func (p *Provisioner) request(ctx context.Context, cli pahoClient, replies <-chan dpsReply, topic func(rid string) string, body []byte) (dpsReply, error) {
	rid := uuid.NewString()
	if err := waitToken(ctx, cli.Publish(topic(rid), 1, false, body), p.cfg.timeout()); err != nil {
		return dpsReply{}, fmt.Errorf("publish provisioning request: %w", err)
	}
	t := time.NewTimer(p.cfg.timeout())
	defer t.Stop()
	for {
		select {
		case r := <-replies:
			if r.rid == rid {
				return r, nil
			}
			p.log.Debugf("provisioning: ignoring reply for request %s", r.rid)
		case <-ctx.Done():
			return dpsReply{}, ctx.Err()
		case <-t.C:
			return dpsReply{}, fmt.Errorf("no provisioning reply after %s", p.cfg.timeout())
		}
	}
}

// decodeReply returns the registration once assigned, or the operation id
// to poll while the assignment is pending.
func decodeReply(r dpsReply) (Registration, string, error) {
	var resp dpsResponse
	if err := json.Unmarshal(r.body, &resp); err != nil {
		return Registration{}, "", fmt.Errorf("decode reply: %w", err)
	}
	switch {
	case r.code >= 300:
		return Registration{}, "", fmt.Errorf("status %d: %s", r.code, resp.Message)
	case resp.Status == "assigned":
		return Registration{
			Status:      resp.Status,
			AssignedHub: resp.RegistrationState.AssignedHub,
			DeviceID:    resp.RegistrationState.DeviceID,
		}, "", nil
	case resp.Status == "assigning" || resp.Status == "unassigned" || r.code == 202:
		if resp.OperationID == "" {
			return Registration{}, "", fmt.Errorf("pending registration without operation id")
		}
		return Registration{}, resp.OperationID, nil
	default:
		msg := resp.RegistrationState.ErrorMessage
		if msg == "" {
			msg = resp.Message
		}
		return Registration{}, "", fmt.Errorf("status %q: %s", resp.Status, msg)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

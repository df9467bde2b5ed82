// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package device

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ipnet-mesh/meshbridge/internal/mockdata"
	"github.com/ipnet-mesh/meshbridge/pkg/log"
	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

// weightedEventType pairs a mock event kind with its relative likelihood
// when MockPort is generating random traffic instead of playing back a
// scenario.
type weightedEventType struct {
	eventType string
	weight    int
}

var randomEventTypes = []weightedEventType{
	{meshmodel.EventAdvertisement, 30},
	{meshmodel.EventContactMsgRecv, 25},
	{meshmodel.EventChannelMsgRecv, 15},
	{"PATH_UPDATED", 10},
	{meshmodel.EventSendConfirmed, 8},
	{meshmodel.EventTelemetryResp, 5},
	{meshmodel.EventTraceData, 3},
	{meshmodel.EventBattery, 2},
	{"STATUS_RESPONSE", 2},
}

var chatMessages = []string{
	"Hello!", "How are you?", "Testing 123", "Roger that",
	"Message received", "All good here", "Check",
	"Standing by", "Copy that", "Acknowledged",
}

var channelMessages = []string{
	"Hello everyone!", "Anyone online?", "Network test",
	"All stations check in", "Repeater operational",
	"Good morning", "Weather update", "Checking coverage",
}

var nodeNames = []string{
	"Alice", "Bob", "Charlie", "Diana", "Eve", "Frank",
	"Grace", "Henry", "Ivy", "Jack", "Kate", "Leo",
	"Repeater-01", "Repeater-02", "Gateway-01", "Sensor-01",
	"Sensor-02", "Mobile-01", "Mobile-02", "Base-Station",
}

var nodeTypes = []string{"chat", "repeater", "room", "none"}

type simNode struct {
	publicKey string
	name      string
	nodeType  string
	latitude  float64
	longitude float64
}

// MockPortConfig configures a MockPort. ScenarioName selects scripted
// playback; when empty MockPort generates weighted-random traffic instead.
type MockPortConfig struct {
	ScenarioName  string
	LoopScenario  bool
	NumNodes      int
	MinInterval   time.Duration
	MaxInterval   time.Duration
	CenterLat     float64
	CenterLon     float64
	GPSRadiusKm   float64
}

func DefaultMockPortConfig() MockPortConfig {
	return MockPortConfig{
		NumNodes:    10,
		MinInterval: time.Second,
		MaxInterval: 10 * time.Second,
		CenterLat:   45.5231,
		CenterLon:   -122.6765,
		GPSRadiusKm: 10.0,
	}
}

// MockPort is a Device Port that needs no radio: it either replays a
// mockdata.Scenario on a wall-clock schedule or emits a weighted-random
// stream of events over simulated nodes, so the rest of the bridge can be
// exercised without hardware.
type MockPort struct {
	eventBus
	cfg MockPortConfig

	mu             sync.Mutex
	connected      bool
	cancel         context.CancelFunc
	simulatedNodes []simNode
	messageCounter int

	contacts *contactCache
}

func NewMockPort(cfg MockPortConfig) *MockPort {
	p := &MockPort{cfg: cfg}
	p.contacts = newContactCache(p.fetchContacts)
	return p
}

func (p *MockPort) Connect(ctx context.Context) error {
	p.mu.Lock()
	if p.connected {
		p.mu.Unlock()
		return nil
	}
	p.generateSimulatedNodes()
	p.connected = true
	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	if p.cfg.ScenarioName != "" {
		go p.playbackScenario(runCtx)
	} else {
		go p.generateRandomEvents(runCtx)
	}

	log.Infof("device: mock port connected with %d simulated nodes", len(p.simulatedNodes))
	return nil
}

func (p *MockPort) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil
	}
	p.connected = false
	p.cancel()
	return nil
}

func (p *MockPort) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *MockPort) Subscribe() <-chan meshmodel.DeviceEvent {
	return p.eventBus.subscribe()
}

func (p *MockPort) generateSimulatedNodes() {
	nodes := make([]simNode, 0, p.cfg.NumNodes)
	for i := 0; i < p.cfg.NumNodes; i++ {
		name := fmt.Sprintf("Node-%d", i)
		if i < len(nodeNames) {
			name = nodeNames[i]
		}
		latOffset := (rand.Float64()*2 - 1) * (p.cfg.GPSRadiusKm / 111.0)
		lonOffset := (rand.Float64()*2 - 1) * (p.cfg.GPSRadiusKm / 111.0)
		nodes = append(nodes, simNode{
			publicKey: randomPublicKey(),
			name:      name,
			nodeType:  nodeTypes[rand.Intn(len(nodeTypes))],
			latitude:  p.cfg.CenterLat + latOffset,
			longitude: p.cfg.CenterLon + lonOffset,
		})
	}
	p.simulatedNodes = nodes
}

func randomPublicKey() string {
	b := make([]byte, 32)
	for i := range b {
		b[i] = byte(rand.Intn(256))
	}
	return fmt.Sprintf("%x", b)
}

func (p *MockPort) generateRandomEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		eventType := selectRandomEventType()
		event := p.createRandomEvent(eventType)
		p.publish(event)

		delay := p.cfg.MinInterval
		if p.cfg.MaxInterval > p.cfg.MinInterval {
			delay += time.Duration(rand.Int63n(int64(p.cfg.MaxInterval - p.cfg.MinInterval)))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func selectRandomEventType() string {
	total := 0
	for _, e := range randomEventTypes {
		total += e.weight
	}
	r := rand.Intn(total)
	cumulative := 0
	for _, e := range randomEventTypes {
		cumulative += e.weight
		if r < cumulative {
			return e.eventType
		}
	}
	return meshmodel.EventAdvertisement
}

func (p *MockPort) createRandomEvent(eventType string) meshmodel.DeviceEvent {
	node := p.simulatedNodes[rand.Intn(len(p.simulatedNodes))]

	switch eventType {
	case meshmodel.EventAdvertisement:
		return meshmodel.DeviceEvent{Type: meshmodel.EventAdvertisement, Payload: map[string]any{
			"public_key": node.publicKey,
			"name":       node.name,
			"adv_type":   node.nodeType,
			"latitude":   node.latitude,
			"longitude":  node.longitude,
			"flags":      rand.Intn(256),
		}}

	case meshmodel.EventContactMsgRecv:
		txtType := []int{0, 0, 0, 2}[rand.Intn(4)]
		var signature any
		if txtType == 2 {
			signature = randomHex(8)
		}
		return meshmodel.DeviceEvent{Type: meshmodel.EventContactMsgRecv, Payload: map[string]any{
			"pubkey_prefix":    node.publicKey[:12],
			"path_len":         rand.Intn(11),
			"txt_type":         txtType,
			"signature":        signature,
			"text":             chatMessages[rand.Intn(len(chatMessages))],
			"SNR":              -5 + rand.Float64()*35,
			"sender_timestamp": time.Now().UTC().Unix(),
		}}

	case meshmodel.EventChannelMsgRecv:
		return meshmodel.DeviceEvent{Type: meshmodel.EventChannelMsgRecv, Payload: map[string]any{
			"channel_idx":      rand.Intn(6),
			"path_len":         rand.Intn(11),
			"txt_type":         0,
			"text":             channelMessages[rand.Intn(len(channelMessages))],
			"SNR":              -5 + rand.Float64()*35,
			"sender_timestamp": time.Now().UTC().Unix(),
		}}

	case "PATH_UPDATED":
		return meshmodel.DeviceEvent{Type: "PATH_UPDATED", Payload: map[string]any{
			"node_public_key": node.publicKey,
			"hop_count":       1 + rand.Intn(5),
		}}

	case meshmodel.EventSendConfirmed:
		return meshmodel.DeviceEvent{Type: meshmodel.EventSendConfirmed, Payload: map[string]any{
			"destination_public_key": node.publicKey,
			"round_trip_ms":          500 + rand.Intn(9501),
		}}

	case meshmodel.EventTelemetryResp:
		return meshmodel.DeviceEvent{Type: meshmodel.EventTelemetryResp, Payload: map[string]any{
			"node_public_key": node.publicKey,
			"parsed_data": map[string]any{
				"temperature": 15 + rand.Float64()*20,
				"humidity":    30 + rand.Intn(51),
				"battery":     3.0 + rand.Float64()*1.2,
			},
		}}

	case meshmodel.EventTraceData:
		hopCount := 1 + rand.Intn(5)
		pathHashes := make([]any, hopCount)
		snrValues := make([]any, hopCount)
		for i := 0; i < hopCount; i++ {
			pathHashes[i] = node.publicKey[:2]
			snrValues[i] = 10 + rand.Float64()*40
		}
		return meshmodel.DeviceEvent{Type: meshmodel.EventTraceData, Payload: map[string]any{
			"initiator_tag": rand.Uint32(),
			"path_len":      hopCount,
			"path_hashes":   pathHashes,
			"snr_values":    snrValues,
			"hop_count":     hopCount,
		}}

	case meshmodel.EventBattery:
		return meshmodel.DeviceEvent{Type: meshmodel.EventBattery, Payload: map[string]any{
			"battery_voltage":    3.2 + rand.Float64(),
			"battery_percentage": 20 + rand.Intn(81),
		}}

	case "STATUS_RESPONSE":
		return meshmodel.DeviceEvent{Type: "STATUS_RESPONSE", Payload: map[string]any{
			"node_public_key": node.publicKey,
			"status_data": map[string]any{
				"uptime":   rand.Intn(86401),
				"messages": rand.Intn(1001),
			},
		}}
	}

	return meshmodel.DeviceEvent{Type: "UNKNOWN", Payload: map[string]any{}}
}

func randomHex(n int) string {
	const alphabet = "0123456789abcdef"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}

func (p *MockPort) playbackScenario(ctx context.Context) {
	scenario, ok := mockdata.Scenarios[p.cfg.ScenarioName]
	if !ok {
		log.Errorf("device: unknown mock scenario %q", p.cfg.ScenarioName)
		return
	}
	log.Infof("device: playing mock scenario %q: %s", p.cfg.ScenarioName, scenario.Description)

	counter := &mockdata.Counter{}
	for {
		start := time.Now()
		for _, ev := range scenario.Events {
			target := start.Add(time.Duration(ev.Delay * float64(time.Second)))
			if wait := time.Until(target); wait > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			}
			payload := mockdata.ProcessDynamicValues(ev.Data, counter)
			p.publish(meshmodel.DeviceEvent{Type: ev.Type, Payload: payload})
		}

		if !p.cfg.LoopScenario {
			log.Infof("device: mock scenario %q playback complete", p.cfg.ScenarioName)
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (p *MockPort) fetchContacts(ctx context.Context) ([]meshmodel.Contact, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	contacts := make([]meshmodel.Contact, 0, len(p.simulatedNodes))
	for _, n := range p.simulatedNodes {
		contacts = append(contacts, meshmodel.Contact{PublicKey: n.publicKey, Name: n.name, NodeType: n.nodeType})
	}
	return contacts, nil
}

func (p *MockPort) GetContacts(ctx context.Context) ([]meshmodel.Contact, error) {
	return p.contacts.get(ctx)
}

func (p *MockPort) InvalidateContacts() {
	p.contacts.invalidate()
}

func (p *MockPort) ResolveDestination(ctx context.Context, destination string) (string, error) {
	contacts, err := p.GetContacts(ctx)
	if err != nil {
		return "", err
	}
	return resolveDestination(contacts, destination)
}

func (p *MockPort) nextMessageID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messageCounter++
	return p.messageCounter
}

func (p *MockPort) SendMessage(ctx context.Context, destination, text string, textType int) meshmodel.DeviceEvent {
	resolved, err := p.ResolveDestination(ctx, destination)
	if err != nil {
		return meshmodel.DeviceEvent{Type: "ERROR", Payload: map[string]any{"error": err.Error()}}
	}
	return meshmodel.DeviceEvent{Type: "MSG_SENT", Payload: map[string]any{
		"message_id":            p.nextMessageID(),
		"destination":           resolved,
		"text":                  text,
		"text_type":             textType,
		"estimated_delivery_ms": 1000 + rand.Intn(4001),
	}}
}

func (p *MockPort) SendChannelMessage(ctx context.Context, text string, flood bool) meshmodel.DeviceEvent {
	return meshmodel.DeviceEvent{Type: "MSG_SENT", Payload: map[string]any{
		"message_id": p.nextMessageID(),
		"text":       text,
		"flood":      flood,
	}}
}

func (p *MockPort) SendAdvert(ctx context.Context, flood bool) meshmodel.DeviceEvent {
	return meshmodel.DeviceEvent{Type: "ADVERT_SENT", Payload: map[string]any{"flood": flood}}
}

func (p *MockPort) SendTracePath(ctx context.Context, destination string) meshmodel.DeviceEvent {
	resolved, err := p.ResolveDestination(ctx, destination)
	if err != nil {
		return meshmodel.DeviceEvent{Type: "ERROR", Payload: map[string]any{"error": err.Error()}}
	}
	return meshmodel.DeviceEvent{Type: "TRACE_INITIATED", Payload: map[string]any{
		"destination":    resolved,
		"initiator_tag":  rand.Uint32(),
	}}
}

func (p *MockPort) Ping(ctx context.Context, destination string) meshmodel.DeviceEvent {
	resolved, err := p.ResolveDestination(ctx, destination)
	if err != nil {
		return meshmodel.DeviceEvent{Type: "ERROR", Payload: map[string]any{"error": err.Error()}}
	}
	return meshmodel.DeviceEvent{Type: "PING_SENT", Payload: map[string]any{"destination": resolved}}
}

func (p *MockPort) SendTelemetryRequest(ctx context.Context, destination string) meshmodel.DeviceEvent {
	resolved, err := p.ResolveDestination(ctx, destination)
	if err != nil {
		return meshmodel.DeviceEvent{Type: "ERROR", Payload: map[string]any{"error": err.Error()}}
	}
	return meshmodel.DeviceEvent{Type: "TELEMETRY_REQUEST_SENT", Payload: map[string]any{"destination": resolved}}
}

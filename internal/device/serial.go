// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package device

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/ipnet-mesh/meshbridge/pkg/log"
	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

// wireFrame is the line-delimited JSON framing the companion firmware uses
// on the serial link: one {type, payload} object per line, inbound and
// outbound. The radio MAC/PHY below it belongs to the device.
type wireFrame struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// SerialPort is the live Device Port, talking to a MeshCore companion
// device over a serial link via go.bug.st/serial.
type SerialPort struct {
	eventBus
	portName string
	baudRate int

	mu        sync.Mutex
	conn      serial.Port
	connected bool
	cancel    context.CancelFunc

	contacts *contactCache
}

func NewSerialPort(portName string, baudRate int) *SerialPort {
	p := &SerialPort{portName: portName, baudRate: baudRate}
	p.contacts = newContactCache(p.fetchContacts)
	return p
}

func (p *SerialPort) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return nil
	}

	conn, err := serial.Open(p.portName, &serial.Mode{BaudRate: p.baudRate})
	if err != nil {
		return fmt.Errorf("device: open %s: %w", p.portName, err)
	}
	_ = conn.SetReadTimeout(time.Second)

	readCtx, cancel := context.WithCancel(context.Background())
	p.conn = conn
	p.connected = true
	p.cancel = cancel

	go p.readLoop(readCtx, conn)

	log.Infof("device: connected to %s at %d baud", p.portName, p.baudRate)
	return nil
}

func (p *SerialPort) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return nil
	}

	p.cancel()
	err := p.conn.Close()
	p.connected = false
	p.conn = nil
	return err
}

func (p *SerialPort) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *SerialPort) Subscribe() <-chan meshmodel.DeviceEvent {
	return p.eventBus.subscribe()
}

// readLoop decodes newline-delimited JSON frames until the port is closed
// or the read times out repeatedly on a line that never completes (both
// surfaced as a CONNECTION_LOST event).
func (p *SerialPort) readLoop(ctx context.Context, conn serial.Port) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var frame wireFrame
		if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil {
			log.Warnf("device: malformed frame from %s: %v", p.portName, err)
			continue
		}
		p.publish(meshmodel.DeviceEvent{Type: frame.Type, Payload: frame.Payload})
	}

	if err := scanner.Err(); err != nil {
		log.Errorf("device: read loop on %s ended: %v", p.portName, err)
	}
	p.publish(meshmodel.DeviceEvent{Type: meshmodel.EventConnectionLost, Payload: map[string]any{}})
}

func (p *SerialPort) write(frame wireFrame) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("device: not connected")
	}

	b, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = conn.Write(b)
	return err
}

func (p *SerialPort) sendCommand(cmdType string, payload map[string]any) meshmodel.DeviceEvent {
	if err := p.write(wireFrame{Type: cmdType, Payload: payload}); err != nil {
		return failureEvent(cmdType, err)
	}
	return meshmodel.DeviceEvent{Type: cmdType + "_SENT", Payload: payload}
}

func failureEvent(cmdType string, err error) meshmodel.DeviceEvent {
	return meshmodel.DeviceEvent{
		Type: "COMMAND_FAILED",
		Payload: map[string]any{
			"command": cmdType,
			"error":   err.Error(),
		},
	}
}

func (p *SerialPort) SendMessage(ctx context.Context, destination, text string, textType int) meshmodel.DeviceEvent {
	full, err := p.ResolveDestination(ctx, destination)
	if err != nil {
		return failureEvent("send_message", err)
	}
	return p.sendCommand("SEND_MESSAGE", map[string]any{
		"destination": full, "text": text, "text_type": textType,
	})
}

func (p *SerialPort) SendChannelMessage(ctx context.Context, text string, flood bool) meshmodel.DeviceEvent {
	return p.sendCommand("SEND_CHANNEL_MESSAGE", map[string]any{"text": text, "flood": flood})
}

func (p *SerialPort) SendAdvert(ctx context.Context, flood bool) meshmodel.DeviceEvent {
	return p.sendCommand("SEND_ADVERT", map[string]any{"flood": flood})
}

func (p *SerialPort) SendTracePath(ctx context.Context, destination string) meshmodel.DeviceEvent {
	full, err := p.ResolveDestination(ctx, destination)
	if err != nil {
		return failureEvent("send_trace_path", err)
	}
	return p.sendCommand("SEND_TRACE_PATH", map[string]any{"destination": full})
}

func (p *SerialPort) Ping(ctx context.Context, destination string) meshmodel.DeviceEvent {
	full, err := p.ResolveDestination(ctx, destination)
	if err != nil {
		return failureEvent("ping", err)
	}
	return p.sendCommand("PING", map[string]any{"destination": full})
}

func (p *SerialPort) SendTelemetryRequest(ctx context.Context, destination string) meshmodel.DeviceEvent {
	full, err := p.ResolveDestination(ctx, destination)
	if err != nil {
		return failureEvent("send_telemetry_request", err)
	}
	return p.sendCommand("SEND_TELEMETRY_REQUEST", map[string]any{"destination": full})
}

func (p *SerialPort) fetchContacts(ctx context.Context) ([]meshmodel.Contact, error) {
	if err := p.write(wireFrame{Type: "GET_CONTACTS", Payload: map[string]any{}}); err != nil {
		return nil, err
	}
	// The device's reply arrives asynchronously on the event stream as a
	// contact-sync aggregate event, which the normalizer writes to the
	// store before invalidating this port's contact cache. The reply is
	// not awaited here: the fetch returns an empty list, so on SerialPort
	// a prefix matches no contact and only a full 64-hex key resolves.
	return nil, nil
}

func (p *SerialPort) GetContacts(ctx context.Context) ([]meshmodel.Contact, error) {
	return p.contacts.get(ctx)
}

func (p *SerialPort) InvalidateContacts() {
	p.contacts.invalidate()
}

func (p *SerialPort) ResolveDestination(ctx context.Context, destination string) (string, error) {
	contacts, err := p.GetContacts(ctx)
	if err != nil {
		return "", err
	}
	return resolveDestination(contacts, destination)
}

// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	applog "dfttest/internal/log"
	"dfttest/internal/transport"
)

// DefaultInterval is used when NewUDPPublisher is given a non-positive one.
const DefaultInterval = 250 * time.Millisecond

// PacketSize is the encoded size of Packet.
const PacketSize = 24

var ErrShortPacket = errors.New("udp: packet too short")

/*
Packet is the progress datagram, big-endian:

	+----------+-----------+---------+---------+---------+
	| Sequence | Timestamp |  Done   |  Total  |   FPS   |
	|  uint32  |   int64   | uint32  | uint32  | float32 |
	|    4     |     8     |    4    |    4    |    4    |
	+----------+-----------+---------+---------+---------+

Timestamp is nanoseconds since the Unix epoch.
*/
type Packet struct {
	Sequence  uint32
	Timestamp int64
	Done      uint32
	Total     uint32
	FPS       float32
}

// DecodePacket parses a datagram produced by the publisher.
func DecodePacket(b []byte) (Packet, error) {
	var p Packet
	if len(b) < PacketSize {
		return p, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}
	err := binary.Read(bytes.NewReader(b), binary.BigEndian, &p)
	return p, err
}

// UDPPublisher periodically polls a ProgressProvider and sends the result
// as a Packet. It runs in its own goroutine between Start and Stop.
type UDPPublisher struct {
	sender   *UDPSender
	source   transport.ProgressProvider
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum  uint32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates a publisher. Both sender and source are required.
func NewUDPPublisher(interval time.Duration, sender *UDPSender, source transport.ProgressProvider) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("UDPPublisher: progress source cannot be nil")
	}
	if interval <= 0 {
		interval = DefaultInterval
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	applog.Infof("UDPPublisher: Initializing (Interval: %s)", interval)
	return &UDPPublisher{
		sender:       sender,
		source:       source,
		interval:     interval,
		packetBuffer: bytes.NewBuffer(make([]byte, 0, PacketSize)),
	}, nil
}

// Start launches the publishing goroutine. Calling Start on a running
// publisher does nothing.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publishing goroutine, waits for it and sends one final
// packet so receivers see the finished state. Calling Stop twice is safe.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	p.buildAndSendPacket()
	applog.Debugf("UDPPublisher: Stopped after %d packets", p.sequenceNum)
	return nil
}

// buildAndSendPacket is only called from the publishing goroutine or after
// it has exited, so sequenceNum and packetBuffer need no lock.
func (p *UDPPublisher) buildAndSendPacket() {
	prog := p.source.Progress()
	p.sequenceNum++

	pkt := Packet{
		Sequence:  p.sequenceNum,
		Timestamp: time.Now().UnixNano(),
		Done:      uint32(prog.Done),
		Total:     uint32(prog.Total),
		FPS:       float32(prog.FPS),
	}

	p.packetBuffer.Reset()
	if err := binary.Write(p.packetBuffer, binary.BigEndian, &pkt); err != nil {
		applog.Errorf("UDPPublisher: Error packing progress: %v", err)
		return
	}

	if err := p.sender.Send(p.packetBuffer.Bytes()); err == nil {
		applog.Debugf("UDPPublisher: Sent packet %d (%d/%d)", pkt.Sequence, pkt.Done, pkt.Total)
	}
}

// Close stops the publisher. The sender is owned by the caller.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)

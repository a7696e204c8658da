// SPDX-License-Identifier: MIT
package udp

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"dfttest/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProgress struct {
	done atomic.Int64
}

func (f *fakeProgress) Progress() transport.Progress {
	return transport.Progress{Done: int(f.done.Load()), Total: 100, FPS: 12.5}
}

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readPacket(t *testing.T, conn *net.UDPConn) Packet {
	t.Helper()
	buf := make([]byte, 64)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)
	require.Equal(t, PacketSize, n)
	p, err := DecodePacket(buf[:n])
	require.NoError(t, err)
	return p
}

func TestPublisherSendsProgress(t *testing.T) {
	conn := listen(t)
	sender, err := NewUDPSender(conn.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	src := &fakeProgress{}
	src.done.Store(42)
	pub, err := NewUDPPublisher(10*time.Millisecond, sender, src)
	require.NoError(t, err)

	pub.Start()
	pub.Start() // no-op

	first := readPacket(t, conn)
	assert.EqualValues(t, 1, first.Sequence)
	assert.EqualValues(t, 42, first.Done)
	assert.EqualValues(t, 100, first.Total)
	assert.InDelta(t, 12.5, first.FPS, 1e-6)
	assert.InDelta(t, time.Now().UnixNano(), first.Timestamp, float64(5*time.Second))

	second := readPacket(t, conn)
	assert.Greater(t, second.Sequence, first.Sequence)

	src.done.Store(100)
	require.NoError(t, pub.Stop())
	require.NoError(t, pub.Close())

	// Drain until the final packet, which reports completion.
	var last Packet
	for {
		p := readPacket(t, conn)
		last = p
		if p.Done == 100 {
			break
		}
	}
	assert.EqualValues(t, 100, last.Done)
}

func TestPublisherValidatesArguments(t *testing.T) {
	_, err := NewUDPPublisher(time.Second, nil, &fakeProgress{})
	assert.Error(t, err)

	conn := listen(t)
	sender, err := NewUDPSender(conn.LocalAddr().String())
	require.NoError(t, err)
	defer sender.Close()

	_, err = NewUDPPublisher(time.Second, sender, nil)
	assert.Error(t, err)

	pub, err := NewUDPPublisher(0, sender, &fakeProgress{})
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, pub.interval)
	assert.NoError(t, pub.Stop(), "stop before start is a no-op")
}

func TestSenderClosed(t *testing.T) {
	conn := listen(t)
	sender, err := NewUDPSender(conn.LocalAddr().String())
	require.NoError(t, err)

	require.NoError(t, sender.Close())
	require.NoError(t, sender.Close())
	assert.ErrorIs(t, sender.Send([]byte{1}), ErrClosed)
}

func TestDecodePacketShort(t *testing.T) {
	_, err := DecodePacket(make([]byte, PacketSize-1))
	assert.ErrorIs(t, err, ErrShortPacket)
}

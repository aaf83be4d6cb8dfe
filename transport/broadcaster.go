package transport

import (
	"fmt"
	"net"
	"sync"

	"golang.org/x/net/ipv6"

	"mcl/connection"
	"mcl/mclerr"
	"mcl/metrics"
)

// RawBroadcaster sends data over a UDP multicast group, fragmenting
// payloads larger than MTU into multiple packets (spec.md §4.D).
type RawBroadcaster struct {
	conn  *connection.Connection
	codec Codec

	mu         sync.Mutex
	socket     *net.UDPConn
	remoteAddr *net.UDPAddr
	isOpen     bool
}

// NewRawBroadcaster opens a broadcaster bound to conn. codec defaults to
// a JSON codec when nil.
func NewRawBroadcaster(conn *connection.Connection, codec Codec) (*RawBroadcaster, error) {
	if codec == nil {
		codec = defaultCodec{}
	}
	b := &RawBroadcaster{conn: conn, codec: codec}
	if err := b.open(); err != nil {
		return nil, err
	}
	return b, nil
}

// IsOpen reports whether the underlying socket is open.
func (b *RawBroadcaster) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isOpen
}

func (b *RawBroadcaster) open() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isOpen {
		return nil
	}

	addr := &net.UDPAddr{IP: net.ParseIP(b.conn.Group()), Port: b.conn.Port()}
	if addr.IP == nil {
		return mclerr.New(mclerr.ConfigError, "transport.RawBroadcaster.open",
			fmt.Errorf("invalid multicast group %q", b.conn.Group()))
	}

	socket, err := net.ListenUDP("udp6", &net.UDPAddr{Port: 0})
	if err != nil {
		return mclerr.New(mclerr.IOErrorTransport, "transport.RawBroadcaster.open", err)
	}
	pc := ipv6.NewPacketConn(socket)
	if err := pc.SetHopLimit(AllowedMulticastHops); err != nil {
		socket.Close()
		return mclerr.New(mclerr.IOErrorTransport, "transport.RawBroadcaster.open", err)
	}

	b.socket = socket
	b.remoteAddr = addr
	b.isOpen = true
	return nil
}

// Publish sends data to the bound connection's group/port, transparently
// fragmenting it into MTU-sized packets when necessary (spec.md §4.D).
func (b *RawBroadcaster) Publish(topic string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.isOpen {
		return mclerr.New(mclerr.StateError, "transport.RawBroadcaster.Publish",
			fmt.Errorf("connection must be opened before publishing"))
	}

	total := len(data)/MTU + 1
	if total == 1 || len(data) == MTU {
		return b.sendFragment(topic, 1, 1, data)
	}

	packets := (len(data) + MTU - 1) / MTU
	for i := 0; i < packets; i++ {
		start := i * MTU
		end := start + MTU
		if end > len(data) {
			end = len(data)
		}
		if err := b.sendFragment(topic, i+1, packets, data[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (b *RawBroadcaster) sendFragment(topic string, packet, packets int, payload []byte) error {
	encoded, err := encodeFrame(frame{Topic: topic, Packet: packet, Packets: packets, Payload: payload}, b.codec)
	if err != nil {
		return err
	}
	if _, err := b.socket.WriteToUDP(encoded, b.remoteAddr); err != nil {
		return mclerr.New(mclerr.IOErrorTransport, "transport.RawBroadcaster.sendFragment", err)
	}
	metrics.BroadcasterFragmentsSent.Inc()
	return nil
}

// Close closes the broadcaster's socket. Closing an already-closed
// broadcaster is a no-op.
func (b *RawBroadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.isOpen {
		return nil
	}
	err := b.socket.Close()
	b.isOpen = false
	if err != nil {
		return mclerr.New(mclerr.IOErrorTransport, "transport.RawBroadcaster.Close", err)
	}
	return nil
}

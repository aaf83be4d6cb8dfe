package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/ipv6"

	"mcl/connection"
	"mcl/mclerr"
	"mcl/metrics"
	"mcl/pubsub"
)

// Datagram is the value published to a RawListener's subscribers once a
// topic-matching payload has been fully received, possibly after
// reassembling multiple fragments (spec.md §4.D).
type Datagram struct {
	Topic   string
	Payload []byte
}

// assemblyKey identifies the fragments belonging to a single logical
// message: sender address, fragment count, and topic. Matches
// original_source's "(sender, packets, topic)" identifier.
type assemblyKey struct {
	sender  string
	packets int
	topic   string
}

type assembly struct {
	parts    [][]byte
	received int
	seenAt   time.Time
}

// RawListener receives UDP multicast datagrams on a bound connection,
// reassembles fragmented payloads, filters by topic, and publishes
// completed payloads to subscribers (spec.md §4.D).
type RawListener struct {
	conn   *connection.Connection
	codec  Codec
	topics map[string]bool // nil means "accept all topics"

	publisher *pubsub.Publisher

	mu      sync.Mutex
	socket  *net.UDPConn
	isOpen  bool
	stop    chan struct{}
	stopped chan struct{}

	staleAfter time.Duration
}

// NewRawListener opens a listener bound to conn, filtering to topics (nil
// or empty accepts every topic). codec defaults to a JSON codec when nil.
func NewRawListener(conn *connection.Connection, topics []string, codec Codec) (*RawListener, error) {
	if codec == nil {
		codec = defaultCodec{}
	}
	var topicSet map[string]bool
	if len(topics) > 0 {
		topicSet = make(map[string]bool, len(topics))
		for _, t := range topics {
			topicSet[t] = true
		}
	}
	l := &RawListener{
		conn:       conn,
		codec:      codec,
		topics:     topicSet,
		publisher:  pubsub.New(),
		staleAfter: 5 * time.Second,
	}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

// Subscribe registers cb to receive every Datagram accepted by the topic
// filter.
func (l *RawListener) Subscribe(cb func(Datagram)) bool {
	return l.publisher.Subscribe(func(e pubsub.Event) { cb(e.(Datagram)) })
}

// IsOpen reports whether the listener's socket is open.
func (l *RawListener) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isOpen
}

func (l *RawListener) open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.isOpen {
		return nil
	}

	group := net.ParseIP(l.conn.Group())
	if group == nil {
		return mclerr.New(mclerr.ConfigError, "transport.RawListener.open",
			fmt.Errorf("invalid multicast group %q", l.conn.Group()))
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				ctrlErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}

	packetConn, err := lc.ListenPacket(context.Background(), "udp6", fmt.Sprintf(":%d", l.conn.Port()))
	if err != nil {
		return mclerr.New(mclerr.IOErrorTransport, "transport.RawListener.open", err)
	}
	socket, ok := packetConn.(*net.UDPConn)
	if !ok {
		packetConn.Close()
		return mclerr.New(mclerr.IOErrorTransport, "transport.RawListener.open",
			fmt.Errorf("unexpected packet connection type %T", packetConn))
	}

	pc := ipv6.NewPacketConn(socket)
	ifaces, _ := net.Interfaces()
	joined := false
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagMulticast == 0 {
			continue
		}
		if err := pc.JoinGroup(&ifi, &net.UDPAddr{IP: group}); err == nil {
			joined = true
		}
	}
	if !joined {
		socket.Close()
		return mclerr.New(mclerr.IOErrorTransport, "transport.RawListener.open",
			fmt.Errorf("could not join multicast group %q on any interface", l.conn.Group()))
	}

	l.socket = socket
	l.isOpen = true
	l.stop = make(chan struct{})
	l.stopped = make(chan struct{})
	go l.serve()
	return nil
}

func (l *RawListener) serve() {
	defer close(l.stopped)

	buf := make([]byte, MTUMax)
	assemblies := make(map[assemblyKey]*assembly)

	// pending is this listener's share of the process-wide gauge.
	pending := 0
	updatePending := func() {
		metrics.ListenerFragmentsPending.Add(float64(len(assemblies) - pending))
		pending = len(assemblies)
	}
	defer func() { metrics.ListenerFragmentsPending.Sub(float64(pending)) }()

	for {
		select {
		case <-l.stop:
			return
		default:
		}

		l.socket.SetReadDeadline(time.Now().Add(ReadTimeoutMillis * time.Millisecond))
		n, addr, err := l.socket.ReadFromUDP(buf)
		if err != nil {
			l.evictStale(assemblies)
			updatePending()
			continue
		}

		f, err := decodeFrame(buf[:n], l.codec)
		if err != nil {
			metrics.ListenerFramesDropped.Inc()
			continue
		}
		if l.topics != nil && !l.topics[f.Topic] {
			continue
		}

		if f.Packets <= 1 {
			l.publisher.Trigger(Datagram{Topic: f.Topic, Payload: f.Payload})
			continue
		}

		if f.Packet < 1 || f.Packet > f.Packets {
			metrics.ListenerFramesDropped.Inc()
			continue
		}
		key := assemblyKey{sender: addr.String(), packets: f.Packets, topic: f.Topic}
		a, exists := assemblies[key]
		if !exists {
			a = &assembly{parts: make([][]byte, f.Packets)}
			assemblies[key] = a
		} else if a.parts[f.Packet-1] != nil {
			// Index already populated: a stale slot is being clobbered by
			// a fresh message reusing the same identifier. Re-allocate.
			a = &assembly{parts: make([][]byte, f.Packets)}
			assemblies[key] = a
		}
		a.parts[f.Packet-1] = f.Payload
		a.received++
		a.seenAt = time.Now()
		if a.received == f.Packets {
			payload := make([]byte, 0, f.Packets*MTU)
			for _, part := range a.parts {
				payload = append(payload, part...)
			}
			delete(assemblies, key)
			l.publisher.Trigger(Datagram{Topic: f.Topic, Payload: payload})
		}
		updatePending()
	}
}

// evictStale drops assemblies that have not received a fragment within
// staleAfter, preventing unbounded growth from messages that never
// completed (spec.md §4.D; grounded in the purge-loop idiom other
// multicast listeners in the corpus use for the same reassembly-table
// leak).
func (l *RawListener) evictStale(assemblies map[assemblyKey]*assembly) {
	cutoff := time.Now().Add(-l.staleAfter)
	for key, a := range assemblies {
		if a.seenAt.Before(cutoff) {
			delete(assemblies, key)
		}
	}
}

// Close stops the listener's service goroutine and closes its socket.
// Closing an already-closed listener is a no-op.
func (l *RawListener) Close() error {
	l.mu.Lock()
	if !l.isOpen {
		l.mu.Unlock()
		return nil
	}
	close(l.stop)
	socket := l.socket
	l.isOpen = false
	l.mu.Unlock()

	<-l.stopped
	if err := socket.Close(); err != nil {
		return mclerr.New(mclerr.IOErrorTransport, "transport.RawListener.Close", err)
	}
	return nil
}

package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	subscriberSendBuffer  = 300
	subscriberSendTimeout = 200 * time.Millisecond
)

// PubSubProxy is the fan-out hub described in spec.md §2: an ingress face
// that publishers connect to, and an egress face that subscribers connect
// to. Every frame received on the ingress face is broadcast to every
// subscriber whose topic set contains the frame's topic.
//
// This plays the role of the standalone XSUB/XPUB proxy process; it is
// deliberately topic-routing only and holds no application state, matching
// the "relay, not a concern" framing of spec.md §1.
type PubSubProxy struct {
	IngressAddr string
	EgressAddr  string
	Logger      *zap.Logger

	mu          sync.RWMutex
	subscribers map[*subscriberConn]struct{}

	ingressListener net.Listener
	egressListener  net.Listener
}

type subscriberConn struct {
	conn   net.Conn
	topics map[string]struct{}
	sendCh chan publishedMessage
}

type publishedMessage struct {
	topic   string
	payload []byte
}

// Serve binds both faces and runs until ctx is cancelled.
func (p *PubSubProxy) Serve(ctx context.Context) error {
	p.subscribers = map[*subscriberConn]struct{}{}

	il, err := net.Listen("tcp", p.IngressAddr)
	if err != nil {
		return err
	}
	p.ingressListener = il

	el, err := net.Listen("tcp", p.EgressAddr)
	if err != nil {
		il.Close()
		return err
	}
	p.egressListener = el

	go func() {
		<-ctx.Done()
		il.Close()
		el.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.acceptIngress(ctx)
	}()
	go func() {
		defer wg.Done()
		p.acceptEgress(ctx)
	}()
	wg.Wait()
	return nil
}

func (p *PubSubProxy) acceptIngress(ctx context.Context) {
	for {
		conn, err := p.ingressListener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				return
			}
		}
		go p.serveIngress(conn)
	}
}

func (p *PubSubProxy) serveIngress(conn net.Conn) {
	defer conn.Close()
	for {
		topic, err := readFrame(conn)
		if err != nil {
			return
		}
		payload, err := readFrame(conn)
		if err != nil {
			return
		}
		p.broadcast(string(topic), payload)
	}
}

func (p *PubSubProxy) acceptEgress(ctx context.Context) {
	for {
		conn, err := p.egressListener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				return
			}
		}
		go p.serveEgress(conn)
	}
}

func (p *PubSubProxy) serveEgress(conn net.Conn) {
	topicsFrame, err := readFrame(conn)
	if err != nil {
		conn.Close()
		return
	}
	topics := map[string]struct{}{}
	for _, t := range splitTopics(topicsFrame) {
		topics[t] = struct{}{}
	}

	sub := &subscriberConn{conn: conn, topics: topics, sendCh: make(chan publishedMessage, subscriberSendBuffer)}

	p.mu.Lock()
	p.subscribers[sub] = struct{}{}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.subscribers, sub)
		p.mu.Unlock()
		conn.Close()
	}()

	for msg := range sub.sendCh {
		if err := writeFrame(conn, []byte(msg.topic)); err != nil {
			return
		}
		if err := writeFrame(conn, msg.payload); err != nil {
			return
		}
	}
}

func (p *PubSubProxy) broadcast(topic string, payload []byte) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for sub := range p.subscribers {
		if _, ok := sub.topics[topic]; !ok {
			continue
		}
		select {
		case sub.sendCh <- publishedMessage{topic: topic, payload: payload}:
		case <-time.After(subscriberSendTimeout):
			if p.Logger != nil {
				p.Logger.Warn("dropping slow pubsub subscriber delivery", zap.String("topic", topic))
			}
		}
	}
}

// Close stops accepting new connections on both faces.
func (p *PubSubProxy) Close() error {
	if p.ingressListener != nil {
		p.ingressListener.Close()
	}
	if p.egressListener != nil {
		p.egressListener.Close()
	}
	return nil
}

func splitTopics(b []byte) []string {
	var topics []string
	start := 0
	for i, c := range b {
		if c == '\n' {
			topics = append(topics, string(b[start:i]))
			start = i + 1
		}
	}
	if start < len(b) {
		topics = append(topics, string(b[start:]))
	}
	return topics
}

func joinTopics(topics []string) []byte {
	out := make([]byte, 0)
	for i, t := range topics {
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, t...)
	}
	return out
}

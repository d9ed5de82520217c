package transport

import (
	"fmt"
	"net"
	"sync"

	"github.com/mcastellin/chatmesh/pkg/wire"
)

// Publisher dials a PubSubProxy's ingress face and implements
// TopicPublisher. The connection is established lazily on the first
// Publish call and reused for subsequent ones.
type Publisher struct {
	Addr string

	mu   sync.Mutex
	conn net.Conn
}

// Publish encodes f and sends it on topic.
func (p *Publisher) Publish(topic string, f wire.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		conn, err := net.Dial("tcp", p.Addr)
		if err != nil {
			return err
		}
		p.conn = conn
	}

	payload, err := wire.Encode(f)
	if err != nil {
		return err
	}
	if err := writeFrame(p.conn, []byte(topic)); err != nil {
		p.conn.Close()
		p.conn = nil
		return fmt.Errorf("publish topic frame: %w", err)
	}
	if err := writeFrame(p.conn, payload); err != nil {
		p.conn.Close()
		p.conn = nil
		return fmt.Errorf("publish payload frame: %w", err)
	}
	return nil
}

// Close releases the underlying connection, if any.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

// Subscriber dials a PubSubProxy's egress face, registers interest in a
// fixed set of topics, and implements TopicSubscriber.
type Subscriber struct {
	Addr   string
	Topics []string

	conn   net.Conn
	msgCh  chan TopicMessage
	closed chan struct{}
}

// Connect dials the proxy, sends the subscription, and starts the
// background delivery loop. Messages() is only valid after Connect
// succeeds.
func (s *Subscriber) Connect() error {
	conn, err := net.Dial("tcp", s.Addr)
	if err != nil {
		return err
	}
	if err := writeFrame(conn, joinTopics(s.Topics)); err != nil {
		conn.Close()
		return err
	}

	s.conn = conn
	s.msgCh = make(chan TopicMessage, subscriberSendBuffer)
	s.closed = make(chan struct{})
	go s.recvLoop()
	return nil
}

func (s *Subscriber) recvLoop() {
	defer close(s.msgCh)
	for {
		topic, err := readFrame(s.conn)
		if err != nil {
			return
		}
		payload, err := readFrame(s.conn)
		if err != nil {
			return
		}
		f, err := wire.Decode(payload)
		if err != nil {
			continue
		}
		select {
		case s.msgCh <- TopicMessage{Topic: string(topic), Frame: f}:
		case <-s.closed:
			return
		}
	}
}

// Messages returns the channel of delivered topic frames.
func (s *Subscriber) Messages() <-chan TopicMessage {
	return s.msgCh
}

// Close tears down the subscriber connection.
func (s *Subscriber) Close() error {
	if s.closed != nil {
		close(s.closed)
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

package netsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/locogo/server/internal/command"
	"github.com/locogo/server/internal/company"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("netsync closed")

// Remote is a command received from a peer, ready for the input phase.
type Remote struct {
	Peer    string
	Company company.ID
	Inv     command.Invocation
}

type Options struct {
	Name         string // announced in the hello frame
	InQueueSize  int
	OutQueueSize int
	WriteTimeout time.Duration
}

// Sync broadcasts local top-level commits to every connected peer before
// they execute, and queues peer commits for the game loop. Sub-commands are
// never sent: they are deterministic consequences of their parent.
type Sync struct {
	table *command.Table
	opts  Options
	log   *zap.Logger

	upgrader websocket.Upgrader
	inbox    chan Remote

	mu     sync.Mutex
	out    chain
	peers  map[*peer]struct{}
	closed bool
	wg     sync.WaitGroup
}

type peer struct {
	name string
	conn *websocket.Conn
	out  chan []byte
	once sync.Once
	done chan struct{}
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

func New(table *command.Table, opts Options, log *zap.Logger) *Sync {
	if opts.InQueueSize <= 0 {
		opts.InQueueSize = 256
	}
	if opts.OutQueueSize <= 0 {
		opts.OutQueueSize = 256
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &Sync{
		table: table,
		opts:  opts,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		inbox: make(chan Remote, opts.InQueueSize),
		peers: make(map[*peer]struct{}),
	}
}

// Inbox delivers peer commands in arrival order.
func (s *Sync) Inbox() <-chan Remote { return s.inbox }

// Peers returns the number of connected peers.
func (s *Sync) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Submit frames a local top-level commit and queues it to every peer.
// A peer whose queue is full is disconnected rather than stalling the game.
func (s *Sync) Submit(c company.ID, inv command.Invocation) error {
	var args json.RawMessage
	if inv.Args != nil {
		b, err := json.Marshal(inv.Args)
		if err != nil {
			return fmt.Errorf("encode %s args: %w", inv.Kind, err)
		}
		args = b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	f := Frame{
		Type:    TypeCommand,
		Kind:    inv.Kind.String(),
		Company: c,
		Flags:   inv.Flags,
		Args:    args,
	}
	s.out.seal(&f)
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	for p := range s.peers {
		select {
		case p.out <- b:
		default:
			s.log.Warn("同步佇列已滿，中斷連線", zap.String("peer", p.name))
			delete(s.peers, p)
			p.close()
		}
	}
	s.log.Debug("已廣播指令", zap.Uint64("seq", f.Seq), zap.String("kind", f.Kind))
	return nil
}

// Handler accepts peer connections.
func (s *Sync) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		s.serve(r.Context(), conn)
	}
}

// Dial connects to a peer and serves the connection in the background.
func (s *Sync) Dial(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.serve(context.Background(), conn)
	}()
	return nil
}

// serve runs the handshake, the writer goroutine and the reader loop of one
// peer connection until either side fails.
func (s *Sync) serve(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	name, err := s.handshake(conn)
	if err != nil {
		s.log.Warn("同步握手失敗", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
		return
	}
	p := &peer{name: name, conn: conn, out: make(chan []byte, s.opts.OutQueueSize), done: make(chan struct{})}
	defer p.close()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.peers[p] = struct{}{}
	s.mu.Unlock()
	s.log.Info("同步節點已連線", zap.String("peer", name))

	defer func() {
		s.mu.Lock()
		delete(s.peers, p)
		s.mu.Unlock()
		s.log.Info("同步節點已離線", zap.String("peer", name))
	}()

	// Writer goroutine.
	go func() {
		for {
			select {
			case <-p.done:
				return
			case b := <-p.out:
				_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					p.close()
					return
				}
			}
		}
	}()

	// Reader loop.
	var in chain
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		if err := json.Unmarshal(msg, &f); err != nil || f.Type != TypeCommand {
			continue
		}
		if err := in.verify(&f); err != nil {
			s.log.Error("同步校驗失敗，中斷連線", zap.String("peer", name), zap.Error(err))
			return
		}
		r, err := s.decode(name, &f)
		if err != nil {
			s.log.Error("無法解碼同步指令", zap.String("peer", name), zap.Error(err))
			return
		}
		select {
		case s.inbox <- r:
		case <-ctx.Done():
			return
		case <-p.done:
			return
		}
	}
}

func (s *Sync) handshake(conn *websocket.Conn) (string, error) {
	hello, _ := json.Marshal(Frame{Type: TypeHello, Version: ProtocolVersion, Name: s.opts.Name, Company: company.Null})
	_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		return "", err
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", err
	}
	_ = conn.SetReadDeadline(time.Time{})
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return "", err
	}
	if f.Type != TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected hello"), time.Now().Add(time.Second))
		return "", fmt.Errorf("expected hello, got %q", f.Type)
	}
	if f.Version != ProtocolVersion {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad version"), time.Now().Add(time.Second))
		return "", fmt.Errorf("protocol version %d, want %d", f.Version, ProtocolVersion)
	}
	if f.Name == "" {
		f.Name = conn.RemoteAddr().String()
	}
	return f.Name, nil
}

// decode turns a verified frame into an invocation using the command's own
// argument decoder. Settlement-skipping flags never survive the wire.
func (s *Sync) decode(peerName string, f *Frame) (Remote, error) {
	kind, err := command.ParseKind(f.Kind)
	if err != nil {
		return Remote{}, err
	}
	desc, ok := s.table.Lookup(kind)
	if !ok {
		return Remote{}, fmt.Errorf("kind %s not in table", kind)
	}
	args, err := desc.DecodeArgs(f.Args)
	if err != nil {
		return Remote{}, fmt.Errorf("decode %s args: %w", kind, err)
	}
	return Remote{
		Peer:    peerName,
		Company: f.Company,
		Inv:     command.Invocation{Kind: kind, Flags: f.Flags.External(), Args: args},
	}, nil
}

// Close disconnects every peer and rejects further submissions.
func (s *Sync) Close() {
	s.mu.Lock()
	s.closed = true
	for p := range s.peers {
		p.close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

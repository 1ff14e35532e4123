package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// TCPConfig controls the TCP keepalive and I/O deadlines applied to a
// connection dialed with DialTCP.
type TCPConfig struct {
	KeepAlive     time.Duration
	ReadDeadline  time.Duration
	WriteDeadline time.Duration
}

// DefaultTCPConfig returns the configuration DialTCP uses when none is
// supplied.
func DefaultTCPConfig() *TCPConfig {
	return &TCPConfig{
		KeepAlive:     30 * time.Second,
		ReadDeadline:  60 * time.Second,
		WriteDeadline: 30 * time.Second,
	}
}

// tcpStream wraps a net.Conn with activity/byte-count bookkeeping
// (LastActivity, BytesRead, BytesWritten); the engine's keep-alive timer
// keeps its own activity clock and does not read these. It deliberately carries none of a
// broker connection's TLS, metadata, or pool-membership state.
type tcpStream struct {
	conn          net.Conn
	lastActivity  atomic.Int64
	readDeadline  time.Duration
	writeDeadline time.Duration
	bytesRead     atomic.Uint64
	bytesWritten  atomic.Uint64

	closeOnce sync.Once
	closeCh   chan struct{}
}

// DialTCP opens a TCP connection to addr using DefaultTCPConfig.
func DialTCP(ctx context.Context, addr string) (Stream, error) {
	return DialTCPWithConfig(ctx, addr, DefaultTCPConfig())
}

// DialTCPWithConfig opens a TCP connection to addr, applying cfg's
// keepalive and deadline settings.
func DialTCPWithConfig(ctx context.Context, addr string, cfg *TCPConfig) (Stream, error) {
	if cfg == nil {
		cfg = DefaultTCPConfig()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &tcpStream{
		conn:          conn,
		readDeadline:  cfg.ReadDeadline,
		writeDeadline: cfg.WriteDeadline,
		closeCh:       make(chan struct{}),
	}
	s.updateActivity()

	if cfg.KeepAlive > 0 {
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetKeepAlive(true)
			_ = tcpConn.SetKeepAlivePeriod(cfg.KeepAlive)
		}
	}

	return s, nil
}

func (s *tcpStream) Read(b []byte) (int, error) {
	if s.readDeadline > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.readDeadline))
	}
	n, err := s.conn.Read(b)
	if n > 0 {
		s.bytesRead.Add(uint64(n))
		s.updateActivity()
	}
	return n, err
}

func (s *tcpStream) Write(b []byte) (int, error) {
	if s.writeDeadline > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeDeadline))
	}
	n, err := s.conn.Write(b)
	if n > 0 {
		s.bytesWritten.Add(uint64(n))
		s.updateActivity()
	}
	return n, err
}

func (s *tcpStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		err = s.conn.Close()
	})
	return err
}

func (s *tcpStream) updateActivity() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *tcpStream) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *tcpStream) BytesRead() uint64 {
	return s.bytesRead.Load()
}

func (s *tcpStream) BytesWritten() uint64 {
	return s.bytesWritten.Load()
}

var (
	_ Stream = (*tcpStream)(nil)
	_ Closer = (*tcpStream)(nil)
)

package tcpserver

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/npdstracker/internal/logger"
	"github.com/MrSnakeDoc/npdstracker/internal/metrics"
	"github.com/MrSnakeDoc/npdstracker/internal/protocol"
	"github.com/MrSnakeDoc/npdstracker/internal/utils"
)

// DefaultIdleTimeout bounds how long a client may take to send its command.
const DefaultIdleTimeout = 20 * time.Second

// acceptBackoff is the pause after a failed Accept.
const acceptBackoff = 100 * time.Millisecond

// maxCommandLine is the longest command line a client may send, terminator
// included. It is also the size of the connection read buffer.
const maxCommandLine = 4096

var errLineTooLong = errors.New("command line too long")

// Handler executes one command line.
type Handler interface {
	Handle(ctx context.Context, line string, s *protocol.Session)
}

// Server accepts NPDS clients on every configured port. Each connection gets
// its own goroutine, sends one command line and is closed once the reply is
// written.
type Server struct {
	host        string
	ports       []int
	handler     Handler
	logger      logger.Logger
	idleTimeout time.Duration

	mu        sync.Mutex
	listeners []boundListener
}

type boundListener struct {
	net.Listener
	port int
}

// New creates a server listening on host (all interfaces when empty) for
// every port. A zero idleTimeout uses DefaultIdleTimeout.
func New(host string, ports []int, h Handler, log logger.Logger, idleTimeout time.Duration) *Server {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Server{
		host:        host,
		ports:       ports,
		handler:     h,
		logger:      log,
		idleTimeout: idleTimeout,
	}
}

// Listen binds every configured port and returns how many could be bound.
// A port that cannot be bound is logged and skipped.
func (s *Server) Listen() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, port := range s.ports {
		addr := net.JoinHostPort(s.host, strconv.Itoa(port))
		l, err := net.Listen("tcp", addr)
		if err != nil {
			s.logger.Error("failed to bind port, skipping it",
				logger.String("addr", addr),
				logger.Error(err))
			continue
		}
		bound := l.Addr().(*net.TCPAddr).Port
		s.listeners = append(s.listeners, boundListener{Listener: l, port: bound})
		s.logger.Info("listening for NPDS clients", logger.String("addr", l.Addr().String()))
	}

	if len(s.listeners) == 0 {
		s.logger.Error("no port could be bound, the tracker is unreachable")
	}
	return len(s.listeners)
}

// Addrs returns the bound listener addresses.
func (s *Server) Addrs() []net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]net.Addr, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l.Addr())
	}
	return out
}

// Serve accepts connections on the bound listeners until ctx is done. The
// listeners are closed on return; connections in flight are not waited for.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	listeners := append([]boundListener(nil), s.listeners...)
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		for _, l := range listeners {
			utils.Close(l)
		}
		return nil
	})
	for _, l := range listeners {
		g.Go(func() error {
			return s.acceptLoop(gctx, l)
		})
	}
	return g.Wait()
}

func (s *Server) acceptLoop(ctx context.Context, l boundListener) error {
	portLabel := strconv.Itoa(l.port)
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept failed", logger.Int("port", l.port), logger.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(acceptBackoff):
			}
			continue
		}

		metrics.ConnectionsTotal.WithLabelValues(portLabel).Inc()
		go s.serveConn(ctx, conn, l.port)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn, port int) {
	defer utils.Close(conn)

	sess := &protocol.Session{
		ID:        uuid.NewString(),
		Remote:    conn.RemoteAddr().String(),
		LocalPort: port,
		In:        bufio.NewReaderSize(conn, maxCommandLine),
		Out:       bufio.NewWriter(conn),
		Conn:      conn,
	}
	_ = conn.SetDeadline(time.Now().Add(s.idleTimeout))

	line, err := readCommandLine(sess.In)
	switch {
	case errors.Is(err, errLineTooLong):
		// An empty line gets the bad syntax reply.
		s.logger.Info("command line too long",
			logger.String("session", sess.ID),
			logger.String("remote", sess.Remote))
		line = ""
	case err != nil && line == "":
		s.logger.Debug("connection closed before a command was sent",
			logger.String("session", sess.ID),
			logger.String("remote", sess.Remote),
			logger.Error(err))
		return
	}

	s.logger.Debug("connection accepted",
		logger.String("session", sess.ID),
		logger.String("remote", sess.Remote),
		logger.Int("port", port))

	s.handler.Handle(ctx, line, sess)
	if err := sess.Out.Flush(); err != nil {
		s.logger.Debug("failed to write reply",
			logger.String("session", sess.ID),
			logger.Error(err))
	}
}

// readCommandLine reads the first line of a connection without its
// terminator. Lines that do not fit in r's buffer are refused with
// errLineTooLong. Input ending without a newline is returned with the read
// error.
func readCommandLine(r *bufio.Reader) (string, error) {
	b, err := r.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return "", errLineTooLong
	}
	return strings.TrimRight(string(b), "\r\n"), err
}

package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/idna"

	"github.com/MrSnakeDoc/npdstracker/internal/metrics"
	"github.com/MrSnakeDoc/npdstracker/internal/utils"
	"github.com/MrSnakeDoc/npdstracker/internal/version"
)

const (
	// DefaultTimeout bounds the connect, write and read of one probe.
	DefaultTimeout = 20 * time.Second

	// replyBudget is how much of the reply is inspected.
	replyBudget = 512

	confirmPath = "/traq/confirm.ns"
)

// Outcomes of a probe, also used as metric labels.
const (
	ResultUp    = "up"
	ResultEmpty = "empty"
	ResultBad   = "bad_reply"
	ResultError = "error"
)

// Result describes one probe.
type Result struct {
	Up     bool
	Reason string
}

// Prober health checks NPDS servers by requesting their confirmation page.
type Prober struct {
	timeout   time.Duration
	userAgent string
	dialer    net.Dialer
}

// New creates a prober. A zero timeout uses DefaultTimeout.
func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{
		timeout:   timeout,
		userAgent: version.UserAgent(),
	}
}

// Probe connects to host:port, sends the confirmation request and looks for
// "202" anywhere in the first bytes of the reply. A connection or read error
// is returned alongside a non-up result.
func (p *Prober) Probe(ctx context.Context, host string, port int) (Result, error) {
	start := time.Now()
	res, err := p.probe(ctx, host, port)
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())
	metrics.ProbesTotal.WithLabelValues(res.Reason).Inc()
	return res, err
}

func (p *Prober) probe(ctx context.Context, host string, port int) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// Records keep the host as registered; dial its ASCII form.
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}

	conn, err := p.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return Result{Reason: ResultError}, fmt.Errorf("dial: %w", err)
	}
	defer utils.Close(conn)

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req := "GET " + confirmPath + " HTTP/1.0\r\n" +
		"Host: " + host + "\r\n" +
		"User-Agent: " + p.userAgent + "\r\n" +
		"Accept: text/x-npds\r\n" +
		"\r\n"
	if _, err := io.WriteString(conn, req); err != nil {
		return Result{Reason: ResultError}, fmt.Errorf("write request: %w", err)
	}

	buf := make([]byte, replyBudget)
	n, err := io.ReadFull(conn, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Result{Reason: ResultError}, fmt.Errorf("read reply: %w", err)
	}

	return Classify(buf[:n]), nil
}

// Classify interprets the captured reply bytes.
func Classify(reply []byte) Result {
	switch {
	case len(reply) == 0 || reply[0] == 0:
		return Result{Reason: ResultEmpty}
	case bytes.Contains(reply, []byte("202")):
		return Result{Up: true, Reason: ResultUp}
	default:
		return Result{Reason: ResultBad}
	}
}

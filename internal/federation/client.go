package federation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/MrSnakeDoc/npdstracker/internal/domain"
	"github.com/MrSnakeDoc/npdstracker/internal/logger"
	"github.com/MrSnakeDoc/npdstracker/internal/metrics"
	"github.com/MrSnakeDoc/npdstracker/internal/registry"
	"github.com/MrSnakeDoc/npdstracker/internal/utils"
)

// DefaultTimeout bounds one SHARE exchange with a peer.
const DefaultTimeout = 20 * time.Second

// maxReply caps how much of a SHARE reply is read.
const maxReply = 1 << 20

// ErrBadReply is returned when a peer answers SHARE with anything but 200 OK,
// which is how a peer with sharing disabled replies.
var ErrBadReply = errors.New("peer did not answer 200 OK")

// Field prefixes of a SHARE record line.
const (
	prefixAddress     = "Address: "
	prefixVerified    = "Last Verified: "
	prefixStatus      = "Status: "
	prefixDescription = "Description: "
)

// Client pulls SHARE records from peer trackers.
type Client struct {
	logger  logger.Logger
	timeout time.Duration
	dialer  net.Dialer
}

// New creates a federation client. A zero timeout uses DefaultTimeout.
func New(log logger.Logger, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{logger: log, timeout: timeout}
}

// Merge fetches every peer in order and inserts the records whose name is not
// yet in reg as federated records. It returns the number of imported records.
// Unreachable peers are logged and skipped.
func (c *Client) Merge(ctx context.Context, reg *registry.Registry, peers []domain.PeerTracker) int {
	imported := 0
	for _, peer := range peers {
		if ctx.Err() != nil {
			break
		}

		recs, err := c.Fetch(ctx, peer)
		if err != nil {
			c.logger.Warn("not getting any records from peer tracker",
				logger.String("peer", peer.Addr()),
				logger.Error(err))
			continue
		}
		if len(recs) == 0 {
			c.logger.Info("peer tracker has no records", logger.String("peer", peer.Addr()))
			continue
		}

		for _, rec := range recs {
			if err := reg.Insert(rec); err != nil {
				c.logger.Info("duplicate share record, not adding",
					logger.String("peer", peer.Addr()),
					logger.String("name", rec.Name))
				continue
			}
			imported++
		}
	}

	if imported > 0 {
		metrics.FederatedRecordsImported.Add(float64(imported))
	}
	return imported
}

// Fetch sends SHARE to peer and parses its reply.
func (c *Client) Fetch(ctx context.Context, peer domain.PeerTracker) ([]domain.HostRecord, error) {
	recs, err := c.fetch(ctx, peer)
	status := "ok"
	switch {
	case errors.Is(err, ErrBadReply):
		status = "bad_reply"
	case err != nil:
		status = "error"
	}
	metrics.FederationFetchesTotal.WithLabelValues(status).Inc()
	return recs, err
}

func (c *Client) fetch(ctx context.Context, peer domain.PeerTracker) ([]domain.HostRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("making SHARE connection", logger.String("peer", peer.Addr()))
	conn, err := c.dialer.DialContext(ctx, "tcp", peer.Addr())
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	defer utils.Close(conn)

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := io.WriteString(conn, "SHARE\r\n"); err != nil {
		return nil, fmt.Errorf("send SHARE: %w", err)
	}

	body, err := io.ReadAll(io.LimitReader(conn, maxReply))
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}

	return c.Parse(string(body))
}

// Parse decodes a SHARE reply. Malformed record lines are logged and
// skipped; parsing stops at the no-entries marker.
func (c *Client) Parse(reply string) ([]domain.HostRecord, error) {
	if !strings.HasPrefix(reply, "200 OK") {
		return nil, ErrBadReply
	}

	var recs []domain.HostRecord
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimRight(line, "\r")
		fields := strings.FieldsFunc(line, func(r rune) bool { return r == '\t' })
		if len(fields) == 0 {
			continue
		}
		if strings.HasPrefix(fields[0], "no-entries") {
			break
		}
		if strings.HasPrefix(fields[0], "200 OK") {
			continue
		}

		rec, ok := parseRecord(fields)
		if !ok {
			c.logger.Warn("malformed share record", logger.String("line", line))
			continue
		}
		c.logger.Debug("share record",
			logger.String("name", rec.Name),
			logger.String("last_verified", rec.LastValidation),
			logger.String("status", rec.Status.ShareLabel()))
		recs = append(recs, rec)
	}
	return recs, nil
}

func parseRecord(fields []string) (domain.HostRecord, bool) {
	if len(fields) < 4 {
		return domain.HostRecord{}, false
	}
	name, ok1 := strings.CutPrefix(fields[0], prefixAddress)
	verified, ok2 := strings.CutPrefix(fields[1], prefixVerified)
	status, ok3 := strings.CutPrefix(fields[2], prefixStatus)
	desc, ok4 := strings.CutPrefix(fields[3], prefixDescription)
	if !ok1 || !ok2 || !ok3 || !ok4 || name == "" {
		return domain.HostRecord{}, false
	}

	rec := domain.HostRecord{
		Name:           name,
		Port:           domain.DefaultHostPort,
		Description:    desc,
		LastValidation: verified,
		Status:         domain.FederatedUp(),
	}
	if status == "DOWN" {
		rec.Status = domain.FederatedDown()
	}
	if host, port, hasPort, ok := domain.SplitName(name); ok {
		rec.Host = host
		if hasPort {
			if p, err := domain.ParsePort(port); err == nil {
				rec.Port = p
			}
		}
	}
	return rec, true
}

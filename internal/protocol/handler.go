package protocol

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
	"unicode"

	"golang.org/x/net/idna"

	"github.com/MrSnakeDoc/npdstracker/internal/domain"
	"github.com/MrSnakeDoc/npdstracker/internal/logger"
	"github.com/MrSnakeDoc/npdstracker/internal/metrics"
	"github.com/MrSnakeDoc/npdstracker/internal/state"
	"github.com/MrSnakeDoc/npdstracker/internal/version"
)

// Resolver looks up the addresses of a registering host. *net.Resolver
// satisfies it.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// Saver persists the registry after a mutation.
type Saver interface {
	Save(ctx context.Context)
}

// Trigger queues an immediate validation pass. It reports false when one is
// already queued.
type Trigger interface {
	Trigger() bool
}

// Session is the connection a command line arrived on. In holds whatever the
// client sends after the command line (HTTP headers, admin console input).
// Conn is nil when replaying the command log.
type Session struct {
	ID        string
	Remote    string
	LocalPort int
	In        *bufio.Reader
	Out       *bufio.Writer
	Conn      net.Conn
}

// Options are the optional collaborators of a Handler.
type Options struct {
	Resolver Resolver
	Trigger  Trigger
	Halt     func()
	Now      func() time.Time
}

// Handler executes protocol command lines against the tracker state.
type Handler struct {
	state    *state.TrackerState
	saver    Saver
	resolver Resolver
	trigger  Trigger
	halt     func()
	now      func() time.Time
	logger   logger.Logger
}

// NewHandler creates a Handler. Missing options default to the system
// resolver, no manual validation, no halt and time.Now.
func NewHandler(st *state.TrackerState, saver Saver, log logger.Logger, opts Options) *Handler {
	h := &Handler{
		state:    st,
		saver:    saver,
		resolver: opts.Resolver,
		trigger:  opts.Trigger,
		halt:     opts.Halt,
		now:      opts.Now,
		logger:   log,
	}
	if h.resolver == nil {
		h.resolver = net.DefaultResolver
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.halt == nil {
		h.halt = func() {}
	}
	return h
}

// SetTrigger installs the validation trigger used by the VTEST admin command.
func (h *Handler) SetTrigger(t Trigger) { h.trigger = t }

// Handle processes one command line and writes the reply to s.Out. The
// caller flushes s.Out once Handle returns.
func (h *Handler) Handle(ctx context.Context, line string, s *Session) {
	fields := strings.Fields(line)
	cmd := "EMPTY"
	if len(fields) > 0 {
		cmd = strings.ToUpper(fields[0])
	}

	var (
		code int
		err  error
	)
	switch cmd {
	case "ABOUT":
		code = h.about(s.Out)
	case "REGUP":
		code, err = h.regup(ctx, line, fields, s.Out)
	case "REGDN":
		code, err = h.regdn(ctx, fields, s.Out)
	case "QUERY":
		code = h.query(s.Out)
	case "SHARE":
		code, err = h.share(s.Out)
	case "GET":
		code, err = h.get(fields, s)
	case "ADMIN":
		code, err = h.admin(fields, s)
	default:
		h.logger.Debug("bad syntax", logger.String("line", line))
		cmd = "UNKNOWN"
		err = domain.ErrBadSyntax
	}

	if err != nil {
		code = writeError(s.Out, err)
		h.logger.Info("command refused",
			logger.String("command", cmd),
			logger.String("session", s.ID),
			logger.Int("code", code),
			logger.Error(err))
	}
	metrics.CommandsTotal.WithLabelValues(cmd, fmt.Sprint(code)).Inc()
}

// Replay feeds a command log line through Handle with the reply discarded.
func (h *Handler) Replay(ctx context.Context, line string) {
	s := &Session{
		ID:  "replay",
		In:  bufio.NewReader(strings.NewReader("")),
		Out: bufio.NewWriter(io.Discard),
	}
	h.Handle(ctx, line, s)
}

func (h *Handler) about(w io.Writer) int {
	h.logger.Debug("processing ABOUT command")
	writeCode(w, CodeOK, "")
	h.writeAbout(w)
	return CodeOK
}

func (h *Handler) writeAbout(w io.Writer) {
	set := h.state.Settings
	fmt.Fprintf(w, "protocol: %d\r\n", version.Protocol)
	fmt.Fprintf(w, "period: %d\r\n", set.ValidateTime())
	fmt.Fprintf(w, "tries: %d\r\n", set.ValidateTries())
	fmt.Fprintf(w, "share: %t\r\n", set.ShareEnabled())
	fmt.Fprintf(w, "about: %s\r\n", version.About())
}

func (h *Handler) regup(ctx context.Context, line string, fields []string, w io.Writer) (int, error) {
	if len(fields) < 3 {
		return 0, domain.ErrBadSyntax
	}
	name := fields[1]
	desc := description(line, fields[0], name)

	if name == "NPDS/TP" {
		h.logger.Info("v2 command received, not supported")
		return 0, domain.ErrUnsupportedVersion
	}
	if h.state.Registry.Contains(name) {
		h.logger.Info("host already registered", logger.String("name", name))
		return 0, domain.ErrDuplicateKey
	}

	rec, err := h.newRecord(ctx, name, desc)
	if err != nil {
		return 0, err
	}
	if err := h.state.Registry.Insert(rec); err != nil {
		return 0, err
	}
	h.state.Registered()
	h.saver.Save(ctx)

	h.logger.Info("host registered",
		logger.String("name", name),
		logger.String("description", desc),
		logger.Int("hosts", h.state.Registry.Len()))
	writeCode(w, CodeOK, "")
	return CodeOK, nil
}

// newRecord runs the host and port checks of a registration.
func (h *Handler) newRecord(ctx context.Context, name, desc string) (domain.HostRecord, error) {
	host, portToken, hasPort, ok := domain.SplitName(name)
	if !ok {
		return domain.HostRecord{}, domain.ErrInvalidHost
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		h.logger.Info("host name is not valid", logger.String("host", host), logger.Error(err))
		return domain.HostRecord{}, domain.ErrInvalidHost
	}
	ips, err := h.resolver.LookupIP(ctx, "ip", ascii)
	if err != nil || len(ips) == 0 {
		h.logger.Info("host does not resolve", logger.String("host", ascii), logger.Error(err))
		return domain.HostRecord{}, domain.ErrInvalidHost
	}

	allowed := h.state.Info.PrivateHostToAccept
	if err := domain.CheckAddresses(host, allowed, ips); err != nil {
		return domain.HostRecord{}, err
	}
	if allowed != "" && host == allowed {
		h.logger.Info("private host registered", logger.String("host", host))
	}

	port := domain.DefaultHostPort
	if hasPort {
		port, err = domain.ParsePort(portToken)
		if err != nil {
			h.logger.Info("host not inserted, bad port",
				logger.String("name", name),
				logger.String("port", portToken))
			return domain.HostRecord{}, err
		}
	}

	return domain.HostRecord{
		Name:           name,
		Host:           host,
		Port:           port,
		Description:    desc,
		LastValidation: domain.FormatTime(h.now()),
		Status:         domain.Healthy(),
	}, nil
}

// description returns the text following the command keyword and the name,
// with its leading blanks removed.
func description(line, keyword, name string) string {
	rest := strings.TrimLeftFunc(line, unicode.IsSpace)
	rest = strings.TrimPrefix(rest, keyword)
	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	rest = strings.TrimPrefix(rest, name)
	return strings.TrimLeftFunc(rest, unicode.IsSpace)
}

func (h *Handler) regdn(ctx context.Context, fields []string, w io.Writer) (int, error) {
	if len(fields) != 2 {
		return 0, domain.ErrBadSyntax
	}
	name := fields[1]
	if !h.state.Registry.Remove(name) {
		return 0, domain.ErrNotRegistered
	}
	h.saver.Save(ctx)

	h.logger.Info("host removed",
		logger.String("name", name),
		logger.Int("hosts", h.state.Registry.Len()))
	writeCode(w, CodeOK, "")
	return CodeOK, nil
}

func (h *Handler) query(w io.Writer) int {
	writeCode(w, CodeNPDSOK, "")
	for _, r := range h.state.Registry.Snapshot() {
		fmt.Fprintf(w, "%s %s %s %d\r\n", r.Name, r.Description, r.LastValidation, r.Status.Code())
	}
	return CodeNPDSOK
}

func (h *Handler) share(w io.Writer) (int, error) {
	if !h.state.Settings.ShareEnabled() {
		return 0, domain.ErrForbidden
	}

	writeCode(w, CodeOK, "")
	n := 0
	for _, r := range h.state.Registry.Snapshot() {
		if r.Federated() {
			continue
		}
		fmt.Fprintf(w, "Address: %s\tLast Verified: %s\tStatus: %s\tDescription: %s\r\n",
			r.Name, r.LastValidation, r.Status.ShareLabel(), r.Description)
		n++
	}
	if n == 0 {
		fmt.Fprintf(w, "%s\r\n", NoEntries)
	}
	return CodeOK, nil
}

func (h *Handler) admin(fields []string, s *Session) (int, error) {
	if len(fields) < 2 || fields[1] != h.state.Settings.AdminPass() {
		h.logger.Warn("incorrect admin password", logger.String("remote", s.Remote))
		return 0, domain.ErrIncorrectPassword
	}

	h.logger.Info("admin session opened", logger.String("session", s.ID), logger.String("remote", s.Remote))
	h.console(s)
	h.logger.Info("admin session closed", logger.String("session", s.ID))
	return CodeOK, nil
}

package protocol

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/npdstracker/internal/domain"
	"github.com/MrSnakeDoc/npdstracker/internal/logger"
)

const adminHelp = "Valid commands are:\r\n" +
	"\r\n" +
	"ABOUT     Display the current tracker settings\r\n" +
	"HALT      Stop the tracker (with confirmation)\r\n" +
	"HELP      Displays this list of commands\r\n" +
	"LOGS      Dumps the tracker log\r\n" +
	"SHARE     Change the tracker share settings\r\n" +
	"SLIST     View or modify the list of trackers to obtain shared records from\r\n" +
	"VTEST     Trigger a tracker validation\r\n" +
	"STATS     Display the tracker statistics\r\n" +
	"VERIFY    Change the tracker verification settings\r\n" +
	"QUIT      Exit the administration interface and close the connection\r\n"

// console runs the interactive admin sub-protocol until QUIT, a confirmed
// HALT or the end of the input. The idle timeout is lifted for its duration.
func (h *Handler) console(s *Session) {
	if s.Conn != nil {
		_ = s.Conn.SetDeadline(time.Time{})
	}

	c := &console{h: h, in: s.In, out: s.Out}
	c.printf("Welcome to the NPDS Tracker Server administration interface! (Type HELP for command reference.)\r\n")

	for {
		c.printf("> ")
		line, ok := c.readLine()
		if !ok {
			return
		}
		if done := c.exec(strings.ToUpper(strings.TrimSpace(line))); done {
			return
		}
	}
}

type console struct {
	h   *Handler
	in  *bufio.Reader
	out *bufio.Writer
}

func (c *console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
	_ = c.out.Flush()
}

// readLine returns the next input line without its terminator. ok is false
// once the input is exhausted.
func (c *console) readLine() (string, bool) {
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimRight(line, "\r\n"), true
}

// prompt prints question and reads the answer.
func (c *console) prompt(question string) (string, bool) {
	c.printf("%s", question)
	answer, ok := c.readLine()
	return strings.TrimSpace(answer), ok
}

// exec runs one console command and reports whether the session is over.
func (c *console) exec(cmd string) bool {
	switch cmd {
	case "HELP":
		c.printf("%s", adminHelp)
	case "QUIT":
		c.printf("Goodbye!\r\n")
		return true
	case "ABOUT":
		c.h.writeAbout(c.out)
		_ = c.out.Flush()
	case "HALT":
		return c.haltCmd()
	case "LOGS":
		c.logs()
	case "SHARE":
		c.shareCmd()
	case "SLIST":
		c.slist()
	case "VTEST":
		c.vtest()
	case "STATS":
		st := c.h.state
		c.printf("Pages served: %d\r\n", st.Hits())
		c.printf("REGUP commands processed: %d\r\n", st.Registrations())
		c.printf("NPDS clients currently registered: %d\r\n", st.Registry.Len())
	case "VERIFY":
		c.verify()
	default:
		c.printf("Invalid command. (Type HELP for command reference.)\r\n")
	}
	return false
}

func (c *console) haltCmd() bool {
	answer, ok := c.prompt("Are you sure? (y/n)\r\n")
	if !ok || !strings.HasPrefix(strings.ToLower(answer), "y") {
		return !ok
	}
	c.h.logger.Warn("tracker shutting down via administration interface")
	c.printf("Tracker shutting down.\r\n")
	c.h.halt()
	return true
}

func (c *console) logs() {
	path := c.h.state.Info.LogFile
	if path == "" {
		c.printf("Sorry, logs can only be read remotely if they are being written to a file. (They aren't.)\r\n")
		return
	}
	if _, ok := c.prompt("Start your terminal capture feature, then hit enter.\r\n"); !ok {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		c.h.logger.Error("failed to read log file", logger.String("path", path), logger.Error(err))
		c.printf("Unable to read the log file.\r\n")
		return
	}
	for _, l := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		fmt.Fprintf(c.out, "%s\r\n", strings.TrimRight(l, "\r"))
	}
	_ = c.out.Flush()
}

func (c *console) shareCmd() {
	set := c.h.state.Settings
	if set.ShareEnabled() {
		c.printf("Sharing is currently enabled (TRUE)\r\n")
	} else {
		c.printf("Sharing is currently disabled (FALSE)\r\n")
	}

	answer, _ := c.prompt("Set sharing (TRUE/FALSE): ")
	switch {
	case strings.HasPrefix(strings.ToUpper(answer), "T"):
		set.SetShareEnabled(true)
		c.printf("Sharing is enabled\r\n")
	case strings.HasPrefix(strings.ToUpper(answer), "F"):
		set.SetShareEnabled(false)
		c.printf("Sharing is disabled\r\n")
	default:
		c.printf("Sharing setting unchanged\r\n")
	}
}

func (c *console) slist() {
	peers := c.h.state.Peers
	c.printf("NPDS Trackers to get SHARE records from:\r\n")
	for i, p := range peers.Snapshot() {
		c.printf("%d: %s\r\n", i, p)
	}

	answer, ok := c.prompt("Add or delete a record? (A/D): ")
	if !ok {
		return
	}
	switch {
	case strings.HasPrefix(strings.ToUpper(answer), "A"):
		host, ok := c.prompt("Enter host: ")
		if !ok || host == "" {
			c.printf("No host given, list unchanged\r\n")
			return
		}
		port, _ := c.prompt(fmt.Sprintf("Enter port: (Leave empty for %d) ", domain.DefaultPeerPort))
		if port == "" {
			port = strconv.Itoa(domain.DefaultPeerPort)
		}
		peers.Add(domain.PeerTracker{Host: host, Port: port})
		c.h.logger.Info("peer tracker added", logger.String("peer", host+":"+port))
	case strings.HasPrefix(strings.ToUpper(answer), "D"):
		answer, _ := c.prompt("Enter number to delete: ")
		i, err := strconv.Atoi(answer)
		if err != nil || !peers.RemoveAt(i) {
			c.printf("Invalid record number, list unchanged\r\n")
			return
		}
		c.h.logger.Info("peer tracker removed", logger.Int("index", i))
	}
}

func (c *console) vtest() {
	if c.h.trigger == nil {
		c.printf("Validation is not running on this tracker\r\n")
		return
	}
	if c.h.trigger.Trigger() {
		c.printf("Client validation test started\r\n")
		return
	}
	c.printf("A client validation test is already queued\r\n")
}

func (c *console) verify() {
	set := c.h.state.Settings
	c.printf("Tracker verifies every %d minutes\r\n", set.ValidateTime())
	c.printf("Verification is attempted %d times\r\n", set.ValidateTries())

	answer, ok := c.prompt("Edit settings? ")
	if !ok || !strings.HasPrefix(strings.ToUpper(answer), "Y") {
		return
	}

	period, _ := c.prompt("Enter delay between verification attempts: ")
	p, err := strconv.Atoi(period)
	if err != nil || p < 1 {
		c.printf("Invalid delay, settings unchanged\r\n")
		return
	}
	tries, _ := c.prompt("Enter number of verification attempts: ")
	n, err := strconv.Atoi(tries)
	if err != nil || n < 0 {
		c.printf("Invalid number of attempts, settings unchanged\r\n")
		return
	}

	set.SetVerification(p, n)
	c.h.logger.Info("verification settings changed",
		logger.Int("validate_time", p),
		logger.Int("validate_tries", n))
}

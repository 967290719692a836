package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/npdstracker/internal/domain"
)

const (
	// DefaultPort is the NPDS tracker port.
	DefaultPort = domain.DefaultPeerPort
	// DefaultOptionsFile is read when present and no -o flag is given.
	DefaultOptionsFile = "npdstracker.ini"
	// DefaultCmdFile is the command log replayed at startup and rewritten on save.
	DefaultCmdFile = "npdscmd.txt"
)

// ErrHelp is returned by Load when -h was requested and usage was printed.
var ErrHelp = errors.New("help requested")

type Config struct {
	Ports           []int         // tracker listening ports (ex: 3680)
	ShutdownTimeout time.Duration // ex: 5s

	AdminPass     string // ADMIN console passphrase
	ValidateTime  int    // minutes between validation passes
	ValidateTries int    // failed probes tolerated before eviction
	ShareEnabled  bool   // answer SHARE requests
	ShareServers  []domain.PeerTracker

	PrivateHostToAccept string // single private host allowed to register

	CmdFile     string // command log path
	OptionsFile string // options file actually loaded, empty when none
	CSSTemplate string // stylesheet served next to the status page
	ImageDir    string // directory *.gif requests are served from
	TrackerName string // shown on the status page
	TrackerHost string // link target of the tracker name on the status page

	LogLevel   string // "debug" | "info" | "warn" | "error"
	PrettyLog  bool   // true => zap dev (color), false => zap prod (JSON)
	LogFile    string // optional rotated log file, dumped by admin LOGS
	LogVerbose bool   // false raises the level to warn

	// Status API
	HTTPListen   string   // ex: ":8080", empty disables the API
	AllowedCIDRS []string // optional, restrict access to specific IP (e.g. "1.2.3.4, 5.6.7.8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers

	// Redis command log mirror, disabled when RedisAddr is empty
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts
}

// cliOptions are the command line flags.
type cliOptions struct {
	CmdFile     string `short:"c" long:"cmdfile" description:"Path of the command file replayed at startup and rewritten on every change"`
	OptionsFile string `short:"o" long:"options" description:"Path of the options file (.ini or .yaml)"`
}

// fileOptions are the keys of the options file. Booleans are read as text:
// an ini value of "false" must be able to clear a default of true.
type fileOptions struct {
	Port                string   `long:"kPort" yaml:"kPort"`
	AdminPass           string   `long:"adminPass" yaml:"adminPass"`
	ValidateTime        string   `long:"validateTime" yaml:"validateTime"`
	ValidateTries       string   `long:"validateTries" yaml:"validateTries"`
	ShareEnabled        string   `long:"shareEnabled" yaml:"shareEnabled"`
	ShareServer         []string `long:"shareServer" yaml:"shareServer"`
	LogFile             string   `long:"logFile" yaml:"logFile"`
	LogVerbose          string   `long:"logVerbose" yaml:"logVerbose"`
	CSSTemplate         string   `long:"cssTemplate" yaml:"cssTemplate"`
	ImageDir            string   `long:"imageDir" yaml:"imageDir"`
	TrackerName         string   `long:"trackerName" yaml:"trackerName"`
	TrackerHost         string   `long:"trackerHost" yaml:"trackerHost"`
	PrivateHostToAccept string   `long:"privateHostToAccept" yaml:"privateHostToAccept"`
}

// Load builds the configuration from defaults, NPDS_* environment variables,
// the options file and finally the command line.
func Load(args []string) (*Config, error) {
	cfg := fromEnv()

	var cli cliOptions
	parser := flags.NewParser(&cli, flags.Default)
	parser.Usage = "[-h] [-c cmdfile] [-o optionsfile]"
	rest, err := parser.ParseArgs(args)
	if err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			return nil, ErrHelp
		}
		return nil, err
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("invalid arguments: %s", strings.Join(rest, " "))
	}

	optionsFile := cli.OptionsFile
	if optionsFile == "" {
		if _, err := os.Stat(DefaultOptionsFile); err == nil {
			optionsFile = DefaultOptionsFile
		}
	}
	if optionsFile != "" {
		if err := cfg.applyFile(optionsFile); err != nil {
			return nil, err
		}
		cfg.OptionsFile = optionsFile
	}

	if cli.CmdFile != "" {
		cfg.CmdFile = cli.CmdFile
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.AdminPass = "***REDACTED***"
		cfgCopy.RedisPassword = "***REDACTED***"
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		// Tracker settings
		Ports:           parsePorts(getenv("NPDS_PORTS", strconv.Itoa(DefaultPort))),
		ShutdownTimeout: mustDuration("NPDS_SHUTDOWN_TIMEOUT", 5*time.Second),

		AdminPass:     getenv("NPDS_ADMIN_PASS", "qwerty"),
		ValidateTime:  getenvInt("NPDS_VALIDATE_TIME", 20),
		ValidateTries: getenvInt("NPDS_VALIDATE_TRIES", 3),
		ShareEnabled:  mustBool("NPDS_SHARE_ENABLED", true),

		PrivateHostToAccept: getenv("NPDS_PRIVATE_HOST", ""),

		CmdFile:     getenv("NPDS_CMD_FILE", DefaultCmdFile),
		CSSTemplate: getenv("NPDS_CSS_TEMPLATE", ""),
		ImageDir:    getenv("NPDS_IMAGE_DIR", ""),
		TrackerName: getenv("NPDS_TRACKER_NAME", ""),
		TrackerHost: getenv("NPDS_TRACKER_HOST", ""),

		// Logging
		LogLevel:   getenv("NPDS_LOG_LEVEL", "info"),
		PrettyLog:  mustBool("NPDS_PRETTY_LOG", true),
		LogFile:    getenv("NPDS_LOG_FILE", ""),
		LogVerbose: mustBool("NPDS_LOG_VERBOSE", true),

		// Status API
		HTTPListen:   getenv("NPDS_HTTP_LISTEN", ""),
		AllowedCIDRS: parseAllowedIPs(getenv("NPDS_HTTP_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("NPDS_TRUST_PROXY", false),

		// Redis settings
		RedisAddr:           getenv("NPDS_REDIS_ADDR", ""),
		RedisUser:           getenv("NPDS_REDIS_USERNAME", ""),
		RedisPassword:       getenv("NPDS_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("NPDS_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),
	}
}

// EffectiveLogLevel is LogLevel, raised to warn when verbose logging is off.
func (c *Config) EffectiveLogLevel() string {
	if c.LogVerbose {
		return c.LogLevel
	}
	switch c.LogLevel {
	case "error":
		return "error"
	default:
		return "warn"
	}
}

// applyFile overlays the options file at path onto c.
func (c *Config) applyFile(path string) error {
	opts, err := readOptionsFile(path)
	if err != nil {
		return err
	}
	return c.applyOptions(opts)
}

func readOptionsFile(path string) (*fileOptions, error) {
	var opts fileOptions

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read options file: %w", err)
		}
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return nil, fmt.Errorf("failed to parse options file %s: %w", path, err)
		}
	default:
		parser := flags.NewParser(&opts, flags.IgnoreUnknown)
		if err := flags.NewIniParser(parser).ParseFile(path); err != nil {
			return nil, fmt.Errorf("failed to parse options file %s: %w", path, err)
		}
	}

	return &opts, nil
}

func (c *Config) applyOptions(o *fileOptions) error {
	if o.Port != "" {
		ports := parsePorts(o.Port)
		if len(ports) == 0 {
			return fmt.Errorf("kPort: no valid port in %q", o.Port)
		}
		c.Ports = ports
	}
	if o.AdminPass != "" {
		c.AdminPass = o.AdminPass
	}
	if o.ValidateTime != "" {
		v, err := strconv.Atoi(strings.TrimSpace(o.ValidateTime))
		if err != nil {
			return fmt.Errorf("validateTime: %w", err)
		}
		c.ValidateTime = v
	}
	if o.ValidateTries != "" {
		v, err := strconv.Atoi(strings.TrimSpace(o.ValidateTries))
		if err != nil {
			return fmt.Errorf("validateTries: %w", err)
		}
		c.ValidateTries = v
	}
	if o.ShareEnabled != "" {
		c.ShareEnabled = parseBool(o.ShareEnabled)
	}
	for _, s := range o.ShareServer {
		fields := strings.Fields(s)
		if len(fields) != 2 {
			return fmt.Errorf("shareServer: want \"host port\", got %q", s)
		}
		c.ShareServers = append(c.ShareServers, domain.PeerTracker{Host: fields[0], Port: fields[1]})
	}
	if o.LogFile != "" {
		c.LogFile = o.LogFile
	}
	if o.LogVerbose != "" {
		c.LogVerbose = parseBool(o.LogVerbose)
	}
	if o.CSSTemplate != "" {
		c.CSSTemplate = o.CSSTemplate
	}
	if o.ImageDir != "" {
		c.ImageDir = o.ImageDir
		if _, err := os.Stat(o.ImageDir); err != nil {
			log.Printf("[WARN] image directory %s does not exist, defaulting to images", o.ImageDir)
			c.ImageDir = "images"
		}
	}
	if o.TrackerName != "" {
		c.TrackerName = o.TrackerName
	}
	if o.TrackerHost != "" {
		c.TrackerHost = o.TrackerHost
	}
	if o.PrivateHostToAccept != "" {
		c.PrivateHostToAccept = o.PrivateHostToAccept
	}
	return nil
}

func (c *Config) validate() error {
	for _, p := range c.Ports {
		if p < 1 || p > 65535 {
			return fmt.Errorf("port %d is not within 1-65535", p)
		}
	}
	if c.ValidateTime < 1 {
		return fmt.Errorf("validateTime must be >= 1, got %d", c.ValidateTime)
	}
	if c.ValidateTries < 0 {
		return fmt.Errorf("validateTries must be >= 0, got %d", c.ValidateTries)
	}
	if c.CmdFile == "" {
		return errors.New("command file path must not be empty")
	}
	return nil
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parseBool follows the options file convention: only "true" (any case) is true.
func parseBool(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

// parsePorts reads a comma or space separated port list. Tokens that are not
// integers are dropped; range checks happen in validate.
func parsePorts(s string) []int {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	ports := make([]int, 0, len(fields))
	for _, f := range fields {
		p, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			log.Printf("[WARN] ignoring invalid port %q", f)
			continue
		}
		ports = append(ports, p)
	}
	return ports
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

package cluster

import (
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ziutek/telnet"

	"spotfeed/spot"
)

const (
	dialTimeout      = 30 * time.Second
	readTimeout      = 2 * time.Minute
	reconnectDelay   = 10 * time.Second
	configCommandGap = 500 * time.Millisecond

	// fallbackCallsign is the login of last resort when neither the
	// per-cluster nor the station callsign is configured.
	fallbackCallsign = "N0CALL"

	// Wire protocol literals. The escalation command asks a CC Cluster
	// node for the extended caret-delimited spot format; the follow-up
	// commands silence skimmer relays and the FT8 flood.
	escalationCommand = "SET/VE7CC"
	skimmerOffCommand = "SET/NOSKIMMER"
	ft8OffCommand     = "SET/NOFT8"

	enhancedPromptMarker  = "running cc cluster"
	enhancedAckMarker     = "operation successful"
	invalidCallsignMarker = "invalid callsign"
)

// loginPrompts are matched case-insensitively against the data received
// before login. All known nodes terminate the prompt with a colon.
var loginPrompts = []string{"login:", "call:", "please enter your call"}

// Status names the connection handler states.
type Status string

const (
	StatusConnecting   Status = "CONNECTING"
	StatusConnected    Status = "CONNECTED"
	StatusDisconnected Status = "DISCONNECTED"
	StatusError        Status = "ERROR"
)

// ClusterStatus is one status report for one configured cluster.
type ClusterStatus struct {
	ID           string
	Name         string
	Status       Status
	ErrorMessage string
}

// ClientConfig wires one connection handler. The two callbacks may be
// invoked from the handler's goroutine at any time and must be safe for
// concurrent use across handlers.
type ClientConfig struct {
	ID            string
	Name          string
	Host          string
	Port          int
	Callsign      string // already merged with the station default by the caller
	AutoReconnect bool

	// ReconnectDelay overrides the fixed retry delay; zero means the
	// standard 10 seconds. Tests shrink it.
	ReconnectDelay time.Duration

	Parser        *Parser
	DebugUnparsed bool

	OnSpot   func(clusterID, clusterName string, s *spot.ParsedSpot)
	OnStatus func(st ClusterStatus)
}

// Client owns exactly one TCP session lifecycle to one cluster at a time:
// Connecting -> Connected -> (Disconnected | Error), returning to Connecting
// automatically unless auto-reconnect is off or Stop was called.
type Client struct {
	cfg   ClientConfig
	delay time.Duration

	mu   sync.Mutex // guards conn
	conn *telnet.Conn

	shutdown chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	lines  atomic.Uint64
	parsed atomic.Uint64
}

// NewClient creates a handler for one configured cluster. Call Start to
// launch its connection loop.
func NewClient(cfg ClientConfig) *Client {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = reconnectDelay
	}
	return &Client{
		cfg:      cfg,
		delay:    delay,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the connection loop in its own goroutine.
func (c *Client) Start() {
	go c.run()
}

// Stop requests disconnect: it cancels any in-flight wait or blocking read
// and suppresses further reconnect attempts. Idempotent.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.shutdown)
	})
	c.closeConn()
}

// Done is closed once the connection loop has fully exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Counters returns lines received and spots parsed across all sessions.
func (c *Client) Counters() (lines, parsed uint64) {
	return c.lines.Load(), c.parsed.Load()
}

// run is the handler state machine. Each iteration is one connect attempt;
// between iterations the handler waits the fixed reconnect delay on a
// cancellable timer so Stop terminates promptly.
func (c *Client) run() {
	defer close(c.done)
	for {
		if c.stopped() {
			c.report(StatusDisconnected, "")
			return
		}
		c.report(StatusConnecting, "")

		err := c.session()
		if c.stopped() {
			c.report(StatusDisconnected, "")
			return
		}
		if err != nil {
			log.Printf("Cluster %s: session ended: %v", c.cfg.Name, err)
			c.report(StatusError, err.Error())
		}
		if !c.cfg.AutoReconnect {
			c.report(StatusDisconnected, "")
			return
		}
		c.report(StatusDisconnected, fmt.Sprintf("reconnecting in %s", c.delay))
		if !c.sleep(c.delay) {
			c.report(StatusDisconnected, "")
			return
		}
	}
}

// session performs one full connect/login/read cycle and returns when the
// connection is lost, rejected, or stopped.
func (c *Client) session() error {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	log.Printf("Cluster %s: connecting to %s...", c.cfg.Name, addr)

	conn, err := telnet.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	conn.SetUnixWriteMode(true)
	c.setConn(conn)
	defer c.closeConn()

	c.report(StatusConnected, "")
	log.Printf("Cluster %s: connection established", c.cfg.Name)

	sawEnhanced, err := c.login(conn)
	if err != nil {
		if c.stopped() {
			return nil
		}
		return err
	}
	return c.readLoop(conn, sawEnhanced)
}

// login consumes colon-terminated chunks until one carries a login prompt
// marker, then replies with the callsign. It also remembers whether the
// enhanced-format banner was already seen so readLoop can escalate.
func (c *Client) login(conn *telnet.Conn) (sawEnhanced bool, err error) {
	for {
		if c.stopped() {
			return sawEnhanced, nil
		}
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return sawEnhanced, err
		}
		chunk, err := conn.ReadString(':')
		if err != nil {
			return sawEnhanced, fmt.Errorf("waiting for login prompt: %w", err)
		}
		lower := strings.ToLower(chunk)
		if strings.Contains(lower, enhancedPromptMarker) {
			sawEnhanced = true
		}
		if containsAny(lower, loginPrompts) {
			call := c.loginCallsign()
			log.Printf("Cluster %s: logging in as %s", c.cfg.Name, call)
			return sawEnhanced, c.send(conn, call)
		}
	}
}

// readLoop is the per-line processing loop for an established session. It
// drives the enhanced-mode escalation and hands every other non-empty,
// non-prompt line to the parser.
func (c *Client) readLoop(conn *telnet.Conn, sawEnhanced bool) error {
	enhancedRequested := false
	enhancedConfirmed := false

	if sawEnhanced {
		enhancedRequested = true
		if err := c.send(conn, escalationCommand); err != nil {
			return err
		}
	}

	for {
		if c.stopped() {
			return nil
		}
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return err
		}
		line, err := conn.ReadString('\n')
		if err != nil {
			if c.stopped() {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		c.lines.Add(1)
		lower := strings.ToLower(line)

		if strings.Contains(lower, invalidCallsignMarker) {
			// Non-retryable within this attempt; the standard reconnect
			// policy still applies afterwards since the operator may fix
			// the callsign.
			return fmt.Errorf("cluster rejected callsign %q", c.loginCallsign())
		}
		if !enhancedRequested && strings.Contains(lower, enhancedPromptMarker) {
			enhancedRequested = true
			if err := c.send(conn, escalationCommand); err != nil {
				return err
			}
			continue
		}
		if enhancedRequested && !enhancedConfirmed && strings.Contains(lower, enhancedAckMarker) {
			enhancedConfirmed = true
			// Two follow-up commands, paced so the remote's line
			// processing keeps up.
			if err := c.send(conn, skimmerOffCommand); err != nil {
				return err
			}
			if !c.sleep(configCommandGap) {
				return nil
			}
			if err := c.send(conn, ft8OffCommand); err != nil {
				return err
			}
			continue
		}

		s, ok := c.cfg.Parser.Parse(line)
		if !ok {
			// Malformed or non-spot lines are dropped; one garbled line
			// must never abort the session.
			if c.cfg.DebugUnparsed && !isPromptLine(line) {
				log.Printf("Cluster %s: unparsed line: %s", c.cfg.Name, line)
			}
			continue
		}
		c.parsed.Add(1)
		if c.cfg.OnSpot != nil {
			c.cfg.OnSpot(c.cfg.ID, c.cfg.Name, s)
		}
	}
}

// loginCallsign resolves the identity to present: per-cluster callsign,
// else the placeholder of last resort.
func (c *Client) loginCallsign() string {
	call := spot.NormalizeCallsign(c.cfg.Callsign)
	if call == "" {
		return fallbackCallsign
	}
	return call
}

func (c *Client) send(conn *telnet.Conn, line string) error {
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("send %q: %w", line, err)
	}
	return nil
}

func (c *Client) report(status Status, msg string) {
	if c.cfg.OnStatus == nil {
		return
	}
	c.cfg.OnStatus(ClusterStatus{
		ID:           c.cfg.ID,
		Name:         c.cfg.Name,
		Status:       status,
		ErrorMessage: msg,
	})
}

func (c *Client) setConn(conn *telnet.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// closeConn closes the live socket, if any, so blocking reads unwind.
func (c *Client) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (c *Client) stopped() bool {
	select {
	case <-c.shutdown:
		return true
	default:
		return false
	}
}

// sleep waits for d or until Stop; it returns false when interrupted.
func (c *Client) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.shutdown:
		return false
	}
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// isPromptLine filters bare node prompts out of the unparsed-line debug log.
func isPromptLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == ">" || strings.HasSuffix(trimmed, ">>")
}

// Package radio speaks the receiver's line-oriented remote-control protocol
// over TCP: one newline-terminated ASCII directive out, one bounded reply
// back. A reply starting with "RPRT 0" means success; anything else fails
// that directive. The package also supervises the receiver process itself.
package radio

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/satpass-radio/satpass/internal/profile"
)

// successPrefix is the receiver's zero-return-code marker. Every directive
// the client issues is answered with "RPRT <code>"; only code 0 is success.
const successPrefix = "RPRT 0"

// maxResponse bounds a single reply line. The receiver answers in a few
// bytes; anything longer means we are not talking to the right endpoint.
const maxResponse = 1024

// Client drives the receiver's remote-control endpoint. It owns at most one
// connection at a time and allows one outstanding directive per connection.
// Methods are not safe for concurrent use; the recording worker holds
// exclusive ownership of the client for the lifetime of a session.
type Client struct {
	Addr           string
	DialTimeout    time.Duration
	CommandTimeout time.Duration
	Log            *log.Logger

	conn net.Conn
	br   *bufio.Reader
}

// NewClient returns a client for the control endpoint at addr (host:port).
func NewClient(addr string, logger *log.Logger) *Client {
	return &Client{
		Addr:           addr,
		DialTimeout:    5 * time.Second,
		CommandTimeout: 5 * time.Second,
		Log:            logger,
	}
}

// Connect dials the control endpoint. Any existing connection is closed
// first. Transport failures are reported as *ConnectionError.
func (c *Client) Connect(ctx context.Context) error {
	c.Close()

	d := net.Dialer{Timeout: c.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return &ConnectionError{Addr: c.Addr, Err: err}
	}
	c.setConn(conn)
	c.Log.Printf("radio: connected to %s", c.Addr)
	return nil
}

// SetConn installs an existing connection, bypassing Connect. Tests use
// this to drive the client over an in-process pipe.
func (c *Client) SetConn(conn net.Conn) {
	c.setConn(conn)
}

func (c *Client) setConn(conn net.Conn) {
	c.conn = conn
	c.br = bufio.NewReaderSize(conn, maxResponse)
}

// Connected reports whether the client currently holds a connection.
func (c *Client) Connected() bool {
	return c.conn != nil
}

// Close releases the control connection. Safe to call on every exit path,
// connected or not.
func (c *Client) Close() error {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.br = nil
	}
	return nil
}

// Issue sends one directive and reads one reply line. The reply is returned
// trimmed. A reply not starting with the success marker, a timeout, or a
// dropped connection yields a *ProtocolError scoped to this directive.
func (c *Client) Issue(directive string) (string, error) {
	if c.conn == nil {
		return "", &ConnectionError{Addr: c.Addr, Err: fmt.Errorf("not connected")}
	}

	deadline := time.Now().Add(c.CommandTimeout)
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return "", &ProtocolError{Directive: directive, Err: err}
	}
	if _, err := fmt.Fprintf(c.conn, "%s\n", directive); err != nil {
		return "", &ProtocolError{Directive: directive, Err: err}
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return "", &ProtocolError{Directive: directive, Err: err}
	}
	line, err := c.br.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		return "", &ProtocolError{Directive: directive, Err: fmt.Errorf("reply exceeds %d bytes", maxResponse)}
	}
	if err != nil {
		return "", &ProtocolError{Directive: directive, Err: err}
	}

	resp := strings.TrimSpace(string(line))
	if !strings.HasPrefix(resp, successPrefix) {
		return resp, &ProtocolError{Directive: directive, Response: resp}
	}
	return resp, nil
}

// configStep pairs a human-readable name with the directive it issues.
type configStep struct {
	name      string
	directive string
}

// ConfigureSatellite tunes the receiver for the given profile. The six
// directives go out in a fixed order — frequency, mode, filter width,
// squelch, AGC off, RF gain — because later settings depend on state the
// earlier ones establish. The sequence stops at the first failure, and the
// returned error names the step that failed.
func (c *Client) ConfigureSatellite(p profile.Profile) error {
	steps := []configStep{
		{"frequency", fmt.Sprintf("F %d", p.FreqHz)},
		{"mode", fmt.Sprintf("M %s", p.Mode)},
		{"filter width", fmt.Sprintf("L %d", p.FilterWidthHz)},
		{"squelch", fmt.Sprintf("L SQL %g", p.SquelchDB)},
		{"agc", "L AGC OFF"},
		{"rf gain", fmt.Sprintf("L RF %g", p.Gain)},
	}

	for _, step := range steps {
		if _, err := c.Issue(step.directive); err != nil {
			return fmt.Errorf("configure %s: set %s: %w", p.ID, step.name, err)
		}
	}

	c.Log.Printf("radio: configured for %s (%.4f MHz %s)", p.ID, float64(p.FreqHz)/1e6, p.Mode)
	return nil
}

// StartCapture marks acquisition of signal and starts recording to path.
func (c *Client) StartCapture(path string) error {
	if _, err := c.Issue("AOS"); err != nil {
		return fmt.Errorf("begin acquisition: %w", err)
	}
	if _, err := c.Issue("RECORD " + path); err != nil {
		return fmt.Errorf("start recording: %w", err)
	}
	c.Log.Printf("radio: recording to %s", path)
	return nil
}

// StopCapture stops recording and marks loss of signal. The LOS directive
// is issued even when RECORD OFF fails, so the receiver never stays in the
// acquisition state. The first failure is reported after both went out.
func (c *Client) StopCapture() error {
	_, recErr := c.Issue("RECORD OFF")
	_, losErr := c.Issue("LOS")

	if recErr != nil {
		return fmt.Errorf("stop recording: %w", recErr)
	}
	if losErr != nil {
		return fmt.Errorf("end acquisition: %w", losErr)
	}
	return nil
}

package radio

import "fmt"

// ConnectionError indicates a transport-level failure establishing or
// reusing the control connection.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("radio connection %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError indicates that a single directive failed: the receiver
// answered with something other than the success marker, the reply timed
// out, or the connection dropped mid-exchange. It is scoped to the one
// directive; the connection may still be usable for the next.
type ProtocolError struct {
	Directive string
	Response  string
	Err       error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("directive %q: %v", e.Directive, e.Err)
	}
	return fmt.Sprintf("directive %q: receiver answered %q", e.Directive, e.Response)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

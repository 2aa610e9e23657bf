package predict

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"
)

// NetOracle queries a prediction server over its line protocol. One request
// per connection: `PREDICT <id> <n>` answered by a header line followed by
// n lines of `<aos_unix> <los_unix> <max_elev>`. When a station position is
// known it is pushed first with a best-effort `QTH` directive so the server
// predicts for our actual coordinates.
type NetOracle struct {
	Addr         string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	RequestCount int
	Log          *log.Logger

	// StationFunc supplies the current ground-station position, when one
	// is known. Nil or a false return skips the QTH update.
	StationFunc func() (Station, bool)
}

// NewNetOracle returns a client for the prediction server at addr.
func NewNetOracle(addr string, logger *log.Logger) *NetOracle {
	return &NetOracle{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  10 * time.Second,
		RequestCount: 10,
		Log:          logger,
	}
}

// Passes requests predictions for one satellite and filters them to the
// horizon window. Transport failures and malformed replies both surface as
// *UnavailableError.
func (o *NetOracle) Passes(ctx context.Context, satID string, from time.Time, horizon time.Duration) ([]Prediction, error) {
	d := net.Dialer{Timeout: o.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", o.Addr)
	if err != nil {
		return nil, &UnavailableError{Endpoint: o.Addr, Err: err}
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(o.ReadTimeout)); err != nil {
		return nil, &UnavailableError{Endpoint: o.Addr, Err: err}
	}

	r := bufio.NewReader(conn)
	o.sendStation(conn, r)

	count := o.RequestCount
	if count <= 0 {
		count = 10
	}
	if _, err := fmt.Fprintf(conn, "PREDICT %s %d\n", satID, count); err != nil {
		return nil, &UnavailableError{Endpoint: o.Addr, Err: err}
	}

	header, err := r.ReadString('\n')
	if err != nil {
		return nil, &UnavailableError{Endpoint: o.Addr, Err: fmt.Errorf("read header: %w", err)}
	}
	if !strings.HasPrefix(strings.TrimSpace(header), "PREDICT") {
		return nil, &UnavailableError{Endpoint: o.Addr, Err: fmt.Errorf("unexpected header %q", strings.TrimSpace(header))}
	}

	passes := make([]Prediction, 0, count)
	for i := 0; i < count; i++ {
		line, err := r.ReadString('\n')
		if err != nil {
			break // server sent fewer passes than requested
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}

		p, err := parsePassLine(line)
		if err != nil {
			return nil, &UnavailableError{Endpoint: o.Addr, Err: err}
		}
		if p.AOS.Before(from) || p.AOS.Sub(from) > horizon {
			continue
		}
		passes = append(passes, p)
	}

	sort.Slice(passes, func(i, j int) bool { return passes[i].AOS.Before(passes[j].AOS) })
	return passes, nil
}

// sendStation pushes the current station position, when known. Failures are
// swallowed: a stale server-side position degrades predictions but must not
// block them.
func (o *NetOracle) sendStation(conn net.Conn, r *bufio.Reader) {
	if o.StationFunc == nil {
		return
	}
	st, ok := o.StationFunc()
	if !ok {
		return
	}
	if _, err := fmt.Fprintf(conn, "QTH %.6f %.6f %.0f\n", st.Lat, st.Lon, st.Alt); err != nil {
		return
	}
	// The server acknowledges with one line; content does not matter here.
	_, _ = r.ReadString('\n')
}

// parsePassLine decodes one `<aos_unix> <los_unix> <max_elev>` record.
func parsePassLine(line string) (Prediction, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Prediction{}, fmt.Errorf("malformed pass record %q", line)
	}

	aos, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Prediction{}, fmt.Errorf("bad AOS in %q: %w", line, err)
	}
	los, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Prediction{}, fmt.Errorf("bad LOS in %q: %w", line, err)
	}
	elev, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Prediction{}, fmt.Errorf("bad elevation in %q: %w", line, err)
	}

	return Prediction{
		AOS:          time.Unix(aos, 0).UTC(),
		LOS:          time.Unix(los, 0).UTC(),
		MaxElevation: elev,
	}, nil
}

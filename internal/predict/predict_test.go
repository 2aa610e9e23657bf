package predict

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestStubOracle_Shape(t *testing.T) {
	from := time.Date(2025, 5, 3, 12, 0, 0, 0, time.UTC)

	passes, err := StubOracle{}.Passes(context.Background(), "NOAA-15", from, 24*time.Hour)
	if err != nil {
		t.Fatalf("Passes: %v", err)
	}
	if len(passes) != 2 {
		t.Fatalf("got %d passes, want 2", len(passes))
	}

	first, second := passes[0], passes[1]
	if !first.AOS.Equal(from.Add(2 * time.Hour)) {
		t.Errorf("first AOS = %v, want from+2h", first.AOS)
	}
	if !second.AOS.Equal(from.Add(6 * time.Hour)) {
		t.Errorf("second AOS = %v, want from+6h", second.AOS)
	}
	for i, p := range passes {
		if p.Duration() != 15*time.Minute {
			t.Errorf("pass %d duration = %v, want 15m", i, p.Duration())
		}
	}
	if first.MaxElevation != 45 || second.MaxElevation != 55 {
		t.Errorf("elevations = %v, %v; want 45, 55", first.MaxElevation, second.MaxElevation)
	}
}

func TestStubOracle_Deterministic(t *testing.T) {
	from := time.Date(2025, 5, 3, 12, 0, 0, 0, time.UTC)

	a, _ := StubOracle{}.Passes(context.Background(), "ISS", from, 24*time.Hour)
	b, _ := StubOracle{}.Passes(context.Background(), "ISS", from, 24*time.Hour)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("pass %d differs between calls: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestStubOracle_HorizonClips(t *testing.T) {
	from := time.Date(2025, 5, 3, 12, 0, 0, 0, time.UTC)

	passes, err := StubOracle{}.Passes(context.Background(), "NOAA-18", from, 3*time.Hour)
	if err != nil {
		t.Fatalf("Passes: %v", err)
	}
	if len(passes) != 1 {
		t.Fatalf("got %d passes inside 3h horizon, want 1", len(passes))
	}
}

// predictServer is a scripted prediction endpoint for NetOracle tests.
type predictServer struct {
	ln       net.Listener
	mu       sync.Mutex
	requests []string
	reply    func(request string) string
}

func startPredictServer(t *testing.T, reply func(string) string) *predictServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := &predictServer{ln: ln, reply: reply}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go s.serve(conn)
		}
	}()
	return s
}

func (s *predictServer) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		req := strings.TrimSpace(line)

		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()

		if _, err := io.WriteString(conn, s.reply(req)); err != nil {
			return
		}
		// One prediction exchange per connection, like the real server.
		if !strings.HasPrefix(req, "QTH") {
			return
		}
	}
}

func (s *predictServer) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

func TestNetOracle_ParsesPasses(t *testing.T) {
	from := time.Date(2025, 5, 3, 12, 0, 0, 0, time.UTC)
	aos1 := from.Add(90 * time.Minute)
	aos2 := from.Add(4 * time.Hour)

	srv := startPredictServer(t, func(req string) string {
		if strings.HasPrefix(req, "QTH") {
			return "QTH OK\n"
		}
		// Deliberately out of AOS order; the client must sort.
		return fmt.Sprintf("PREDICT NOAA-15 2\n%d %d 62.5\n%d %d 31.0\n",
			aos2.Unix(), aos2.Add(12*time.Minute).Unix(),
			aos1.Unix(), aos1.Add(15*time.Minute).Unix())
	})

	o := NewNetOracle(srv.ln.Addr().String(), log.New(io.Discard, "", 0))
	passes, err := o.Passes(context.Background(), "NOAA-15", from, 24*time.Hour)
	if err != nil {
		t.Fatalf("Passes: %v", err)
	}

	if len(passes) != 2 {
		t.Fatalf("got %d passes, want 2", len(passes))
	}
	if !passes[0].AOS.Equal(aos1) || !passes[1].AOS.Equal(aos2) {
		t.Errorf("passes not sorted by AOS: %v", passes)
	}
	if passes[0].MaxElevation != 31.0 || passes[1].MaxElevation != 62.5 {
		t.Errorf("elevations wrong: %v", passes)
	}

	reqs := srv.seen()
	if len(reqs) != 1 || reqs[0] != "PREDICT NOAA-15 10" {
		t.Errorf("server saw %v, want single PREDICT NOAA-15 10", reqs)
	}
}

func TestNetOracle_SendsStation(t *testing.T) {
	from := time.Now().UTC()
	srv := startPredictServer(t, func(req string) string {
		if strings.HasPrefix(req, "QTH") {
			return "QTH OK\n"
		}
		return "PREDICT ISS 0\n"
	})

	o := NewNetOracle(srv.ln.Addr().String(), log.New(io.Discard, "", 0))
	o.StationFunc = func() (Station, bool) {
		return Station{Lat: 34.05, Lon: -118.25, Alt: 89}, true
	}

	if _, err := o.Passes(context.Background(), "ISS", from, 24*time.Hour); err != nil {
		t.Fatalf("Passes: %v", err)
	}

	reqs := srv.seen()
	if len(reqs) != 2 {
		t.Fatalf("server saw %v, want QTH then PREDICT", reqs)
	}
	if reqs[0] != "QTH 34.050000 -118.250000 89" {
		t.Errorf("QTH request = %q", reqs[0])
	}
	if reqs[1] != "PREDICT ISS 10" {
		t.Errorf("PREDICT request = %q", reqs[1])
	}
}

func TestNetOracle_HorizonFilter(t *testing.T) {
	from := time.Date(2025, 5, 3, 12, 0, 0, 0, time.UTC)
	inside := from.Add(2 * time.Hour)
	outside := from.Add(30 * time.Hour)

	srv := startPredictServer(t, func(string) string {
		return fmt.Sprintf("PREDICT NOAA-19 2\n%d %d 50\n%d %d 80\n",
			inside.Unix(), inside.Add(10*time.Minute).Unix(),
			outside.Unix(), outside.Add(10*time.Minute).Unix())
	})

	o := NewNetOracle(srv.ln.Addr().String(), log.New(io.Discard, "", 0))
	passes, err := o.Passes(context.Background(), "NOAA-19", from, 24*time.Hour)
	if err != nil {
		t.Fatalf("Passes: %v", err)
	}
	if len(passes) != 1 || !passes[0].AOS.Equal(inside) {
		t.Errorf("horizon filter failed: %v", passes)
	}
}

func TestNetOracle_MalformedReply(t *testing.T) {
	cases := []struct {
		name  string
		reply string
	}{
		{"wrong header", "ERROR no such satellite\n"},
		{"garbage record", "PREDICT X 1\nnot numbers here\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := startPredictServer(t, func(string) string { return tc.reply })

			o := NewNetOracle(srv.ln.Addr().String(), log.New(io.Discard, "", 0))
			_, err := o.Passes(context.Background(), "X", time.Now(), 24*time.Hour)

			var uerr *UnavailableError
			if !errors.As(err, &uerr) {
				t.Fatalf("expected *UnavailableError, got %v", err)
			}
		})
	}
}

func TestNetOracle_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	o := NewNetOracle(addr, log.New(io.Discard, "", 0))
	o.DialTimeout = 200 * time.Millisecond

	_, err = o.Passes(context.Background(), "NOAA-15", time.Now(), 24*time.Hour)
	var uerr *UnavailableError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected *UnavailableError, got %v", err)
	}
}

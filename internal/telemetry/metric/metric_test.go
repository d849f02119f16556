package metric

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.ConnOpened()
	m.ConnClosed()
	m.Command("get")
	m.Expired()
	m.IdleClosed()
	m.Oversize()
	m.SetKeys(3)
}

func TestMetrics_Scrape(t *testing.T) {
	m := New()
	m.ConnOpened()
	m.Command("set")
	m.Command("set")
	m.SetKeys(7)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	out := string(body)

	for _, want := range []string{
		"lattice_connections_accepted_total 1",
		"lattice_connections_active 1",
		`lattice_commands_total{command="set"} 2`,
		"lattice_keyspace_entries 7",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}

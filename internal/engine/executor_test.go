package engine

import (
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/latticekv/lattice/internal/keyspace"
	"github.com/latticekv/lattice/internal/telemetry/logger"
	"github.com/latticekv/lattice/internal/telemetry/metric"
	"github.com/latticekv/lattice/internal/timers"
	"github.com/latticekv/lattice/internal/wire"
	"github.com/latticekv/lattice/internal/worker"
)

// testExec wires an executor over a fake clock.
type testExec struct {
	*Executor
	ks   *keyspace.Keyspace
	tm   *timers.Manager
	pool *worker.Pool
	now  int64
}

func newTestExec(t *testing.T) *testExec {
	t.Helper()

	te := &testExec{
		ks:   keyspace.New(),
		tm:   timers.NewManager(0),
		pool: worker.NewPool(1),
	}
	te.Executor = NewExecutor(te.ks, te.tm, te.pool, logger.Nop(), nil, 0,
		func() int64 { return te.now })
	t.Cleanup(te.pool.Close)
	return te
}

func (te *testExec) run(t *testing.T, line string) *wire.Response {
	t.Helper()
	return te.Execute(strings.Fields(line))
}

func expect(t *testing.T, got *wire.Response, want string) {
	t.Helper()
	if got.String() != want {
		t.Errorf("response = %q, want %q", got.String(), want)
	}
}

// ============================================================
// Strings
// ============================================================

func TestExecutor_SetGetDel(t *testing.T) {
	x := newTestExec(t)

	expect(t, x.run(t, "set name tyler"), "(string) OK")
	expect(t, x.run(t, "get name"), "(string) tyler")
	expect(t, x.run(t, "del name"), "(integer) 1")
	expect(t, x.run(t, "get name"), "(nil)")
	expect(t, x.run(t, "del name"), "(integer) 0")
}

func TestExecutor_GetWrongType(t *testing.T) {
	x := newTestExec(t)
	x.run(t, "zadd s 1 a")

	resp := x.run(t, "get s")
	expect(t, resp, "(error) value is not a string")
	if resp.Code != wire.ErrBadType {
		t.Errorf("code = %d, want BAD_TYPE", resp.Code)
	}
}

func TestExecutor_Keys(t *testing.T) {
	x := newTestExec(t)
	x.run(t, "set a 1")
	x.run(t, "set b 2")
	x.run(t, "zadd c 1 m")

	resp := x.run(t, "keys")
	if resp.Tag != wire.TagArr || len(resp.Arr) != 3 {
		t.Fatalf("keys = %s, want 3-element array", resp)
	}
	seen := map[string]bool{}
	for _, e := range resp.Arr {
		if e.Tag != wire.TagStr {
			t.Fatalf("keys element tag = %d, want STR", e.Tag)
		}
		seen[e.Str] = true
	}
	for _, k := range []string{"a", "b", "c"} {
		if !seen[k] {
			t.Errorf("keys missing %q", k)
		}
	}
}

// ============================================================
// Sorted sets
// ============================================================

func TestExecutor_ZAddZScoreUpsert(t *testing.T) {
	x := newTestExec(t)

	expect(t, x.run(t, "zadd myset 10 tyler"), "(integer) 1")
	expect(t, x.run(t, "zadd myset 20 tyler"), "(integer) 1")
	expect(t, x.run(t, "zscore myset tyler"), "(string) 20.000000")
}

func TestExecutor_ZScoreAbsent(t *testing.T) {
	x := newTestExec(t)
	x.run(t, "zadd s 1 a")
	x.run(t, "set str v")

	expect(t, x.run(t, "zscore missing a"), "(nil)")
	expect(t, x.run(t, "zscore s missing"), "(nil)")
	expect(t, x.run(t, "zscore str a"), "(nil)")
}

func TestExecutor_ZAddWrongType(t *testing.T) {
	x := newTestExec(t)
	x.run(t, "set k v")

	resp := x.run(t, "zadd k 1 a")
	expect(t, resp, "(error) value is not a sorted set")
	if resp.Code != wire.ErrBadType {
		t.Errorf("code = %d, want BAD_TYPE", resp.Code)
	}
}

func TestExecutor_ZAddInvalidScore(t *testing.T) {
	x := newTestExec(t)
	resp := x.run(t, "zadd s notanumber a")
	expect(t, resp, "(error) invalid score argument")
	if resp.Code != wire.ErrInvalidArg {
		t.Errorf("code = %d, want INVALID_ARG", resp.Code)
	}
}

func TestExecutor_ZRem(t *testing.T) {
	x := newTestExec(t)
	x.run(t, "zadd s 1 a")

	expect(t, x.run(t, "zrem s a"), "(integer) 1")
	expect(t, x.run(t, "zrem s a"), "(integer) 0")
	expect(t, x.run(t, "zrem missing a"), "(integer) 0")

	x.run(t, "set k v")
	expect(t, x.run(t, "zrem k a"), "(error) value is not a sorted set")
}

func TestExecutor_ZRank(t *testing.T) {
	x := newTestExec(t)
	x.run(t, "zadd s 0 eve")
	x.run(t, "zadd s 10 tyler")
	x.run(t, "zadd s 15 won")

	expect(t, x.run(t, "zrank s eve"), "(integer) 0")
	expect(t, x.run(t, "zrank s won"), "(integer) 2")
	expect(t, x.run(t, "zrank s missing"), "(nil)")
	expect(t, x.run(t, "zrank missing a"), "(nil)")
}

func TestExecutor_ZQuery(t *testing.T) {
	x := newTestExec(t)
	x.run(t, "zadd s 0 eve")
	x.run(t, "zadd s 10 tyler")
	x.run(t, "zadd s 15 won")

	tests := []struct {
		name string
		cmd  string
		want *wire.Response
	}{
		{
			name: "from (5, adam)",
			cmd:  "zquery s 5 adam 0 0",
			want: wire.Arr(wire.Dbl(10), wire.Str("tyler"), wire.Dbl(15), wire.Str("won")),
		},
		{
			name: "limit respected",
			cmd:  "zquery s 10 tyler 0 1",
			want: wire.Arr(wire.Dbl(10), wire.Str("tyler")),
		},
		{
			name: "offset skips",
			cmd:  "zquery s 10 tyler 1 0",
			want: wire.Arr(wire.Dbl(15), wire.Str("won")),
		},
		{
			name: "offset past end",
			cmd:  "zquery s 10 tyler 3 0",
			want: wire.Arr(),
		},
		{
			name: "absent key is empty array",
			cmd:  "zquery missing 0 a 0 0",
			want: wire.Arr(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := x.run(t, tt.cmd)
			if !got.Equal(tt.want) {
				t.Errorf("response = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestExecutor_ZQueryInvalidArgs(t *testing.T) {
	x := newTestExec(t)

	expect(t, x.run(t, "zquery s bad a 0 0"), "(error) invalid score argument")
	expect(t, x.run(t, "zquery s 0 a bad 0"), "(error) invalid offset argument")
	expect(t, x.run(t, "zquery s 0 a 0 bad"), "(error) invalid limit argument")
}

// ============================================================
// TTL
// ============================================================

func TestExecutor_ExpireTTLPersist(t *testing.T) {
	x := newTestExec(t)
	x.now = 1_000_000

	expect(t, x.run(t, "set x foo"), "(string) OK")
	expect(t, x.run(t, "expire x 10"), "(integer) 1")

	resp := x.run(t, "ttl x")
	if resp.Tag != wire.TagInt || resp.Int < 9 || resp.Int > 10 {
		t.Errorf("ttl = %s, want integer in [9,10]", resp)
	}

	expect(t, x.run(t, "persist x"), "(integer) 1")
	expect(t, x.run(t, "ttl x"), "(integer) -1")
	expect(t, x.run(t, "persist x"), "(integer) 0")
}

func TestExecutor_TTLStates(t *testing.T) {
	x := newTestExec(t)

	expect(t, x.run(t, "ttl missing"), "(integer) -2")

	x.run(t, "set x foo")
	expect(t, x.run(t, "ttl x"), "(integer) -1")

	expect(t, x.run(t, "expire missing 10"), "(integer) 0")
	expect(t, x.run(t, "persist missing"), "(integer) 0")
}

func TestExecutor_SetClearsTTL(t *testing.T) {
	x := newTestExec(t)

	x.run(t, "set x foo")
	x.run(t, "expire x 10")
	x.run(t, "set x bar")

	expect(t, x.run(t, "ttl x"), "(integer) -1")
	if x.tm.TTLLen() != 0 {
		t.Errorf("TTL heap has %d timers after set, want 0", x.tm.TTLLen())
	}
}

func TestExecutor_ExpireInvalidSeconds(t *testing.T) {
	x := newTestExec(t)
	x.run(t, "set x foo")
	expect(t, x.run(t, "expire x soon"), "(error) invalid seconds argument")
}

func TestExecutor_DelClearsTTLTimer(t *testing.T) {
	x := newTestExec(t)
	x.run(t, "set x foo")
	x.run(t, "expire x 10")

	x.run(t, "del x")
	if x.tm.TTLLen() != 0 {
		t.Errorf("TTL heap has %d timers after del, want 0", x.tm.TTLLen())
	}
}

// ============================================================
// Type discipline
// ============================================================

func TestExecutor_SetReshapesSortedSet(t *testing.T) {
	x := newTestExec(t)

	x.run(t, "zadd s 10 tyler")
	expect(t, x.run(t, "set s hi"), "(string) OK")
	expect(t, x.run(t, "zrem s tyler"), "(error) value is not a sorted set")
	expect(t, x.run(t, "get s"), "(string) hi")
}

func TestExecutor_DelThenZAddRebirth(t *testing.T) {
	x := newTestExec(t)

	x.run(t, "set k v")
	x.run(t, "del k")
	expect(t, x.run(t, "zadd k 1 a"), "(integer) 1")
	expect(t, x.run(t, "zscore k a"), "(string) 1.000000")
}

// ============================================================
// Dispatch
// ============================================================

func TestExecutor_UnknownCommand(t *testing.T) {
	x := newTestExec(t)

	tests := []string{
		"foo bar baz",
		"get",           // wrong arity
		"set k",         // wrong arity
		"zadd s 1",      // wrong arity
		"zquery s 1 a 0", // wrong arity
	}
	for _, cmd := range tests {
		t.Run(cmd, func(t *testing.T) {
			resp := x.run(t, cmd)
			expect(t, resp, "(error) unknown command")
			if resp.Code != wire.ErrUnknown {
				t.Errorf("code = %d, want UNKNOWN", resp.Code)
			}
		})
	}

	expect(t, x.Execute(nil), "(error) unknown command")
}

func TestExecutor_UnknownVerbsShareOneMetricLabel(t *testing.T) {
	te := newTestExec(t)
	m := metric.New()
	te.Executor = NewExecutor(te.ks, te.tm, te.pool, logger.Nop(), m, 0,
		func() int64 { return te.now })

	// Attacker-controlled verbs must not mint new label values.
	te.run(t, "bogus-verb-1")
	te.run(t, "bogus-verb-2 k")
	te.run(t, "get k")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	out := string(body)

	if !strings.Contains(out, `lattice_commands_total{command="unknown"} 2`) {
		t.Errorf("unknown verbs not bucketed under one label:\n%s", out)
	}
	if !strings.Contains(out, `lattice_commands_total{command="get"} 1`) {
		t.Errorf("known verb not recorded:\n%s", out)
	}
	if strings.Contains(out, "bogus-verb") {
		t.Errorf("attacker-controlled verb leaked into label values:\n%s", out)
	}
}

// ============================================================
// Large sorted-set destruction
// ============================================================

func TestExecutor_DelLargeZSetReleasesOnPool(t *testing.T) {
	x := newTestExec(t)

	for i := 0; i < DefaultLargeZSetLen; i++ {
		x.run(t, fmt.Sprintf("zadd big %d member-%d", i, i))
	}
	expect(t, x.run(t, "del big"), "(integer) 1")

	// Close joins the workers, so the release task has run by now.
	x.pool.Close()
	expect(t, x.run(t, "get big"), "(nil)")
}

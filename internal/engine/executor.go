package engine

import (
	"strconv"

	"github.com/latticekv/lattice/internal/keyspace"
	"github.com/latticekv/lattice/internal/telemetry/logger"
	"github.com/latticekv/lattice/internal/telemetry/metric"
	"github.com/latticekv/lattice/internal/timers"
	"github.com/latticekv/lattice/internal/wire"
	"github.com/latticekv/lattice/internal/worker"
)

// DefaultLargeZSetLen is the sorted-set size at or above which
// destruction is handed to the worker pool instead of running on the
// event loop.
const DefaultLargeZSetLen = 1000

// Executor turns parsed commands into responses, mutating the keyspace
// and the timer manager as a side effect. It runs only on the event-loop
// goroutine.
type Executor struct {
	ks           *keyspace.Keyspace
	tm           *timers.Manager
	pool         *worker.Pool
	log          logger.Logger
	metrics      *metric.Metrics
	largeZSetLen int
	now          func() int64
}

// NewExecutor wires an executor over the given collaborators. now returns
// wall time in milliseconds.
func NewExecutor(ks *keyspace.Keyspace, tm *timers.Manager, pool *worker.Pool, log logger.Logger, metrics *metric.Metrics, largeZSetLen int, now func() int64) *Executor {
	if largeZSetLen <= 0 {
		largeZSetLen = DefaultLargeZSetLen
	}
	return &Executor{
		ks:           ks,
		tm:           tm,
		pool:         pool,
		log:          log,
		metrics:      metrics,
		largeZSetLen: largeZSetLen,
		now:          now,
	}
}

// knownVerbs bounds the command metric's label set; anything else is
// attacker-controlled input and counts as "unknown".
var knownVerbs = map[string]bool{
	"get": true, "set": true, "del": true, "keys": true,
	"zadd": true, "zscore": true, "zrem": true, "zquery": true, "zrank": true,
	"expire": true, "ttl": true, "persist": true,
}

// Execute dispatches one command. Unknown names and mismatched arities
// produce ERR(UNKNOWN).
func (x *Executor) Execute(cmd []string) *wire.Response {
	if len(cmd) == 0 {
		return wire.Err(wire.ErrUnknown, "unknown command")
	}
	if knownVerbs[cmd[0]] {
		x.metrics.Command(cmd[0])
	} else {
		x.metrics.Command("unknown")
	}

	switch len(cmd) {
	case 1:
		if cmd[0] == "keys" {
			return x.doKeys()
		}
	case 2:
		switch cmd[0] {
		case "get":
			return x.doGet(cmd[1])
		case "del":
			return x.doDel(cmd[1])
		case "ttl":
			return x.doTTL(cmd[1])
		case "persist":
			return x.doPersist(cmd[1])
		}
	case 3:
		switch cmd[0] {
		case "set":
			return x.doSet(cmd[1], cmd[2])
		case "zscore":
			return x.doZScore(cmd[1], cmd[2])
		case "zrem":
			return x.doZRem(cmd[1], cmd[2])
		case "zrank":
			return x.doZRank(cmd[1], cmd[2])
		case "expire":
			secs, err := strconv.ParseInt(cmd[2], 10, 64)
			if err != nil {
				x.log.Debug("expire: invalid seconds argument", "arg", cmd[2])
				return wire.Err(wire.ErrInvalidArg, "invalid seconds argument")
			}
			return x.doExpire(cmd[1], secs)
		}
	case 4:
		if cmd[0] == "zadd" {
			score, err := strconv.ParseFloat(cmd[2], 64)
			if err != nil {
				x.log.Debug("zadd: invalid score argument", "arg", cmd[2])
				return wire.Err(wire.ErrInvalidArg, "invalid score argument")
			}
			return x.doZAdd(cmd[1], score, cmd[3])
		}
	case 6:
		if cmd[0] == "zquery" {
			score, err := strconv.ParseFloat(cmd[2], 64)
			if err != nil {
				x.log.Debug("zquery: invalid score argument", "arg", cmd[2])
				return wire.Err(wire.ErrInvalidArg, "invalid score argument")
			}
			offset, err := strconv.ParseUint(cmd[4], 10, 64)
			if err != nil {
				x.log.Debug("zquery: invalid offset argument", "arg", cmd[4])
				return wire.Err(wire.ErrInvalidArg, "invalid offset argument")
			}
			limit, err := strconv.ParseUint(cmd[5], 10, 64)
			if err != nil {
				x.log.Debug("zquery: invalid limit argument", "arg", cmd[5])
				return wire.Err(wire.ErrInvalidArg, "invalid limit argument")
			}
			return x.doZQuery(cmd[1], score, cmd[3], offset, limit)
		}
	}

	x.log.Debug("request contains unknown command", "cmd", cmd[0], "arity", len(cmd))
	return wire.Err(wire.ErrUnknown, "unknown command")
}

func (x *Executor) doGet(key string) *wire.Response {
	e := x.ks.Lookup(key)
	if e == nil {
		return wire.Nil()
	}
	if e.Kind() != keyspace.KindString {
		return wire.Err(wire.ErrBadType, "value is not a string")
	}
	return wire.Str(e.Str())
}

func (x *Executor) doSet(key, value string) *wire.Response {
	e := x.ks.Lookup(key)
	if e == nil {
		x.ks.Insert(keyspace.NewStringEntry(key, value))
		x.log.Debug("set: created key", "key", key)
	} else {
		// set always reshapes to a string and clears any TTL.
		x.tm.CancelTTL(&e.TTL)
		if displaced := e.SetStr(value); displaced != nil {
			x.releaseZSet(displaced)
		}
		x.log.Debug("set: updated key", "key", key)
	}
	x.metrics.SetKeys(x.ks.Len())
	return wire.Str("OK")
}

func (x *Executor) doDel(key string) *wire.Response {
	e := x.ks.Remove(key)
	if e == nil {
		return wire.Int(0)
	}
	x.DeleteEntry(e)
	x.metrics.SetKeys(x.ks.Len())
	x.log.Debug("del: deleted key", "key", key)
	return wire.Int(1)
}

func (x *Executor) doKeys() *wire.Response {
	elements := make([]*wire.Response, 0, x.ks.Len())
	x.ks.ForEach(func(e *keyspace.Entry) {
		elements = append(elements, wire.Str(e.Key()))
	})
	return wire.Arr(elements...)
}

func (x *Executor) doZAdd(key string, score float64, name string) *wire.Response {
	e := x.ks.Lookup(key)
	if e == nil {
		e = keyspace.NewSortedSetEntry(key)
		x.ks.Insert(e)
		x.metrics.SetKeys(x.ks.Len())
		x.log.Debug("zadd: created sorted set", "key", key)
	} else if e.Kind() != keyspace.KindSortedSet {
		return wire.Err(wire.ErrBadType, "value is not a sorted set")
	}

	e.ZSet().Insert(score, name)
	return wire.Int(1)
}

func (x *Executor) doZScore(key, name string) *wire.Response {
	e := x.ks.Lookup(key)
	if e == nil || e.Kind() != keyspace.KindSortedSet {
		return wire.Nil()
	}
	p, ok := e.ZSet().Lookup(name)
	if !ok {
		return wire.Nil()
	}
	return wire.Str(wire.FormatScore(p.Score))
}

func (x *Executor) doZRem(key, name string) *wire.Response {
	e := x.ks.Lookup(key)
	if e == nil {
		return wire.Int(0)
	}
	if e.Kind() != keyspace.KindSortedSet {
		return wire.Err(wire.ErrBadType, "value is not a sorted set")
	}
	if e.ZSet().Remove(name) {
		return wire.Int(1)
	}
	return wire.Int(0)
}

func (x *Executor) doZQuery(key string, score float64, name string, offset, limit uint64) *wire.Response {
	e := x.ks.Lookup(key)
	if e == nil {
		return wire.Arr()
	}
	if e.Kind() != keyspace.KindSortedSet {
		return wire.Err(wire.ErrBadType, "value is not a sorted set")
	}

	pairs := e.ZSet().RangeFrom(score, name, offset, limit)
	elements := make([]*wire.Response, 0, 2*len(pairs))
	for _, p := range pairs {
		elements = append(elements, wire.Dbl(p.Score), wire.Str(p.Name))
	}
	return wire.Arr(elements...)
}

func (x *Executor) doZRank(key, name string) *wire.Response {
	e := x.ks.Lookup(key)
	if e == nil || e.Kind() != keyspace.KindSortedSet {
		return wire.Nil()
	}
	rank, ok := e.ZSet().Rank(name)
	if !ok {
		return wire.Nil()
	}
	return wire.Int(int64(rank))
}

func (x *Executor) doExpire(key string, secs int64) *wire.Response {
	e := x.ks.Lookup(key)
	if e == nil {
		return wire.Int(0)
	}
	x.tm.ArmTTL(&e.TTL, x.now()+secs*1000)
	x.log.Debug("expire: set TTL", "key", key, "seconds", secs)
	return wire.Int(1)
}

func (x *Executor) doTTL(key string) *wire.Response {
	e := x.ks.Lookup(key)
	if e == nil {
		return wire.Int(-2)
	}
	if !e.TTL.Armed() {
		return wire.Int(-1)
	}
	return wire.Int((e.TTL.Deadline() - x.now()) / 1000)
}

func (x *Executor) doPersist(key string) *wire.Response {
	e := x.ks.Lookup(key)
	if e == nil || !e.TTL.Armed() {
		return wire.Int(0)
	}
	x.tm.CancelTTL(&e.TTL)
	x.log.Debug("persist: removed TTL", "key", key)
	return wire.Int(1)
}

// DeleteEntry destroys an entry that has already been removed from the
// keyspace: its TTL timer is cancelled and a large sorted set is released
// on the worker pool, where the worker has sole ownership.
func (x *Executor) DeleteEntry(e *keyspace.Entry) {
	x.tm.CancelTTL(&e.TTL)
	if e.Kind() == keyspace.KindSortedSet {
		x.releaseZSet(e.ZSet())
	}
}

func (x *Executor) releaseZSet(z *keyspace.SortedSet) {
	if z.Len() >= x.largeZSetLen {
		x.log.Debug("releasing large sorted set on worker pool", "len", z.Len())
		x.pool.Submit(z.Release)
		return
	}
	z.Release()
}

package uid

import (
	"net"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/ilyalabun/btm/internal/buf"
)

// Generator produces Uids carrying a fixed server id prefix, a monotonic
// millisecond timestamp and a per-process sequence number.
//
// The timestamp never decreases within a process even if the wall clock
// steps backwards, so Uids generated by one process are totally ordered by
// (timestamp, sequence).
type Generator struct {
	serverID []byte
	lastTime atomic.Int64
	sequence atomic.Int32
}

// NewGenerator creates a generator for the given server id. The id is
// coerced to US-ASCII (non-ASCII runes are dropped) and truncated to
// MaxServerIDLength bytes. An empty id falls back to the local IP address,
// which is logged as a warning: IP addresses are not stable across leases
// and make recovery ambiguous when they change.
func NewGenerator(serverID string, log zerolog.Logger) *Generator {
	id := asciiOnly(serverID)
	if len(id) == 0 {
		id = localIPServerID()
		log.Warn().
			Str("serverId", string(id)).
			Msg("no server id configured, falling back to the local IP address")
	}
	if len(id) > MaxServerIDLength {
		log.Warn().
			Int("length", len(id)).
			Int("max", MaxServerIDLength).
			Msg("server id too long, truncating")
		id = id[:MaxServerIDLength]
	}
	return &Generator{serverID: id}
}

// ServerID returns the server id prefix embedded in every generated Uid.
func (g *Generator) ServerID() []byte {
	return g.serverID
}

// Generate builds a fresh Uid.
func (g *Generator) Generate() Uid {
	b := make([]byte, 0, len(g.serverID)+timestampLength+sequenceLength)
	b = append(b, g.serverID...)
	b = buf.AppendI64BE(b, g.now())
	b = buf.AppendI32BE(b, g.sequence.Add(1))
	return Uid(b)
}

// GenerateXid builds a branch Xid for the given global transaction id with
// a freshly generated branch qualifier.
func (g *Generator) GenerateXid(gtrid Uid) Xid {
	return Xid{
		FormatID:            FormatID,
		GlobalTransactionID: gtrid,
		BranchQualifier:     g.Generate().Bytes(),
	}
}

// now returns the current time in milliseconds, clamped to be monotonic.
func (g *Generator) now() int64 {
	for {
		now := time.Now().UnixMilli()
		last := g.lastTime.Load()
		if now < last {
			now = last
		}
		if g.lastTime.CompareAndSwap(last, now) {
			return now
		}
	}
}

var asciiStripper = runes.Remove(runes.Predicate(func(r rune) bool {
	return r > unicode.MaxASCII
}))

func asciiOnly(s string) []byte {
	out, _, err := transform.String(asciiStripper, s)
	if err != nil {
		// the stripper cannot fail on valid UTF-8; fall back to dropping
		// everything rather than emitting non-ASCII bytes
		return nil
	}
	return []byte(out)
}

func localIPServerID() []byte {
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.IsLoopback() {
				continue
			}
			if ip4 := ipNet.IP.To4(); ip4 != nil {
				return []byte(ip4.String())
			}
		}
	}
	return []byte("127.0.0.1")
}

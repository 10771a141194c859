package serverdirector

import (
	"net"
	"sync"

	"github.com/MultiDragon/libpuns/internal/director"
	"github.com/MultiDragon/libpuns/pkg/wire"
)

// connState is the per-connection state machine: partial connections
// have not completed ConnectionRequest; identified ones are logged in
// but have not yet requested a zone; zoned ones can see and be seen by
// other members of their zone. Every transition is one-way forward —
// any violation of the expected order is a hard ejection.
type connState int

const (
	statePartial connState = iota
	stateIdentified
	stateZoned
)

// conn is one accepted TCP connection. writeMu serializes outbound
// writes since broadcast fan-out and a direct reply can both target
// the same connection from the engine goroutine in the course of one
// dispatch.
type conn struct {
	net.Conn
	writeMu sync.Mutex

	state connState
	oid   wire.ObjectID
	zone  uint32
}

func newConn(c net.Conn) *conn {
	return &conn{Conn: c, state: statePartial}
}

// send writes one length-prefixed frame to the connection.
func (c *conn) send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return director.WriteFrame(c.Conn, payload)
}

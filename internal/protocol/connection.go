package protocol

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/lor00x/goldap/message"

	"github.com/femtoldap/femtoldap/internal/directory"
	"github.com/femtoldap/femtoldap/internal/metrics"
)

// Connection drives one client's message loop: read, dispatch, write.
// It holds no snapshot of its own; GetSnapshot is called fresh for
// every message so a reload takes effect between requests without
// disturbing an in-flight one.
type Connection struct {
	conn        net.Conn
	reader      *bufio.Reader
	GetSnapshot func() *directory.Snapshot
	Metrics     *metrics.Metrics
	peer        string

	writeMu sync.Mutex

	bound *directory.Entry
}

func NewConnection(conn net.Conn, getSnapshot func() *directory.Snapshot, m *metrics.Metrics) *Connection {
	return &Connection{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		GetSnapshot: getSnapshot,
		Metrics:     m,
		peer:        conn.RemoteAddr().String(),
	}
}

// Serve runs the message loop until the client disconnects, a protocol
// error occurs, or ctx is canceled.
func (c *Connection) Serve(ctx context.Context) error {
	defer c.conn.Close()
	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, err := ReadMessage(c.reader)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading from %s: %w", c.peer, err)
		}
		if err := c.dispatch(msg); err != nil {
			return err
		}
	}
}

func (c *Connection) dispatch(msg *message.LDAPMessage) error {
	switch req := msg.ProtocolOp().(type) {
	case message.BindRequest:
		c.Metrics.IncRequest("bind")
		return c.handleBind(msg, req)

	case message.UnbindRequest:
		c.Metrics.IncRequest("unbind")
		c.bound = nil
		return nil

	case message.SearchRequest:
		c.Metrics.IncRequest("search")
		return c.handleSearch(msg, req)

	default:
		c.Metrics.IncRequest("unsupported")
		slog.Warn("unsupported LDAP operation, ignoring", "peer", c.peer, "operation", msg.ProtocolOpName())
		return nil
	}
}

func (c *Connection) handleBind(msg *message.LDAPMessage, req message.BindRequest) error {
	dn, err := directory.ParseDN(string(req.Name()))
	if err != nil {
		slog.Warn("bind with malformed DN", "peer", c.peer, "error", err)
		c.Metrics.IncFailedBind()
		return c.writeResponse(msg, bindResponse(message.ResultCodeInvalidCredentials, "Bind failed"))
	}

	simple, ok := req.Authentication().(message.AuthenticationSimple)
	if !ok {
		slog.Warn("SASL bind attempted, rejecting", "peer", c.peer, "dn", dn.Display())
		c.Metrics.IncFailedBind()
		return c.writeResponse(msg, bindResponse(message.ResultCodeInvalidCredentials, "SASL bind not supported"))
	}

	if dn.IsEmpty() && string(simple) == "" {
		// anonymous bind: always succeeds, leaves nothing bound.
		c.bound = nil
		c.Metrics.IncSuccessfulBind()
		return c.writeResponse(msg, bindResponse(message.ResultCodeSuccess, ""))
	}

	snap := c.GetSnapshot()
	entry, ok := snap.Bind(dn, string(simple))
	if !ok {
		c.Metrics.IncFailedBind()
		return c.writeResponse(msg, bindResponse(message.ResultCodeInvalidCredentials, "Bind failed"))
	}

	c.bound = entry
	c.Metrics.IncSuccessfulBind()
	return c.writeResponse(msg, bindResponse(message.ResultCodeSuccess, ""))
}

func (c *Connection) handleSearch(msg *message.LDAPMessage, req message.SearchRequest) error {
	base, err := directory.ParseDN(string(req.BaseObject()))
	if err != nil {
		slog.Warn("search with malformed base DN", "peer", c.peer, "error", err)
		return c.writeResponse(msg, searchResultDone(message.ResultCodeOperationsError, ""))
	}

	if !base.IsEmpty() {
		if c.bound == nil {
			return c.writeResponse(msg, searchResultDone(message.ResultCodeInappropriateAuthentication, base.String()))
		}
		allowed := (c.bound.ACL.CanAccessSelf && c.bound.DN.HasSuffix(base)) ||
			c.bound.ACL.CanAccessDN(c.bound.DN, base)
		if !allowed {
			return c.writeResponse(msg, searchResultDone(message.ResultCodeInappropriateAuthentication, base.String()))
		}
	}

	snap := c.GetSnapshot()
	filter := convertFilter(req.Filter())
	candidates := snap.Search(base, filter)

	visible := make([]*directory.Entry, 0, len(candidates))
	for _, e := range candidates {
		if e.DN.IsEmpty() {
			visible = append(visible, e)
			continue
		}
		if c.bound == nil {
			continue
		}
		if c.bound.ACL.CanAccessDN(c.bound.DN, e.DN) {
			visible = append(visible, e)
		}
	}

	if len(visible) == 0 {
		return c.writeResponse(msg, searchResultDone(message.ResultCodeNoSuchObject, base.String()))
	}

	requested := attributeNames(req.Attributes())
	for _, e := range visible {
		if err := c.writeResponse(msg, searchResultEntry(e, requested)); err != nil {
			return err
		}
	}
	return c.writeResponse(msg, searchResultDone(message.ResultCodeSuccess, base.String()))
}

func (c *Connection) writeResponse(msg *message.LDAPMessage, op message.ProtocolOp) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	out := message.NewLDAPMessageWithProtocolOp(op)
	out.SetMessageID(int(msg.MessageID()))
	return WriteMessage(c.conn, out)
}

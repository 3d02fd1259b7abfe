// Package router drives channel membership and fan-out from connection
// lifecycle events.
//
// The transport calls OnOpen once per connection, OnMessage for every
// inbound frame in arrival order, OnError for transport faults and OnClose
// exactly once when the connection terminates.
package router

import (
	"errors"
	"log/slog"

	"github.com/Tyrowin/channelrelay/internal/protocol"
	"github.com/Tyrowin/channelrelay/internal/registry"
)

// Fixed notices sent to clients.
const (
	WelcomeText       = "Please join a channel to start chatting"
	PeerJoinedText    = "A new user has joined the channel"
	PeerLeftText      = "A user has left the channel"
	ChannelRequired   = "Channel name is required"
	MembershipMissing = "You must join the channel first"
)

// Router classifies inbound frames and applies them to a Registry.
type Router struct {
	registry *registry.Registry
	log      *slog.Logger
}

// New returns a Router operating on reg.
func New(reg *registry.Registry, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{registry: reg, log: log}
}

// OnOpen greets a newly established connection.
func (r *Router) OnOpen(conn registry.Connection) {
	r.log.Info("client connected", "conn", conn.ID())
	r.send(conn, protocol.System(WelcomeText, ""))
}

// OnMessage handles one inbound frame. Malformed frames are logged and
// dropped without a reply.
func (r *Router) OnMessage(conn registry.Connection, payload []byte) {
	msg, err := protocol.Decode(payload)
	if err != nil {
		var invalid *protocol.InvalidChannel
		if errors.As(err, &invalid) {
			r.log.Debug("rejected message without channel", "conn", conn.ID(), "type", invalid.Type)
			r.send(conn, protocol.Error(ChannelRequired))
			return
		}
		r.log.Warn("dropping malformed message", "conn", conn.ID(), "error", err)
		return
	}

	switch m := msg.(type) {
	case protocol.Join:
		r.join(conn, m)
	case protocol.Relay:
		r.relay(conn, m)
	default:
		r.log.Debug("ignoring message", "conn", conn.ID(), "type", msg.Kind())
	}
}

// OnClose removes conn from all channels and tells the remaining members.
func (r *Router) OnClose(conn registry.Connection) {
	departures := r.registry.Leave(conn)
	r.log.Info("client disconnected", "conn", conn.ID(), "channels", len(departures))

	for _, d := range departures {
		notice := protocol.System(PeerLeftText, d.Channel)
		for _, member := range d.Remaining {
			r.send(member, notice)
		}
	}
}

// OnError records a transport fault. Cleanup is left to OnClose.
func (r *Router) OnError(conn registry.Connection, err error) {
	r.log.Error("connection error", "conn", conn.ID(), "error", err)
}

func (r *Router) join(conn registry.Connection, m protocol.Join) {
	res := r.registry.Join(m.Channel, conn)
	r.log.Info("client joined channel", "conn", conn.ID(), "channel", m.Channel, "members", res.Size)

	r.send(conn, protocol.System("Joined channel: "+m.Channel, m.Channel))
	r.send(conn, protocol.System(protocol.JoinResult{
		ID:     m.ID,
		Result: "Connected to channel: " + m.Channel,
	}, m.Channel))

	notice := protocol.System(PeerJoinedText, m.Channel)
	for _, peer := range r.registry.BroadcastTargets(m.Channel, conn) {
		r.send(peer, notice)
	}
}

func (r *Router) relay(conn registry.Connection, m protocol.Relay) {
	diag := protocol.Inspect(m.Message)
	switch {
	case diag.Command != "":
		r.log.Debug("relay command", "conn", conn.ID(), "channel", m.Channel, "command", diag.Command, "id", string(m.ID))
	case diag.HasResult:
		r.log.Debug("relay response", "conn", conn.ID(), "channel", m.Channel, "id", string(m.ID))
	}

	if !r.registry.IsMember(m.Channel, conn) {
		r.send(conn, protocol.Error(MembershipMissing))
		return
	}

	targets := r.registry.BroadcastTargets(m.Channel, conn)
	if len(targets) == 0 {
		r.log.Warn("no other clients in channel", "conn", conn.ID(), "channel", m.Channel)
		return
	}

	out := protocol.Broadcast(m.Message, m.Channel)
	for _, target := range targets {
		r.send(target, out)
	}
	r.log.Debug("broadcast", "conn", conn.ID(), "channel", m.Channel, "type", m.Type, "targets", len(targets))
}

// send delivers one frame. Closed peers are skipped and failures are only
// logged so a fan-out always reaches every remaining target.
func (r *Router) send(conn registry.Connection, out protocol.Outbound) {
	if !conn.IsOpen() {
		return
	}
	data, err := protocol.Encode(out)
	if err != nil {
		r.log.Error("dropping outbound message", "conn", conn.ID(), "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		r.log.Warn("send failed", "conn", conn.ID(), "type", out.Type, "error", err)
	}
}

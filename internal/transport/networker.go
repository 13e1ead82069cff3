// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package transport implements C5, the networker: one long-lived
// bidirectional websocket connection per validator, framing/unframing
// bytes without interpreting ledger payloads, and an event sink the
// pool manager's state machines drive.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/certen/indysdk/internal/obslog"
)

// EventKind identifies the shape of an Event emitted upward to the
// pool manager (spec §4.4).
type EventKind string

const (
	EventReply            EventKind = "Reply"
	EventReqACK            EventKind = "ReqACK"
	EventReqNACK           EventKind = "ReqNACK"
	EventReject            EventKind = "Reject"
	EventLedgerStatus      EventKind = "LedgerStatus"
	EventConsistencyProof  EventKind = "ConsistencyProof"
	EventCatchupRep        EventKind = "CatchupRep"
	EventTimeout           EventKind = "Timeout"
	EventPing              EventKind = "Ping"
	EventTransportError    EventKind = "TransportError"
)

// wire op codes the networker inspects only to route events; the
// payload itself is passed through untouched (spec §4.4, "no
// application-level parsing").
const (
	opReply            = "REPLY"
	opReqACK           = "REQACK"
	opReqNACK          = "REQNACK"
	opReject           = "REJECT"
	opLedgerStatus     = "LEDGER_STATUS"
	opConsistencyProof = "CONSISTENCY_PROOF"
	opCatchupRep       = "CATCHUP_REP"
	opPing             = "PING"
)

var opToEventKind = map[string]EventKind{
	opReply:            EventReply,
	opReqACK:           EventReqACK,
	opReqNACK:          EventReqNACK,
	opReject:           EventReject,
	opLedgerStatus:     EventLedgerStatus,
	opConsistencyProof: EventConsistencyProof,
	opCatchupRep:       EventCatchupRep,
	opPing:             EventPing,
}

// envelope is the minimal shape the networker parses from an inbound
// frame purely to decide which EventKind to tag it with.
type envelope struct {
	Op    string `json:"op"`
	ReqID uint64 `json:"reqId"`
}

// Event is emitted upward from the networker to the pool manager.
type Event struct {
	Kind    EventKind
	ReqID   uint64
	Node    string
	Payload []byte
	Err     error
}

// Node describes one validator's transport endpoint.
type Node struct {
	Alias string
	URL   string
}

type pendingKey struct {
	reqID uint64
	node  string
}

type connection struct {
	alias string
	ws    *websocket.Conn
	send  chan []byte
	once  sync.Once
	done  chan struct{}
}

func (c *connection) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// Networker holds one connection per validator and exposes the event
// sink the pool manager's state machines drive.
type Networker struct {
	mu       sync.Mutex
	order    []Node // shuffled once at construction
	conns    map[string]*connection
	timers   map[pendingKey]*time.Timer
	excluded map[uint64]map[string]bool
	lastNode map[uint64]string
	cursor   int
	timeout  time.Duration

	events chan Event
	log    *obslog.Logger
}

// Open dials every node's websocket endpoint and begins relaying
// frames. The returned Networker owns the connections until Close.
func Open(ctx context.Context, nodes []Node, requestTimeout time.Duration) (*Networker, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("transport: at least one node is required")
	}

	shuffled := append([]Node(nil), nodes...)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	n := &Networker{
		order:    shuffled,
		conns:    make(map[string]*connection, len(nodes)),
		timers:   make(map[pendingKey]*time.Timer),
		excluded: make(map[uint64]map[string]bool),
		lastNode: make(map[uint64]string),
		timeout:  requestTimeout,
		events:   make(chan Event, 256),
		log:      obslog.Default().Component("transport"),
	}

	for _, node := range nodes {
		conn, err := n.dial(ctx, node)
		if err != nil {
			n.Close()
			return nil, fmt.Errorf("transport: dial %s: %w", node.Alias, err)
		}
		n.conns[node.Alias] = conn
		go n.readLoop(conn)
	}

	return n, nil
}

func (n *Networker) dial(ctx context.Context, node Node) (*connection, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, node.URL, nil)
	if err != nil {
		return nil, err
	}
	conn := &connection{alias: node.Alias, ws: ws, send: make(chan []byte, 64), done: make(chan struct{})}
	go n.writeLoop(conn)
	return conn, nil
}

func (n *Networker) writeLoop(conn *connection) {
	for {
		select {
		case <-conn.done:
			return
		case msg := <-conn.send:
			if err := conn.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				n.emit(Event{Kind: EventTransportError, Node: conn.alias, Err: err})
				return
			}
		}
	}
}

func (n *Networker) readLoop(conn *connection) {
	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			select {
			case <-conn.done:
			default:
				n.emit(Event{Kind: EventTransportError, Node: conn.alias, Err: err})
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			n.emit(Event{Kind: EventTransportError, Node: conn.alias, Err: fmt.Errorf("malformed frame: %w", err)})
			continue
		}
		kind, ok := opToEventKind[env.Op]
		if !ok {
			n.emit(Event{Kind: EventTransportError, Node: conn.alias, Err: fmt.Errorf("unknown op %q", env.Op)})
			continue
		}
		// Timeout bookkeeping on (reqID, node) is the owning state
		// machine's call (spec §4.5): ReqACK only extends, a Reply
		// normally terminates the SM which itself cleans up. The
		// networker only frames/unframes and tags events with the
		// emitting node's alias.
		n.emit(Event{Kind: kind, ReqID: env.ReqID, Node: conn.alias, Payload: data})
	}
}

func (n *Networker) emit(ev Event) {
	select {
	case n.events <- ev:
	default:
		n.log.Warn("transport: event channel full, dropping event", "kind", ev.Kind, "node", ev.Node)
	}
}

// Events returns the channel the pool manager drains events from.
func (n *Networker) Events() <-chan Event { return n.events }

// SendOneRequest selects one validator, round-robin over the shuffled
// node list, excluding nodes that previously timed out on reqID, and
// sends msg to it. It arms a timeout for the (reqID, node) pair.
func (n *Networker) SendOneRequest(msg []byte, reqID uint64) error {
	n.mu.Lock()
	node, err := n.pickNodeLocked(reqID)
	if err != nil {
		n.mu.Unlock()
		return err
	}
	n.lastNode[reqID] = node.Alias
	conn := n.conns[node.Alias]
	n.armTimeoutLocked(reqID, node.Alias)
	n.mu.Unlock()

	return n.sendTo(conn, msg)
}

// SendAllRequest broadcasts msg to every connected validator, arming a
// timeout for each.
func (n *Networker) SendAllRequest(msg []byte, reqID uint64) error {
	n.mu.Lock()
	targets := make([]*connection, 0, len(n.conns))
	for _, node := range n.order {
		conn, ok := n.conns[node.Alias]
		if !ok {
			continue
		}
		targets = append(targets, conn)
		n.armTimeoutLocked(reqID, node.Alias)
	}
	n.mu.Unlock()

	var firstErr error
	for _, conn := range targets {
		if err := n.sendTo(conn, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Resend excludes the previously chosen node for reqID and sends the
// same request to a newly selected one, reselection and delivery in one
// step. The networker does not retain the original message (it only
// frames bytes), so the caller (owning SM) passes msg again.
func (n *Networker) Resend(msg []byte, reqID uint64) error {
	n.mu.Lock()
	if prev, ok := n.lastNode[reqID]; ok {
		n.excludeLocked(reqID, prev)
	}
	node, err := n.pickNodeLocked(reqID)
	if err != nil {
		n.mu.Unlock()
		return err
	}
	n.lastNode[reqID] = node.Alias
	conn := n.conns[node.Alias]
	n.armTimeoutLocked(reqID, node.Alias)
	n.mu.Unlock()

	return n.sendTo(conn, msg)
}

// ExtendTimeout pushes the deadline for (reqID, node) forward by the
// networker's configured timeout, used when a ReqACK is received.
func (n *Networker) ExtendTimeout(reqID uint64, node string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.armTimeoutLocked(reqID, node)
}

// CleanTimeout cancels the timeout for (reqID, node); node == "" cancels
// every outstanding timeout for reqID.
func (n *Networker) CleanTimeout(reqID uint64, node string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if node != "" {
		n.cancelTimerLocked(pendingKey{reqID: reqID, node: node})
		return
	}
	for key := range n.timers {
		if key.reqID == reqID {
			n.cancelTimerLocked(key)
		}
	}
	delete(n.excluded, reqID)
	delete(n.lastNode, reqID)
}

// Pong sends a keepalive acknowledgment to node in response to an
// inbound Ping event.
func (n *Networker) Pong(node string) error {
	n.mu.Lock()
	conn, ok := n.conns[node]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("transport: unknown node %q", node)
	}
	frame, err := json.Marshal(map[string]string{"op": "PONG"})
	if err != nil {
		return err
	}
	return n.sendTo(conn, frame)
}

// Close tears down every connection and cancels outstanding timers.
func (n *Networker) Close() error {
	n.mu.Lock()
	for _, timer := range n.timers {
		timer.Stop()
	}
	n.timers = make(map[pendingKey]*time.Timer)
	conns := make([]*connection, 0, len(n.conns))
	for _, c := range n.conns {
		conns = append(conns, c)
	}
	n.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
	return nil
}

func (n *Networker) sendTo(conn *connection, msg []byte) error {
	if conn == nil {
		return fmt.Errorf("transport: no connection for target node")
	}
	select {
	case conn.send <- msg:
		return nil
	case <-conn.done:
		return fmt.Errorf("transport: connection to %s is closed", conn.alias)
	}
}

// pickNodeLocked must be called with n.mu held.
func (n *Networker) pickNodeLocked(reqID uint64) (Node, error) {
	excluded := n.excluded[reqID]
	candidates := make([]Node, 0, len(n.order))
	for _, node := range n.order {
		if excluded != nil && excluded[node.Alias] {
			continue
		}
		if _, connected := n.conns[node.Alias]; !connected {
			continue
		}
		candidates = append(candidates, node)
	}
	if len(candidates) == 0 {
		return Node{}, fmt.Errorf("transport: no eligible validator remains for reqId %d", reqID)
	}
	node := candidates[n.cursor%len(candidates)]
	n.cursor++
	return node, nil
}

func (n *Networker) excludeLocked(reqID uint64, node string) {
	set, ok := n.excluded[reqID]
	if !ok {
		set = make(map[string]bool)
		n.excluded[reqID] = set
	}
	set[node] = true
}

func (n *Networker) armTimeoutLocked(reqID uint64, node string) {
	key := pendingKey{reqID: reqID, node: node}
	n.cancelTimerLocked(key)
	n.timers[key] = time.AfterFunc(n.timeout, func() {
		n.mu.Lock()
		delete(n.timers, key)
		n.excludeLocked(reqID, node)
		n.mu.Unlock()
		n.emit(Event{Kind: EventTimeout, ReqID: reqID, Node: node})
	})
}

func (n *Networker) cancelTimerLocked(key pendingKey) {
	if timer, ok := n.timers[key]; ok {
		timer.Stop()
		delete(n.timers, key)
	}
}

// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package pool

import "github.com/certen/indysdk/internal/transport"

// timeoutSentinel is the raw-response placeholder the Full SM records
// for a node that timed out or nacked instead of replying (spec
// §4.5.3 "Timeouts and nacks are folded into the same map with a
// sentinel").
const timeoutSentinel = "<no response>"

// fullSM implements spec §4.5.3: broadcast read, terminating once
// every known node has answered (with a real reply or the sentinel).
// It never tallies for consensus.
type fullSM struct {
	base

	expected int
	byNode   map[string]string
}

func newFullSM(reqID uint64, msg []byte, net *transport.Networker, topo *Topology) *fullSM {
	return &fullSM{
		base:     base{reqID: reqID, msg: msg, net: net, f: topo.F, out: make(chan outcome, 1)},
		expected: len(topo.Nodes),
		byNode:   make(map[string]string),
	}
}

func (s *fullSM) finished() bool { return s.done }

func (s *fullSM) onEvent(ev transport.Event) {
	if s.done {
		return
	}
	switch ev.Kind {
	case transport.EventReply:
		s.record(ev.Node, string(ev.Payload))
	case transport.EventReqNACK, transport.EventReject, transport.EventTimeout:
		s.record(ev.Node, timeoutSentinel)
	case transport.EventReqACK:
		s.net.ExtendTimeout(s.reqID, ev.Node)
	}
}

func (s *fullSM) record(node, value string) {
	if _, already := s.byNode[node]; already {
		return
	}
	s.byNode[node] = value
	if len(s.byNode) >= s.expected {
		result := make(map[string]string, len(s.byNode))
		for k, v := range s.byNode {
			result[k] = v
		}
		s.deliver(result, nil)
	}
}

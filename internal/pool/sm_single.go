// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package pool

import (
	"github.com/certen/indysdk/internal/crypto"
	"github.com/certen/indysdk/internal/ierr"
	"github.com/certen/indysdk/internal/transport"
)

// singleSM implements spec §4.5.1: a read the node can back with a
// signed Merkle state proof, accepted either by bucket majority (> f
// matching replies) or by a single valid state proof.
type singleSM struct {
	base
	parser Parser

	nacks   int
	buckets map[string]int
	values  map[string]any // canonical bucket key -> the reply's full result
}

func newSingleSM(reqID uint64, msg []byte, net *transport.Networker, topo *Topology, parser Parser) *singleSM {
	return &singleSM{
		base:    base{reqID: reqID, msg: msg, net: net, f: topo.F, verKeys: topo.VerKeys, out: make(chan outcome, 1)},
		parser:  parser,
		buckets: make(map[string]int),
		values:  make(map[string]any),
	}
}

func (s *singleSM) finished() bool { return s.done }

func (s *singleSM) onEvent(ev transport.Event) {
	if s.done {
		return
	}
	switch ev.Kind {
	case transport.EventReply:
		s.onReply(ev)
	case transport.EventReqNACK:
		s.nacks++
		if s.nacks > s.f {
			s.deliver(nil, ierr.New(ierr.CodePoolTimeout, "too many REQNACKs, consensus unreachable"))
			return
		}
		s.resend(ev.Node)
	case transport.EventReject, transport.EventTimeout:
		s.resend(ev.Node)
	case transport.EventReqACK:
		s.net.ExtendTimeout(s.reqID, ev.Node)
	}
}

func (s *singleSM) onReply(ev transport.Event) {
	env, err := parseReply(ev.Payload)
	if err != nil {
		s.resend(ev.Node)
		return
	}

	cleaned, full, err := resultWithoutProof(env.Result)
	if err != nil {
		s.resend(ev.Node)
		return
	}

	if s.parser != nil {
		if nodes, ms, perr := s.parser(full); perr == nil {
			if verr := verifyStateProof(nodes, ms, s.verKeys, s.f); verr == nil {
				s.deliver(full, nil)
				return
			}
		}
	}

	key, err := crypto.CanonicalJSON(cleaned)
	if err != nil {
		s.resend(ev.Node)
		return
	}
	s.buckets[string(key)]++
	s.values[string(key)] = full
	if s.buckets[string(key)] > s.f {
		s.deliver(full, nil)
		return
	}

	s.resend(ev.Node)
}

func (s *singleSM) resend(node string) {
	if err := s.net.Resend(s.msg, s.reqID); err != nil {
		s.deliver(nil, ierr.Wrap(ierr.CodePoolTimeout, err, "no eligible validator remains"))
	}
}

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

// consensusSM implements spec §4.5.2: same bucketing as Single but a
// state proof can never shortcut acceptance, and divergence that makes
// consensus unreachable fails the request outright.
type consensusSM struct {
	base

	nacks      int
	timeouts   int
	repliesSeen int
	n          int
	buckets    map[string]int
	values     map[string]any
}

func newConsensusSM(reqID uint64, msg []byte, net *transport.Networker, topo *Topology) *consensusSM {
	return &consensusSM{
		base:    base{reqID: reqID, msg: msg, net: net, f: topo.F, out: make(chan outcome, 1)},
		n:       len(topo.Nodes),
		buckets: make(map[string]int),
		values:  make(map[string]any),
	}
}

func (s *consensusSM) finished() bool { return s.done }

func (s *consensusSM) onEvent(ev transport.Event) {
	if s.done {
		return
	}
	switch ev.Kind {
	case transport.EventReply:
		s.onReply(ev)
	case transport.EventReqNACK:
		s.nacks++
		s.checkUnreachable()
		if !s.done {
			s.resend()
		}
	case transport.EventReject:
		s.resend()
	case transport.EventTimeout:
		s.timeouts++
		s.checkUnreachable()
		if !s.done {
			s.resend()
		}
	case transport.EventReqACK:
		s.net.ExtendTimeout(s.reqID, ev.Node)
	}
}

func (s *consensusSM) onReply(ev transport.Event) {
	env, err := parseReply(ev.Payload)
	if err != nil {
		s.resend()
		return
	}
	cleaned, full, err := resultWithoutProof(env.Result)
	if err != nil {
		s.resend()
		return
	}
	key, err := crypto.CanonicalJSON(cleaned)
	if err != nil {
		s.resend()
		return
	}
	s.repliesSeen++
	s.buckets[string(key)]++
	s.values[string(key)] = full
	if s.buckets[string(key)] > s.f {
		s.deliver(full, nil)
		return
	}
	s.checkUnreachable()
	if !s.done {
		s.resend()
	}
}

// checkUnreachable implements the spec's "consensus reachable" test:
// max_matching + (N - replies_seen - timeouts - nacks) > f.
func (s *consensusSM) checkUnreachable() {
	maxMatching := 0
	for _, count := range s.buckets {
		if count > maxMatching {
			maxMatching = count
		}
	}
	remaining := s.n - s.repliesSeen - s.timeouts - s.nacks
	if maxMatching+remaining <= s.f {
		s.deliver(nil, ierr.New(ierr.CodePoolTimeout, "consensus unreachable"))
	}
}

func (s *consensusSM) resend() {
	if err := s.net.Resend(s.msg, s.reqID); err != nil {
		s.deliver(nil, ierr.Wrap(ierr.CodePoolTimeout, err, "no eligible validator remains"))
	}
}

// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package pool

import (
	"encoding/base64"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/certen/indysdk/internal/ierr"
	"github.com/certen/indysdk/internal/merkle"
	"github.com/certen/indysdk/internal/transport"
)

type catchupRepFrame struct {
	Op         string            `json:"op"`
	ReqID      uint64            `json:"reqId"`
	Txns       map[string]string `json:"txns"`      // seqNo -> base64 opaque transaction bytes
	ConsProof  []string          `json:"consProof"` // base64 hash nodes, leaf-to-root order
	CatchupTill int              `json:"catchupTill"`
}

// catchupSingleSM implements spec §4.5.4: fetch a transaction range
// from one node, append it to the shared local tree in order, and
// confirm the result is consistent with a previously discovered
// target root before persisting.
type catchupSingleSM struct {
	base

	tree       *merkle.Log
	targetRoot []byte
	targetSize int
	synced     func(*merkle.Log)
}

func newCatchupSingleSM(reqID uint64, msg []byte, net *transport.Networker, topo *Topology, tree *merkle.Log, targetRoot []byte, targetSize int, synced func(*merkle.Log)) *catchupSingleSM {
	return &catchupSingleSM{
		base:       base{reqID: reqID, msg: msg, net: net, f: topo.F, out: make(chan outcome, 1)},
		tree:       tree,
		targetRoot: targetRoot,
		targetSize: targetSize,
		synced:     synced,
	}
}

func (s *catchupSingleSM) finished() bool { return s.done }

func (s *catchupSingleSM) onEvent(ev transport.Event) {
	if s.done {
		return
	}
	switch ev.Kind {
	case transport.EventCatchupRep:
		s.onCatchupRep(ev)
	case transport.EventReject, transport.EventTimeout, transport.EventTransportError:
		s.resend()
	case transport.EventReqACK:
		s.net.ExtendTimeout(s.reqID, ev.Node)
	}
}

func (s *catchupSingleSM) onCatchupRep(ev transport.Event) {
	var frame catchupRepFrame
	if err := json.Unmarshal(ev.Payload, &frame); err != nil {
		s.resend()
		return
	}

	seqNos := make([]int, 0, len(frame.Txns))
	for k := range frame.Txns {
		n, err := strconv.Atoi(k)
		if err != nil {
			s.resend()
			return
		}
		seqNos = append(seqNos, n)
	}
	sort.Ints(seqNos)

	for _, seq := range seqNos {
		data, err := base64.StdEncoding.DecodeString(frame.Txns[strconv.Itoa(seq)])
		if err != nil {
			s.resend()
			return
		}
		s.tree.Append(data)
	}

	proof := make([][]byte, 0, len(frame.ConsProof))
	for _, p := range frame.ConsProof {
		decoded, err := base64.StdEncoding.DecodeString(p)
		if err != nil {
			s.resend()
			return
		}
		proof = append(proof, decoded)
	}

	if err := merkle.VerifyConsistency(s.tree.Count(), s.targetSize, proof, s.tree.RootHash(), s.targetRoot); err != nil {
		s.deliver(nil, ierr.Wrap(ierr.CodeLedgerNotFound, err, "catchup reply is not consistent with the target root"))
		return
	}

	s.synced(s.tree)
	s.deliver(s.tree, nil)
}

func (s *catchupSingleSM) resend() {
	if err := s.net.Resend(s.msg, s.reqID); err != nil {
		s.deliver(nil, ierr.Wrap(ierr.CodePoolTimeout, err, "no eligible validator remains for catchup"))
	}
}

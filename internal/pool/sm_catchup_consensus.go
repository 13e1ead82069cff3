// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package pool

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/certen/indysdk/internal/ierr"
	"github.com/certen/indysdk/internal/merkle"
	"github.com/certen/indysdk/internal/transport"
)

type ledgerStatusFrame struct {
	Op         string   `json:"op"`
	ReqID      uint64   `json:"reqId"`
	MerkleRoot string   `json:"merkleRoot"` // base64
	TxnSeqNo   int      `json:"txnSeqNo"`
	ConsProof  []string `json:"consProof"` // base64 hashes, local root -> this root
}

// Synced is delivered when the local tree already matches consensus.
type Synced struct{ Tree *merkle.Log }

// CatchupTarget is delivered when consensus points at a strictly newer
// root the pool manager should now fetch via CatchupSingle.
type CatchupTarget struct {
	Root []byte
	Size int
}

type statusGroup struct {
	root  []byte
	size  int
	proof [][]byte
	count int
}

// catchupConsensusSM implements spec §4.5.5.
type catchupConsensusSM struct {
	base

	n          int
	tree       *merkle.Log
	localRoot  []byte
	localSize  int
	groups     map[string]*statusGroup
	repliesSeen int
	timeouts    int
}

func newCatchupConsensusSM(reqID uint64, msg []byte, net *transport.Networker, topo *Topology, tree *merkle.Log) *catchupConsensusSM {
	return &catchupConsensusSM{
		base:      base{reqID: reqID, msg: msg, net: net, f: topo.F, out: make(chan outcome, 1)},
		n:         len(topo.Nodes),
		tree:      tree,
		localRoot: tree.RootHash(),
		localSize: tree.Count(),
		groups:    make(map[string]*statusGroup),
	}
}

func (s *catchupConsensusSM) finished() bool { return s.done }

func (s *catchupConsensusSM) onEvent(ev transport.Event) {
	if s.done {
		return
	}
	switch ev.Kind {
	case transport.EventLedgerStatus:
		s.onLedgerStatus(ev)
	case transport.EventTimeout, transport.EventTransportError:
		s.timeouts++
		s.evaluate()
	}
}

func (s *catchupConsensusSM) onLedgerStatus(ev transport.Event) {
	var frame ledgerStatusFrame
	if err := json.Unmarshal(ev.Payload, &frame); err != nil {
		s.timeouts++
		s.evaluate()
		return
	}
	root, err := base64.StdEncoding.DecodeString(frame.MerkleRoot)
	if err != nil {
		s.timeouts++
		s.evaluate()
		return
	}
	proof := make([][]byte, 0, len(frame.ConsProof))
	for _, p := range frame.ConsProof {
		decoded, derr := base64.StdEncoding.DecodeString(p)
		if derr != nil {
			s.timeouts++
			s.evaluate()
			return
		}
		proof = append(proof, decoded)
	}

	key := fmt.Sprintf("%x|%d", root, frame.TxnSeqNo)
	g, ok := s.groups[key]
	if !ok {
		g = &statusGroup{root: root, size: frame.TxnSeqNo, proof: proof}
		s.groups[key] = g
	}
	g.count++
	s.repliesSeen++
	s.evaluate()
}

func (s *catchupConsensusSM) evaluate() {
	threshold := s.f + 1

	if g, ok := s.groups[fmt.Sprintf("%x|%d", s.localRoot, s.localSize)]; ok && g.count >= threshold {
		s.deliver(&Synced{Tree: s.tree}, nil)
		return
	}

	for _, g := range s.groups {
		if g.count < threshold || g.size <= s.localSize {
			continue
		}
		if err := merkle.VerifyConsistency(s.localSize, g.size, g.proof, s.localRoot, g.root); err == nil {
			s.deliver(&CatchupTarget{Root: g.root, Size: g.size}, nil)
			return
		}
	}

	maxCount := 0
	for _, g := range s.groups {
		if g.count > maxCount {
			maxCount = g.count
		}
	}
	remaining := s.n - s.repliesSeen - s.timeouts
	if maxCount+remaining <= s.f {
		s.deliver(nil, ierr.New(ierr.CodeLedgerNotFound, "no quorum reachable for any ledger status, catchup target not found"))
	}
}

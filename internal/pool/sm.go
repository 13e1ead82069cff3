// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package pool

import (
	"encoding/json"

	"github.com/certen/indysdk/internal/crypto/bls"
	"github.com/certen/indysdk/internal/ierr"
	"github.com/certen/indysdk/internal/transport"
)

// outcome is what a state machine delivers to the caller blocked on
// its request, exactly once, when it reaches Finish (spec §4.5.6).
type outcome struct {
	value any
	err   error
}

// stateMachine is the common shape of every request SM in spec §4.5.
// The pool driver routes networker events to the SM owning their
// req_id and calls onEvent. cancel delivers the uniform cancellation
// error used when the pool is closed (spec §5).
type stateMachine interface {
	onEvent(ev transport.Event)
	finished() bool
	cancel()
}

// errCancelled is delivered to every outstanding caller when the pool
// is closed (spec §5 "Cancellation").
var errCancelled = ierr.New(ierr.CodePoolTerminated, "pool closed while request was outstanding")

// base carries the fields every concrete SM needs: where to route
// networker calls, the fault threshold and known signer keys, and the
// one-shot delivery channel.
type base struct {
	reqID   uint64
	msg     []byte
	net     *transport.Networker
	f       int
	verKeys map[string]*bls.PublicKey
	out     chan outcome
	done    bool
}

func (b *base) deliver(value any, err error) {
	if b.done {
		return
	}
	b.done = true
	b.net.CleanTimeout(b.reqID, "")
	b.out <- outcome{value: value, err: err}
	close(b.out)
}

// cancel satisfies stateMachine for every concrete SM via embedding; it
// delivers errCancelled to whatever caller is blocked on this request.
func (b *base) cancel() {
	b.deliver(nil, errCancelled)
}

// replyEnvelope is the minimal shape every REPLY/REQACK/REQNACK/REJECT
// frame carries; SMs parse no further than this plus, for Single, the
// result's state proof fields.
type replyEnvelope struct {
	Op     string          `json:"op"`
	ReqID  uint64          `json:"reqId"`
	Result json.RawMessage `json:"result"`
	Reason string          `json:"reason"`
}

func parseReply(payload []byte) (replyEnvelope, error) {
	var env replyEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return replyEnvelope{}, ierr.Wrap(ierr.CodeInvalidStructure, err, "parse reply envelope")
	}
	return env, nil
}

// resultWithoutProof strips state_proof/stateProofFrom from a parsed
// result object and returns both the cleaned map (for bucketing) and
// the original map (for state-proof extraction).
func resultWithoutProof(raw json.RawMessage) (cleaned map[string]any, full map[string]any, err error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "parse reply result")
	}
	clean := make(map[string]any, len(m))
	for k, v := range m {
		if k == "state_proof" || k == "stateProofFrom" {
			continue
		}
		clean[k] = v
	}
	return clean, m, nil
}

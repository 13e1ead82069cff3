// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package pool implements C6 (the per-request state machines of spec
// §4.5) and C7 (the pool manager of spec §4.6): it drives a Networker,
// owns the local Merkle log, demultiplexes events to one state machine
// per outstanding request, and exposes open/submit_request/
// sign_and_submit/close to callers.
package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/certen/indysdk/internal/crypto"
	"github.com/certen/indysdk/internal/handle"
	"github.com/certen/indysdk/internal/ierr"
	"github.com/certen/indysdk/internal/merkle"
	"github.com/certen/indysdk/internal/obslog"
	"github.com/certen/indysdk/internal/transport"
)

const maxCatchupRounds = 5

// Signer signs a canonicalized request on behalf of a DID. Kept
// narrow and wallet-agnostic, the same way ledgercache.Fetcher
// decouples the cache from the pool: pool does not need to know how
// the signing key for did is stored.
type Signer interface {
	Sign(ctx context.Context, did string, message []byte) ([]byte, error)
}

// Config controls Open.
type Config struct {
	Name           string
	GenesisPath    string
	RequestTimeout time.Duration
	Registry       *prometheus.Registry // optional
}

// Manager owns one pool handle's Networker, local Merkle log, and the
// map of outstanding request state machines (spec §4.6).
type Manager struct {
	name string
	topo *Topology
	net  *transport.Networker
	tree *merkle.Log

	mu     sync.Mutex
	sms    map[uint64]stateMachine
	seen   map[uint64]bool
	order  []uint64
	closed bool

	reqSeq  atomic.Uint64
	metrics *metrics
	log     *obslog.Logger
}

var (
	registryMu sync.Mutex
	open       = map[handle.Handle]*Manager{}
)

// Open loads genesis transactions, dials every validator, and blocks
// until the local ledger is caught up to consensus or a terminal error
// occurs (spec §4.6 "open").
func Open(ctx context.Context, cfg Config) (handle.Handle, error) {
	txns, err := LoadGenesis(cfg.GenesisPath)
	if err != nil {
		return handle.Invalid, err
	}
	topo, err := BuildTopology(txns)
	if err != nil {
		return handle.Invalid, err
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	net, err := transport.Open(ctx, topo.Nodes, timeout)
	if err != nil {
		return handle.Invalid, ierr.Wrap(ierr.CodePoolNotCreated, err, "open transport connections")
	}

	m := &Manager{
		name:    cfg.Name,
		topo:    topo,
		net:     net,
		tree:    merkle.NewLog(),
		sms:     make(map[uint64]stateMachine),
		seen:    make(map[uint64]bool),
		metrics: newMetrics(cfg.Name),
		log:     obslog.Default().Component("pool").WithHandle("pool", 0),
	}
	m.metrics.register(cfg.Registry)

	go m.driver()

	if err := m.catchup(ctx); err != nil {
		net.Close()
		return handle.Invalid, err
	}

	h := handle.Next()
	registryMu.Lock()
	open[h] = m
	registryMu.Unlock()
	return h, nil
}

// Close terminates every outstanding state machine with a cancellation
// error and tears down the transport (spec §5 "Cancellation").
func Close(h handle.Handle) error {
	registryMu.Lock()
	m, ok := open[h]
	if ok {
		delete(open, h)
	}
	registryMu.Unlock()
	if !ok {
		return ierr.New(ierr.CodeInvalidPoolHandle, "pool handle is not open")
	}

	m.mu.Lock()
	m.closed = true
	for id, sm := range m.sms {
		sm.cancel()
		delete(m.sms, id)
	}
	m.mu.Unlock()

	return m.net.Close()
}

func lookup(h handle.Handle) (*Manager, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	m, ok := open[h]
	if !ok {
		return nil, ierr.New(ierr.CodeInvalidPoolHandle, "pool handle is not open")
	}
	return m, nil
}

func (m *Manager) nextReqID() uint64 { return m.reqSeq.Add(1) }

func (m *Manager) driver() {
	for ev := range m.net.Events() {
		m.mu.Lock()
		sm, ok := m.sms[ev.ReqID]
		m.mu.Unlock()
		if !ok {
			continue
		}
		sm.onEvent(ev)
		if sm.finished() {
			m.mu.Lock()
			delete(m.sms, ev.ReqID)
			m.mu.Unlock()
			m.metrics.outstanding.Dec()
		}
	}
}

func (m *Manager) register(reqID uint64, sm stateMachine) {
	m.mu.Lock()
	m.sms[reqID] = sm
	m.metrics.outstanding.Inc()
	m.mu.Unlock()
}

// markSeenLocally reports whether reqID was already locally seen and
// records it if not; bounded FIFO per spec.md §9's allowance that
// "implementations may still reject duplicate reqId locally."
func (m *Manager) markSeenLocally(reqID uint64) (duplicate bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[reqID] {
		return true
	}
	m.seen[reqID] = true
	m.order = append(m.order, reqID)
	const maxTracked = 4096
	if len(m.order) > maxTracked {
		evict := m.order[0]
		m.order = m.order[1:]
		delete(m.seen, evict)
	}
	return false
}

func (m *Manager) wait(ctx context.Context, reqID uint64, out chan outcome) (any, error) {
	select {
	case o := <-out:
		return o.value, o.err
	case <-ctx.Done():
		m.mu.Lock()
		if sm, ok := m.sms[reqID]; ok {
			sm.cancel()
			delete(m.sms, reqID)
		}
		m.mu.Unlock()
		return nil, ctx.Err()
	}
}

// SubmitRequest implements submit_request: classify by operation.type,
// assign a req_id when the caller did not set one, and drive the
// appropriate state machine to completion (spec §4.6).
func SubmitRequest(ctx context.Context, h handle.Handle, raw []byte) (json.RawMessage, error) {
	m, err := lookup(h)
	if err != nil {
		return nil, err
	}
	return m.submit(ctx, raw)
}

func (m *Manager) submit(ctx context.Context, raw []byte) (json.RawMessage, error) {
	var env map[string]any
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "parse request envelope")
	}
	opRaw, ok := env["operation"].(map[string]any)
	if !ok {
		return nil, ierr.New(ierr.CodeInvalidStructure, "request envelope is missing an operation object")
	}
	opType, _ := opRaw["type"].(string)
	if opType == "" {
		return nil, ierr.New(ierr.CodeInvalidStructure, "operation.type is missing or not a string")
	}

	reqID, err := m.resolveReqID(env)
	if err != nil {
		return nil, err
	}
	if m.markSeenLocally(reqID) {
		return nil, ierr.Newf(ierr.CodeInvalidStructure, "reqId %d was already submitted on this pool handle", reqID)
	}
	raw, err = json.Marshal(env)
	if err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "re-marshal request envelope")
	}

	kind := classify(opType)
	var outCh chan outcome
	var sm stateMachine
	switch kind {
	case kindSingle:
		parser, _ := lookupStateProofParser(opType)
		s := newSingleSM(reqID, raw, m.net, m.topo, parser)
		sm, outCh = s, s.out
	case kindConsensus:
		s := newConsensusSM(reqID, raw, m.net, m.topo)
		sm, outCh = s, s.out
	default:
		s := newFullSM(reqID, raw, m.net, m.topo)
		sm, outCh = s, s.out
	}

	m.register(reqID, sm)

	start := time.Now()
	var sendErr error
	if kind == kindFull {
		sendErr = m.net.SendAllRequest(raw, reqID)
	} else {
		sendErr = m.net.SendOneRequest(raw, reqID)
	}
	if sendErr != nil {
		m.mu.Lock()
		delete(m.sms, reqID)
		m.mu.Unlock()
		m.metrics.outstanding.Dec()
		return nil, ierr.Wrap(ierr.CodePoolTimeout, sendErr, "dispatch request to validators")
	}

	value, err := m.wait(ctx, reqID, outCh)
	m.metrics.latency.WithLabelValues(opType).Observe(time.Since(start).Seconds())
	if err != nil {
		m.metrics.requests.WithLabelValues(opType, "error").Inc()
		return nil, err
	}
	m.metrics.requests.WithLabelValues(opType, "ok").Inc()

	return json.Marshal(value)
}

func (m *Manager) resolveReqID(env map[string]any) (uint64, error) {
	raw, present := env["reqId"]
	if !present {
		id := m.nextReqID()
		env["reqId"] = id
		return id, nil
	}
	switch v := raw.(type) {
	case float64:
		if v == 0 {
			id := m.nextReqID()
			env["reqId"] = id
			return id, nil
		}
		return uint64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil || n == 0 {
			id := m.nextReqID()
			env["reqId"] = id
			return id, nil
		}
		return uint64(n), nil
	default:
		return 0, ierr.New(ierr.CodeInvalidStructure, "reqId must be numeric")
	}
}

// SignAndSubmit implements sign_and_submit: canonicalize the envelope
// minus its signature field, sign with the DID's wallet-held key, and
// submit (spec §4.6).
func SignAndSubmit(ctx context.Context, h handle.Handle, signer Signer, did string, operation map[string]any) (json.RawMessage, error) {
	m, err := lookup(h)
	if err != nil {
		return nil, err
	}

	reqID := m.nextReqID()
	env := map[string]any{
		"operation":       operation,
		"identifier":      did,
		"reqId":           reqID,
		"protocolVersion": 2,
	}

	canon, err := crypto.CanonicalJSON(env)
	if err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "canonicalize request for signing")
	}
	sig, err := signer.Sign(ctx, did, canon)
	if err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidSignature, err, "sign request")
	}
	env["signature"] = base58.Encode(sig)

	raw, err := json.Marshal(env)
	if err != nil {
		return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "marshal signed request")
	}
	return m.submit(ctx, raw)
}

// catchup drives CatchupConsensus, and any CatchupSingle rounds it
// finds necessary, until the local tree reaches consensus (spec
// §4.5.5) or catchup is abandoned after maxCatchupRounds attempts.
func (m *Manager) catchup(ctx context.Context) error {
	for round := 0; round < maxCatchupRounds; round++ {
		reqID := m.nextReqID()
		sm := newCatchupConsensusSM(reqID, nil, m.net, m.topo, m.tree)
		m.register(reqID, sm)

		msg, _ := json.Marshal(map[string]any{"op": "LEDGER_STATUS", "reqId": reqID})
		if err := m.net.SendAllRequest(msg, reqID); err != nil {
			m.mu.Lock()
			delete(m.sms, reqID)
			m.mu.Unlock()
			return ierr.Wrap(ierr.CodePoolNotCreated, err, "broadcast ledger status request")
		}

		value, err := m.wait(ctx, reqID, sm.out)
		if err != nil {
			return ierr.Wrap(ierr.CodeLedgerNotFound, err, "catchup consensus")
		}

		switch v := value.(type) {
		case *Synced:
			return nil
		case *CatchupTarget:
			if err := m.runCatchupSingle(ctx, v.Root, v.Size); err != nil {
				return err
			}
			continue
		default:
			return ierr.New(ierr.CodeLedgerNotFound, "catchup consensus returned an unexpected result")
		}
	}
	return ierr.New(ierr.CodeLedgerNotFound, fmt.Sprintf("catchup did not converge after %d rounds", maxCatchupRounds))
}

func (m *Manager) runCatchupSingle(ctx context.Context, targetRoot []byte, targetSize int) error {
	reqID := m.nextReqID()
	req := map[string]any{
		"op":          "CATCHUP_REQ",
		"reqId":       reqID,
		"seqNoStart":  m.tree.Count() + 1,
		"seqNoEnd":    targetSize,
		"catchupTill": targetSize,
	}
	msg, err := json.Marshal(req)
	if err != nil {
		return ierr.Wrap(ierr.CodeInvalidStructure, err, "marshal catchup request")
	}

	sm := newCatchupSingleSM(reqID, msg, m.net, m.topo, m.tree, targetRoot, targetSize, func(*merkle.Log) {})
	m.register(reqID, sm)

	if err := m.net.SendOneRequest(msg, reqID); err != nil {
		m.mu.Lock()
		delete(m.sms, reqID)
		m.mu.Unlock()
		return ierr.Wrap(ierr.CodeLedgerNotFound, err, "send catchup request")
	}

	_, err = m.wait(ctx, reqID, sm.out)
	return err
}

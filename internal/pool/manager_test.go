// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package pool

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/certen/indysdk/internal/crypto/bls"
	"github.com/certen/indysdk/internal/merkle"
	"github.com/certen/indysdk/internal/obslog"
	"github.com/certen/indysdk/internal/transport"
)

var testUpgrader = websocket.Upgrader{}

type incomingFrame struct {
	Op    string `json:"op"`
	ReqID uint64 `json:"reqId"`
}

type fakeValidator struct {
	srv     *httptest.Server
	handler func(conn *websocket.Conn, req incomingFrame)
}

func newFakeValidator(t *testing.T, handler func(conn *websocket.Conn, req incomingFrame)) *fakeValidator {
	t.Helper()
	fv := &fakeValidator{handler: handler}
	fv.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req incomingFrame
			if err := json.Unmarshal(data, &req); err != nil {
				continue
			}
			fv.handler(conn, req)
		}
	}))
	return fv
}

func (fv *fakeValidator) wsURL() string { return "ws" + strings.TrimPrefix(fv.srv.URL, "http") }
func (fv *fakeValidator) close()        { fv.srv.Close() }

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newTestManager(t *testing.T, nodes []transport.Node, f int, verKeys map[string]*bls.PublicKey) *Manager {
	t.Helper()
	net, err := transport.Open(context.Background(), nodes, 300*time.Millisecond)
	if err != nil {
		t.Fatalf("open networker: %v", err)
	}
	t.Cleanup(func() { net.Close() })

	m := &Manager{
		name:    t.Name(),
		topo:    &Topology{Nodes: nodes, F: f, VerKeys: verKeys},
		net:     net,
		tree:    merkle.NewLog(),
		sms:     make(map[uint64]stateMachine),
		seen:    make(map[uint64]bool),
		metrics: newMetrics(t.Name()),
		log:     obslog.Default().Component("pool-test"),
	}
	go m.driver()
	return m
}

func TestClassifyReadsAndWrites(t *testing.T) {
	if classify(OpSchema) != kindFull {
		t.Fatal("writes must classify as Full")
	}
	if classify(OpGetAttrib) != kindConsensus {
		t.Fatal("reads without a registered parser must classify as Consensus")
	}
	RegisterStateProofParser(OpGetNym, func(map[string]any) ([]StateProofNode, *MultiSignature, error) { return nil, nil, nil })
	if classify(OpGetNym) != kindSingle {
		t.Fatal("reads with a registered parser must classify as Single")
	}
}

func TestSubmitRequestFullBroadcastsAndAggregates(t *testing.T) {
	var validators []*fakeValidator
	nodes := make([]transport.Node, 0, 4)
	for i := 0; i < 4; i++ {
		alias := fmt.Sprintf("node%d", i)
		aliasCopy := alias
		fv := newFakeValidator(t, func(conn *websocket.Conn, req incomingFrame) {
			sendJSON(t, conn, map[string]any{"op": "REPLY", "reqId": req.ReqID, "result": map[string]any{"from": aliasCopy}})
		})
		validators = append(validators, fv)
		nodes = append(nodes, transport.Node{Alias: alias, URL: fv.wsURL()})
	}
	defer func() {
		for _, fv := range validators {
			fv.close()
		}
	}()

	m := newTestManager(t, nodes, 1, nil)

	raw, _ := json.Marshal(map[string]any{
		"operation":       map[string]any{"type": OpSchema, "data": "x"},
		"identifier":      "did:1",
		"reqId":           0,
		"protocolVersion": 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply, err := m.submit(ctx, raw)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	var byNode map[string]string
	if err := json.Unmarshal(reply, &byNode); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if len(byNode) != 4 {
		t.Fatalf("expected 4 node responses, got %d: %+v", len(byNode), byNode)
	}
}

func TestSubmitRequestConsensusAcceptsOnMajority(t *testing.T) {
	var validators []*fakeValidator
	nodes := make([]transport.Node, 0, 4)
	for i := 0; i < 4; i++ {
		alias := fmt.Sprintf("node%d", i)
		fv := newFakeValidator(t, func(conn *websocket.Conn, req incomingFrame) {
			if req.Op != "REQUEST" {
				return
			}
			sendJSON(t, conn, map[string]any{"op": "REPLY", "reqId": req.ReqID, "result": map[string]any{"value": 42}})
		})
		validators = append(validators, fv)
		nodes = append(nodes, transport.Node{Alias: alias, URL: fv.wsURL()})
	}
	defer func() {
		for _, fv := range validators {
			fv.close()
		}
	}()

	m := newTestManager(t, nodes, 1, nil)

	raw, _ := json.Marshal(map[string]any{
		"op":              "REQUEST",
		"operation":       map[string]any{"type": OpGetAttrib, "raw": "endpoint"},
		"identifier":      "did:1",
		"reqId":           0,
		"protocolVersion": 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply, err := m.submit(ctx, raw)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(reply, &result); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if result["value"].(float64) != 42 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSubmitRequestSingleAcceptsValidStateProof(t *testing.T) {
	const nodeCount = 4
	entryData := []byte("schema-1-bytes")

	tree := merkle.NewLog()
	tree.Append(entryData)
	rootHash := tree.RootHash()

	type signerNode struct {
		alias string
		sk    *bls.PrivateKey
	}
	signers := make([]signerNode, 0, nodeCount)
	verKeys := make(map[string]*bls.PublicKey, nodeCount)
	var sigs []*bls.Signature
	var aliases []string

	for i := 0; i < nodeCount; i++ {
		alias := fmt.Sprintf("node%d", i)
		sk, pk, err := bls.GenerateKeyPair()
		if err != nil {
			t.Fatalf("generate bls keypair: %v", err)
		}
		signers = append(signers, signerNode{alias: alias, sk: sk})
		verKeys[alias] = pk
		sigs = append(sigs, sk.Sign(bls.DomainStateProof, rootHash))
		aliases = append(aliases, alias)
	}
	aggSig, err := bls.AggregateSignatures(sigs)
	if err != nil {
		t.Fatalf("aggregate signatures: %v", err)
	}

	RegisterStateProofParser(OpGetSchema, func(map[string]any) ([]StateProofNode, *MultiSignature, error) {
		return []StateProofNode{{
				KeySuffix: "schema-1",
				Value:     entryData,
				LeafIndex: 0,
				TreeSize:  1,
			}}, &MultiSignature{
				Signature:   aggSig.Bytes(),
				Signers:     aliases,
				TxnRootHash: rootHash,
			}, nil
	})

	var validators []*fakeValidator
	nodes := make([]transport.Node, 0, nodeCount)
	for _, s := range signers {
		fv := newFakeValidator(t, func(conn *websocket.Conn, req incomingFrame) {
			if req.Op != "REQUEST" {
				return
			}
			sendJSON(t, conn, map[string]any{"op": "REPLY", "reqId": req.ReqID, "result": map[string]any{"type": "107"}})
		})
		validators = append(validators, fv)
		nodes = append(nodes, transport.Node{Alias: s.alias, URL: fv.wsURL()})
	}
	defer func() {
		for _, fv := range validators {
			fv.close()
		}
	}()

	m := newTestManager(t, nodes, 1, verKeys)

	raw, _ := json.Marshal(map[string]any{
		"op":              "REQUEST",
		"operation":       map[string]any{"type": OpGetSchema, "ref": "schema-1"},
		"identifier":      "did:1",
		"reqId":           0,
		"protocolVersion": 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := m.submit(ctx, raw); err != nil {
		t.Fatalf("submit: %v", err)
	}
}

func TestCatchupSyncsWhenLocalMatchesConsensus(t *testing.T) {
	var validators []*fakeValidator
	nodes := make([]transport.Node, 0, 4)
	for i := 0; i < 4; i++ {
		alias := fmt.Sprintf("node%d", i)
		fv := newFakeValidator(t, func(conn *websocket.Conn, req incomingFrame) {
			sendJSON(t, conn, map[string]any{
				"op":         "LEDGER_STATUS",
				"reqId":      req.ReqID,
				"merkleRoot": base64.StdEncoding.EncodeToString(merkle.NewLog().RootHash()),
				"txnSeqNo":   0,
				"consProof":  []string{},
			})
		})
		validators = append(validators, fv)
		nodes = append(nodes, transport.Node{Alias: alias, URL: fv.wsURL()})
	}
	defer func() {
		for _, fv := range validators {
			fv.close()
		}
	}()

	m := newTestManager(t, nodes, 1, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.catchup(ctx); err != nil {
		t.Fatalf("catchup: %v", err)
	}
}

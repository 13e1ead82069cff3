// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package pool

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mr-tron/base58"

	"github.com/certen/indysdk/internal/crypto/bls"
)

func writeGenesis(t *testing.T, txns []GenesisTxn) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genesis.txn")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create genesis file: %v", err)
	}
	defer f.Close()
	for _, txn := range txns {
		data, err := json.Marshal(txn)
		if err != nil {
			t.Fatalf("marshal genesis txn: %v", err)
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			t.Fatalf("write genesis txn: %v", err)
		}
	}
	return path
}

func TestLoadGenesisAndBuildTopology(t *testing.T) {
	_, pk1, _ := bls.GenerateKeyPair()
	_, pk2, _ := bls.GenerateKeyPair()
	_, pk3, _ := bls.GenerateKeyPair()
	_, pk4, _ := bls.GenerateKeyPair()

	txns := []GenesisTxn{
		{TxnID: "t1", Type: "0", Data: NodeData{Alias: "Node1", ClientIP: "127.0.0.1", ClientPort: 9701, BLSKey: base58.Encode(pk1.Bytes())}},
		{TxnID: "t2", Type: "0", Data: NodeData{Alias: "Node2", ClientIP: "127.0.0.1", ClientPort: 9702, BLSKey: base58.Encode(pk2.Bytes())}},
		{TxnID: "t3", Type: "0", Data: NodeData{Alias: "Node3", ClientIP: "127.0.0.1", ClientPort: 9703, BLSKey: base58.Encode(pk3.Bytes())}},
		{TxnID: "t4", Type: "0", Data: NodeData{Alias: "Node4", ClientIP: "127.0.0.1", ClientPort: 9704, BLSKey: base58.Encode(pk4.Bytes())}},
	}
	path := writeGenesis(t, txns)

	loaded, err := LoadGenesis(path)
	if err != nil {
		t.Fatalf("load genesis: %v", err)
	}
	if len(loaded) != 4 {
		t.Fatalf("expected 4 genesis transactions, got %d", len(loaded))
	}

	topo, err := BuildTopology(loaded)
	if err != nil {
		t.Fatalf("build topology: %v", err)
	}
	if topo.F != 1 {
		t.Fatalf("expected f=1 for 4 nodes, got %d", topo.F)
	}
	if len(topo.Nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(topo.Nodes))
	}
	if len(topo.VerKeys) != 4 {
		t.Fatalf("expected 4 verification keys, got %d", len(topo.VerKeys))
	}
	if topo.Nodes[0].URL != "ws://127.0.0.1:9701" {
		t.Fatalf("unexpected node URL: %s", topo.Nodes[0].URL)
	}
}

func TestBuildTopologyRejectsMissingAlias(t *testing.T) {
	_, err := BuildTopology([]GenesisTxn{{TxnID: "t1", Data: NodeData{ClientIP: "127.0.0.1", ClientPort: 9701}}})
	if err == nil {
		t.Fatal("expected error for missing alias")
	}
}

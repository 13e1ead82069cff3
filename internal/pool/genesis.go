// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package pool

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/certen/indysdk/internal/crypto/bls"
	"github.com/certen/indysdk/internal/ierr"
	"github.com/certen/indysdk/internal/transport"
)

// GenesisTxn is one line of a pool transactions file: a NODE txn
// describing a validator's transport address and BLS verification key.
type GenesisTxn struct {
	Identifier string    `json:"identifier"`
	TxnID      string    `json:"txnId"`
	Type       string    `json:"type"`
	Dest       string    `json:"dest"`
	Data       NodeData  `json:"data"`
}

// NodeData is the payload of a NODE genesis transaction.
type NodeData struct {
	Alias      string `json:"alias"`
	ClientIP   string `json:"client_ip"`
	ClientPort int    `json:"client_port"`
	NodeIP     string `json:"node_ip"`
	NodePort   int    `json:"node_port"`
	Services   []string `json:"services"`
	BLSKey     string `json:"blskey"`
	BLSKeyPop  string `json:"blskey_pop"`
}

// LoadGenesis reads a pool transactions file (one JSON object per
// line, the format libindy calls a "pool transactions genesis" file).
func LoadGenesis(path string) ([]GenesisTxn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ierr.Wrap(ierr.CodePoolNotCreated, err, "open genesis transactions file")
	}
	defer f.Close()

	var txns []GenesisTxn
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var txn GenesisTxn
		if err := json.Unmarshal([]byte(line), &txn); err != nil {
			return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, "parse genesis transaction line")
		}
		txns = append(txns, txn)
	}
	if err := scanner.Err(); err != nil {
		return nil, ierr.Wrap(ierr.CodePoolNotCreated, err, "read genesis transactions file")
	}
	if len(txns) == 0 {
		return nil, ierr.New(ierr.CodePoolNotCreated, "genesis transactions file contains no NODE transactions")
	}
	return txns, nil
}

// Topology is the immutable set of facts the pool manager relies on
// once a pool handle is open: the validator list, the fault
// threshold, and each validator's BLS verification key (spec §5
// "Shared resources... immutable after pool open").
type Topology struct {
	Nodes   []transport.Node
	F       int
	VerKeys map[string]*bls.PublicKey
}

// BuildTopology turns genesis transactions into connection targets and
// verification keys, and derives f = floor((N-1)/3) (spec §4.5).
func BuildTopology(txns []GenesisTxn) (*Topology, error) {
	nodes := make([]transport.Node, 0, len(txns))
	verKeys := make(map[string]*bls.PublicKey, len(txns))

	for _, txn := range txns {
		alias := txn.Data.Alias
		if alias == "" {
			return nil, ierr.Newf(ierr.CodeInvalidStructure, "genesis transaction %s is missing a node alias", txn.TxnID)
		}
		if txn.Data.ClientIP == "" || txn.Data.ClientPort == 0 {
			return nil, ierr.Newf(ierr.CodeInvalidStructure, "genesis transaction for %q is missing a client address", alias)
		}
		nodes = append(nodes, transport.Node{
			Alias: alias,
			URL:   fmt.Sprintf("ws://%s:%d", txn.Data.ClientIP, txn.Data.ClientPort),
		})

		if txn.Data.BLSKey != "" {
			raw, err := base58.Decode(txn.Data.BLSKey)
			if err != nil {
				return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, fmt.Sprintf("decode blskey for node %q", alias))
			}
			pk, err := bls.PublicKeyFromBytes(raw)
			if err != nil {
				return nil, ierr.Wrap(ierr.CodeInvalidStructure, err, fmt.Sprintf("parse blskey for node %q", alias))
			}
			verKeys[alias] = pk
		}
	}

	n := len(nodes)
	f := (n - 1) / 3
	return &Topology{Nodes: nodes, F: f, VerKeys: verKeys}, nil
}

// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// indy-cli is a thin driver over pkg/client, mapping each subcommand
// 1:1 onto an SDK operation (spec §6). It is not part of the core
// module's scope; it exists only as the minimal front end spec §6
// describes for exercising wallet and pool operations from a shell.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/certen/indysdk/internal/crypto"
	"github.com/certen/indysdk/internal/ledgercache"
	"github.com/certen/indysdk/internal/obslog"
	"github.com/certen/indysdk/internal/pool"
	"github.com/certen/indysdk/internal/wallet"
	"github.com/certen/indysdk/pkg/client"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := obslog.Default().Component("cli")

	var err error
	switch cmd {
	case "wallet-create":
		err = runWalletCreate(args)
	case "wallet-open":
		err = runWalletOpen(args)
	case "did-new":
		err = runDIDNew(args)
	case "pool-open":
		err = runPoolOpen(ctx, args)
	case "get-schema":
		err = runGetSchema(ctx, args)
	case "get-cred-def":
		err = runGetCredDef(ctx, args)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `indy-cli <command> [flags]

Commands:
  wallet-create -name NAME -storage kv|postgres|firestore -conn CONN
  wallet-open   -name NAME -storage kv|postgres|firestore -conn CONN
  did-new       [-seed HEX]
  pool-open     -name NAME -genesis PATH
  get-schema    -name NAME -genesis PATH -submitter DID -id SCHEMA_ID
  get-cred-def  -name NAME -genesis PATH -submitter DID -id CRED_DEF_ID`)
}

func walletConfig(fs *flag.FlagSet, args []string) *wallet.Config {
	name := fs.String("name", "", "wallet name")
	storageType := fs.String("storage", "kv", "registered storage backend")
	conn := fs.String("conn", "", "storage connection string")
	key := fs.String("key", "", "wallet master key; a per-name default is used if empty")
	fs.Parse(args)

	keyBytes := []byte(*key)
	if *key == "" {
		keyBytes = []byte(*name + "-dev-key")
	}
	return &wallet.Config{Name: *name, StorageType: *storageType, StorageConnection: *conn, Key: keyBytes}
}

func runWalletCreate(args []string) error {
	fs := flag.NewFlagSet("wallet-create", flag.ExitOnError)
	cfg := walletConfig(fs, args)
	return wallet.Create(*cfg)
}

func runWalletOpen(args []string) error {
	fs := flag.NewFlagSet("wallet-open", flag.ExitOnError)
	cfg := walletConfig(fs, args)
	w, err := client.OpenWallet(*cfg)
	if err != nil {
		return err
	}
	defer w.Close()
	fmt.Printf("opened wallet %q, handle=%d\n", cfg.Name, w.Handle())
	return nil
}

func runDIDNew(args []string) error {
	fs := flag.NewFlagSet("did-new", flag.ExitOnError)
	seedHex := fs.String("seed", "", "16 or 32 byte seed, hex-encoded; random if empty")
	fs.Parse(args)

	var did *crypto.DID
	var err error
	if *seedHex == "" {
		did, err = crypto.NewDIDFromRandom()
	} else {
		seed, decodeErr := hex.DecodeString(*seedHex)
		if decodeErr != nil {
			return decodeErr
		}
		did, err = crypto.NewDIDFromSeed(seed)
	}
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(map[string]string{"did": did.DID, "verkey": did.VerKey}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runPoolOpen(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pool-open", flag.ExitOnError)
	name := fs.String("name", "", "pool name")
	genesis := fs.String("genesis", "", "genesis transaction file")
	fs.Parse(args)

	h, err := pool.Open(ctx, pool.Config{Name: *name, GenesisPath: *genesis})
	if err != nil {
		return err
	}
	defer pool.Close(h)
	fmt.Printf("opened pool %q, handle=%d\n", *name, h)
	return nil
}

func runGetSchema(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get-schema", flag.ExitOnError)
	name := fs.String("name", "", "pool name")
	genesis := fs.String("genesis", "", "genesis transaction file")
	submitter := fs.String("submitter", "", "submitter DID")
	id := fs.String("id", "", "schema id")
	fs.Parse(args)

	h, err := pool.Open(ctx, pool.Config{Name: *name, GenesisPath: *genesis})
	if err != nil {
		return err
	}
	defer pool.Close(h)

	fetcher := pool.NewLedgerFetcher(h)
	cache := ledgercache.New(h, fetcher, nil)
	data, err := cache.GetSchema(ctx, *submitter, *id, ledgercache.DefaultOptions())
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runGetCredDef(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get-cred-def", flag.ExitOnError)
	name := fs.String("name", "", "pool name")
	genesis := fs.String("genesis", "", "genesis transaction file")
	submitter := fs.String("submitter", "", "submitter DID")
	id := fs.String("id", "", "credential definition id")
	fs.Parse(args)

	h, err := pool.Open(ctx, pool.Config{Name: *name, GenesisPath: *genesis})
	if err != nil {
		return err
	}
	defer pool.Close(h)

	fetcher := pool.NewLedgerFetcher(h)
	cache := ledgercache.New(h, fetcher, nil)
	data, err := cache.GetCredDef(ctx, *submitter, *id, ledgercache.DefaultOptions())
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

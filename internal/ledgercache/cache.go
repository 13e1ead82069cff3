// Copyright 2025 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package ledgercache implements C3: a freshness-policy cache of
// schemas and credential definitions layered over the wallet (C2) and
// the pool (C7). Entries live as ordinary wallet records so the cache
// persists across process restarts the same way any other wallet
// record does.
package ledgercache

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/certen/indysdk/internal/handle"
	"github.com/certen/indysdk/internal/ierr"
	"github.com/certen/indysdk/internal/obslog"
	"github.com/certen/indysdk/internal/wallet"
)

const (
	typeCredDef = "Indy::CACHE_CRED_DEF"
	typeSchema  = "Indy::CACHE_SCHEMA"

	cachedAtTag = "~cachedAt"
)

// Fetcher retrieves the current ledger state for a cred-def or schema,
// satisfied by the pool manager (C7). It is never invoked when
// NoUpdate is set and the cache already has an answer.
type Fetcher interface {
	FetchCredDef(ctx context.Context, submitterDID, id string) ([]byte, error)
	FetchSchema(ctx context.Context, submitterDID, id string) ([]byte, error)
}

// Options controls the cache's read/write behavior for one call (spec
// §4.2). MinFresh is in seconds; -1 (the default) disables the age
// check entirely, so any cached entry is considered fresh.
type Options struct {
	NoCache  bool
	NoUpdate bool
	NoStore  bool
	MinFresh int
}

// DefaultOptions returns the spec-mandated defaults.
func DefaultOptions() Options {
	return Options{MinFresh: -1}
}

// PurgeOptions controls Purge's age threshold. MinFresh of -1 purges
// every cached entry.
type PurgeOptions struct {
	MinFresh int
}

// Cache is a ledgercache handle bound to one wallet and one fetcher.
type Cache struct {
	wallet  handle.Handle
	fetcher Fetcher
	log     *obslog.Logger
	metrics *cacheMetrics
}

// cacheMetrics tracks hit/miss/fetch outcomes for one cache instance,
// mirroring internal/pool/metrics.go's per-handle counter pattern.
type cacheMetrics struct {
	lookups *prometheus.CounterVec
}

func newCacheMetrics() *cacheMetrics {
	return &cacheMetrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indysdk_ledgercache_lookups_total",
			Help: "Cache lookups by record type and outcome (hit, miss, fetch_error).",
		}, []string{"type", "outcome"}),
	}
}

func (m *cacheMetrics) register(reg *prometheus.Registry) {
	if reg == nil {
		return
	}
	reg.MustRegister(m.lookups)
}

// New binds a ledgercache instance to an already-open wallet handle
// and the pool's fetch capability. reg is optional; when non-nil, cache
// hit-rate counters are registered against it (spec §4.2 wallet/cache
// observability).
func New(w handle.Handle, fetcher Fetcher, reg *prometheus.Registry) *Cache {
	m := newCacheMetrics()
	m.register(reg)
	return &Cache{wallet: w, fetcher: fetcher, log: obslog.Default().Component("ledgercache"), metrics: m}
}

// GetCredDef implements get_cred_def per the spec §4.2 decision table.
func (c *Cache) GetCredDef(ctx context.Context, submitterDID, id string, opts Options) ([]byte, error) {
	return c.get(ctx, typeCredDef, submitterDID, id, opts, c.fetcher.FetchCredDef)
}

// GetSchema implements get_schema, identical policy keyed by schema_id.
func (c *Cache) GetSchema(ctx context.Context, submitterDID, id string, opts Options) ([]byte, error) {
	return c.get(ctx, typeSchema, submitterDID, id, opts, c.fetcher.FetchSchema)
}

func (c *Cache) get(ctx context.Context, recordType, submitterDID, id string, opts Options, fetch func(context.Context, string, string) ([]byte, error)) ([]byte, error) {
	if opts.NoCache {
		if opts.NoUpdate {
			return nil, ierr.New(ierr.CodeNotFound, "cache bypassed and network fetch disabled")
		}
		return c.fetchAndMaybeStore(ctx, recordType, id, submitterDID, fetch, true)
	}

	cached, cachedAt, hit, err := c.readCached(recordType, id)
	if err != nil {
		return nil, err
	}

	if hit {
		if isFresh(cachedAt, opts.MinFresh) || opts.NoUpdate {
			c.metrics.lookups.WithLabelValues(recordType, "hit").Inc()
			return cached, nil
		}
		return c.fetchAndMaybeStore(ctx, recordType, id, submitterDID, fetch, false, opts)
	}

	if opts.NoUpdate {
		c.metrics.lookups.WithLabelValues(recordType, "miss").Inc()
		return nil, ierr.New(ierr.CodeNotFound, "no cached entry and network fetch disabled")
	}
	return c.fetchAndMaybeStore(ctx, recordType, id, submitterDID, fetch, false, opts)
}

func (c *Cache) fetchAndMaybeStore(ctx context.Context, recordType, id, submitterDID string, fetch func(context.Context, string, string) ([]byte, error), noCacheCall bool, opts ...Options) ([]byte, error) {
	data, err := fetch(ctx, submitterDID, id)
	if err != nil {
		c.metrics.lookups.WithLabelValues(recordType, "fetch_error").Inc()
		return nil, ierr.Wrap(ierr.CodeLedgerNotFound, err, "fetch from ledger")
	}
	c.metrics.lookups.WithLabelValues(recordType, "miss").Inc()

	noStore := noCacheCall
	if len(opts) > 0 {
		noStore = opts[0].NoStore
	}
	if noStore {
		return data, nil
	}
	if err := c.store(recordType, id, data); err != nil {
		c.log.Warn("ledgercache: failed to store fetched entry", "type", recordType, "id", id, "err", err)
	}
	return data, nil
}

func (c *Cache) readCached(recordType, id string) (data []byte, cachedAt time.Time, hit bool, err error) {
	rec, err := wallet.Get(c.wallet, recordType, id, wallet.GetOptions{RetrieveValue: true, RetrieveTags: true})
	if ierr.CodeOf(err) == ierr.CodeNotFound {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}

	raw, ok := rec.Tags[cachedAtTag]
	if !ok {
		return rec.Value, time.Time{}, true, nil
	}
	unixSeconds, parseErr := strconv.ParseInt(string(raw), 10, 64)
	if parseErr != nil {
		return rec.Value, time.Time{}, true, nil
	}
	return rec.Value, time.Unix(unixSeconds, 0), true, nil
}

func (c *Cache) store(recordType, id string, data []byte) error {
	tags := map[string][]byte{cachedAtTag: []byte(strconv.FormatInt(time.Now().Unix(), 10))}

	err := wallet.Add(c.wallet, recordType, id, data, tags)
	if ierr.CodeOf(err) == ierr.CodeAlreadyExists {
		if uerr := wallet.UpdateValue(c.wallet, recordType, id, data); uerr != nil {
			return uerr
		}
		return wallet.UpdateTags(c.wallet, recordType, id, tags)
	}
	return err
}

func isFresh(cachedAt time.Time, minFresh int) bool {
	if minFresh < 0 {
		return true
	}
	if cachedAt.IsZero() {
		return false
	}
	return time.Since(cachedAt) <= time.Duration(minFresh)*time.Second
}

// Purge deletes cached cred-def and schema entries older than
// opts.MinFresh seconds; MinFresh of -1 purges everything.
func (c *Cache) Purge(ctx context.Context, opts PurgeOptions) error {
	for _, recordType := range []string{typeCredDef, typeSchema} {
		if err := c.purgeType(ctx, recordType, opts.MinFresh); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) purgeType(ctx context.Context, recordType string, minFresh int) error {
	cur, err := wallet.SearchAll(c.wallet, recordType, wallet.SearchOptions{RetrieveValue: false, RetrieveTags: true, RetrieveRecords: true})
	if err != nil {
		return ierr.Wrap(ierr.CodeStorageError, err, "list cache entries for purge")
	}
	defer cur.Close()

	var toDelete []string
	for {
		rec, ok, err := cur.FetchNext(ctx)
		if err != nil {
			return ierr.Wrap(ierr.CodeStorageError, err, "iterate cache entries for purge")
		}
		if !ok {
			break
		}
		if minFresh < 0 {
			toDelete = append(toDelete, rec.ID)
			continue
		}
		raw, hasTag := rec.Tags[cachedAtTag]
		if !hasTag {
			continue
		}
		unixSeconds, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			continue
		}
		if time.Since(time.Unix(unixSeconds, 0)) > time.Duration(minFresh)*time.Second {
			toDelete = append(toDelete, rec.ID)
		}
	}

	for _, id := range toDelete {
		if err := wallet.Delete(c.wallet, recordType, id); err != nil && ierr.CodeOf(err) != ierr.CodeNotFound {
			return err
		}
	}
	return nil
}

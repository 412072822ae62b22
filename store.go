package histpack

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
)

// Store aggregates every pack pair found under a directory (recursively) at
// construction time and dispatches queries across them. New packs added to
// the directory after construction are not visible; construct a fresh Store
// to pick them up.
type Store struct {
	dir   string
	packs []*PackReader
}

// StoreOption configures a Store at construction time.
type StoreOption func(*storeConfig)

type storeConfig struct {
	concurrency int
	logger      *slog.Logger
	readerOpts  []ReaderOption
}

// WithStoreConcurrency bounds how many candidate pack pairs are opened in
// parallel while constructing a Store. The default is unbounded (one
// goroutine per candidate).
func WithStoreConcurrency(n int) StoreOption {
	return func(c *storeConfig) { c.concurrency = n }
}

// WithStoreLogger overrides the logger used to report skipped, unreadable
// pack pairs.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(c *storeConfig) { c.logger = l }
}

// WithStoreReaderOptions passes options through to every underlying
// PackReader.
func WithStoreReaderOptions(opts ...ReaderOption) StoreOption {
	return func(c *storeConfig) { c.readerOpts = opts }
}

// OpenStore walks dir recursively and opens every pack pair it finds. A pack
// pair is recognised only when both X.histidx and X.histpack exist for the
// same basename X (a crashed publisher's orphan pack or orphan index is
// silently skipped, never surfaced as an error: spec §4.6 "Crash
// semantics"). Unreadable pairs are logged and skipped.
func OpenStore(dir string, opts ...StoreOption) (*Store, error) {
	cfg := storeConfig{logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	fsys := os.DirFS(dir)
	idxMatches, err := doublestar.Glob(fsys, "**/*"+IndexSuffix)
	if err != nil {
		return nil, newPackError(dir, ErrIO, err)
	}

	bases := make([]string, 0, len(idxMatches))
	for _, rel := range idxMatches {
		baseRel := strings.TrimSuffix(rel, IndexSuffix)
		packRel := baseRel + PackSuffix
		if _, err := fs.Stat(fsys, packRel); err != nil {
			continue
		}
		bases = append(bases, filepath.Join(dir, baseRel))
	}
	sort.Strings(bases) // stable, deterministic iteration order within this store's lifetime

	readers := make([]*PackReader, len(bases))
	g := new(errgroup.Group)
	if cfg.concurrency > 0 {
		g.SetLimit(cfg.concurrency)
	}
	for i, base := range bases {
		i, base := i, base
		g.Go(func() error {
			r, err := OpenPack(base, cfg.readerOpts...)
			if err != nil {
				cfg.logger.Warn("histpack: skipping unreadable pack pair", "path", base, "err", err)
				return nil
			}
			readers[i] = r
			return nil
		})
	}
	_ = g.Wait() // individual failures are logged and skipped, never fatal to Store construction

	packs := make([]*PackReader, 0, len(readers))
	for _, r := range readers {
		if r != nil {
			packs = append(packs, r)
		}
	}

	return &Store{dir: dir, packs: packs}, nil
}

// Len reports how many pack pairs this store successfully opened.
func (s *Store) Len() int { return len(s.packs) }

// Readers returns the underlying PackReaders this store queries, in the
// fixed order established at construction. Intended for diagnostics
// (cmd/histdump's ls subcommand); ordinary callers should use the
// aggregate Parents/Ancestors/Linknode/Missing methods instead.
func (s *Store) Readers() []*PackReader {
	return s.packs
}

// Close closes every constituent PackReader.
func (s *Store) Close() error {
	var firstErr error
	for _, p := range s.packs {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Missing threads the residual key set through each pack in turn, returning
// whatever remains after all of them have been consulted.
func (s *Store) Missing(keys []Key) []Key {
	missing := keys
	for _, p := range s.packs {
		if len(missing) == 0 {
			break
		}
		missing = p.Missing(missing)
	}
	return missing
}

// Parents tries each pack in turn, returning the first match.
func (s *Store) Parents(name []byte, node NodeID) (p1, p2 NodeID, err error) {
	for _, p := range s.packs {
		p1, p2, err = p.Parents(name, node)
		if err == nil {
			return p1, p2, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return NodeID{}, NodeID{}, err
		}
	}
	return NodeID{}, NodeID{}, newPackError(s.dir, ErrNotFound, fmt.Errorf("%s", name))
}

// Ancestors tries each pack in turn, returning the first match.
func (s *Store) Ancestors(name []byte, node NodeID) (map[NodeID]Record, error) {
	for _, p := range s.packs {
		res, err := p.Ancestors(name, node)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, newPackError(s.dir, ErrNotFound, fmt.Errorf("%s", name))
}

// Linknode tries each pack in turn, returning the first match.
func (s *Store) Linknode(name []byte, node NodeID) (NodeID, error) {
	for _, p := range s.packs {
		ln, err := p.Linknode(name, node)
		if err == nil {
			return ln, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return NodeID{}, err
		}
	}
	return NodeID{}, newPackError(s.dir, ErrNotFound, fmt.Errorf("%s", name))
}

// Files returns the union of every file name and revision node held across
// every pack in the store, satisfying Source for Repack. Names that appear
// in more than one pack are merged, with duplicate nodes deduplicated.
func (s *Store) Files() ([]FileNodes, error) {
	order := make([]string, 0)
	byName := make(map[string]map[NodeID]struct{})

	for _, p := range s.packs {
		fns, err := p.FileNodes()
		if err != nil {
			return nil, err
		}
		for _, fn := range fns {
			key := string(fn.Name)
			set, ok := byName[key]
			if !ok {
				set = make(map[NodeID]struct{})
				byName[key] = set
				order = append(order, key)
			}
			for _, n := range fn.Nodes {
				set[n] = struct{}{}
			}
		}
	}

	sort.Strings(order)
	out := make([]FileNodes, 0, len(order))
	for _, name := range order {
		set := byName[name]
		nodes := make([]NodeID, 0, len(set))
		for n := range set {
			nodes = append(nodes, n)
		}
		sortNodeIDs(nodes)
		out = append(out, FileNodes{Name: []byte(name), Nodes: nodes})
	}
	return out, nil
}

// Add always fails: a multi-pack store is read-only. Construct a Writer
// against a single directory to add records, and Repack to compact a
// store's packs into one new pack.
func (s *Store) Add(name []byte, node, p1, p2, linknode NodeID) error {
	return newPackError(s.dir, ErrClientProtocol, fmt.Errorf("cannot add to a read-only store (%s:%s)", name, node))
}

package catalog

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/jmoiron/sqlx"
)

// Store reads score definitions from a sqlite database described by a
// metadata file.
type Store struct {
	db   *sqlx.DB
	meta map[string]Meta
}

// OpenStore opens the database read-only. The driver is mattn/go-sqlite3
// when cgo is available and modernc.org/sqlite otherwise.
func OpenStore(dbPath, metaPath string) (*Store, error) {
	mf, err := os.Open(metaPath)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer mf.Close()

	meta, err := ReadMeta(mf)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return OpenStoreWithMeta(dbPath, meta)
}

func OpenStoreWithMeta(dbPath string, meta map[string]Meta) (*Store, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, pfx.Err(err)
	}

	// URI filenames have to begin with 'file:'; see
	// https://www.sqlite.org/c3ref/open.html
	path := dbPath
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	if !strings.Contains(path, "?") {
		path += "?mode=ro"
	}

	db, err := sqlx.Connect(sqliteDriver, path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return &Store{db: db.Unsafe(), meta: meta}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Flags lists every flag the metadata describes.
func (s *Store) Flags() []string {
	out := make([]string, 0, len(s.meta))
	for flag := range s.meta {
		out = append(out, flag)
	}
	sort.Strings(out)

	return out
}

// Load registers the named flags (all flags when none are named) into cat.
// Flags missing from the metadata are skipped so that Resolve reports them.
func (s *Store) Load(ctx context.Context, cat *Catalog, flags ...string) error {
	if len(flags) == 0 {
		flags = s.Flags()
	}

	for _, flag := range flags {
		m, exists := s.meta[flag]
		if !exists {
			continue
		}

		def, err := s.definition(ctx, flag, m, cat.Build())
		if err != nil {
			return pfx.Err(fmt.Errorf("loading %s: %w", flag, err))
		}

		if err := cat.Register(def); err != nil {
			return pfx.Err(err)
		}

		log.Printf("Loaded %s (%s) with %d variants from table %s\n", flag, def.Method, len(def.Variants), m.Table)
	}

	return nil
}

func (s *Store) definition(ctx context.Context, flag string, m Meta, build string) (*ScoreDefinition, error) {
	def := &ScoreDefinition{
		Flag:   flag,
		Method: m.Method,
		Build:  build,
	}
	def.StoredMin, def.StoredMax = m.storedBounds()

	var rows []variantRow
	if err := s.db.SelectContext(ctx, &rows, fmt.Sprintf("SELECT * FROM %s ORDER BY rowid", m.Table)); err != nil {
		return nil, err
	}

	grouped := m.Method == MethodGrouped || m.Method == MethodHLAInteraction
	def.Variants = make([]VariantSpec, 0, len(rows))
	for _, r := range rows {
		def.Variants = append(def.Variants, r.spec(build, grouped))
	}

	if m.Method != MethodHLAInteraction {
		return def, nil
	}

	var tags []tagRow
	if err := s.db.SelectContext(ctx, &tags, fmt.Sprintf("SELECT * FROM %s ORDER BY rowid", m.TagTable)); err != nil {
		return nil, err
	}

	var ints []interactionRow
	if err := s.db.SelectContext(ctx, &ints, fmt.Sprintf("SELECT a1, a2, beta FROM %s ORDER BY rowid", m.Interactions)); err != nil {
		return nil, err
	}

	var ranks []rankRow
	if err := s.db.SelectContext(ctx, &ranks, fmt.Sprintf("SELECT haplotype, rank FROM %s", m.RankTable)); err != nil {
		return nil, err
	}

	var freqs []frequencyRow
	if m.FreqTable != "" {
		if err := s.db.SelectContext(ctx, &freqs, fmt.Sprintf("SELECT haplotype, frequency FROM %s", m.FreqTable)); err != nil {
			return nil, err
		}
	}

	def.HLA = buildHLAModel(build, tags, ints, ranks, freqs, m.HLAPartition)

	return def, nil
}

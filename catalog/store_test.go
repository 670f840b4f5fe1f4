package catalog

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const metaJSON = `{
  "T1D_GRS2": {
    "method": "hla_int",
    "db_table": "t1d_grs2",
    "db_dq": "t1d_dq",
    "db_int": "t1d_int",
    "db_rank": "t1d_rank",
    "db_freq": "t1d_freq",
    "min": -2.5,
    "max": 9.0
  },
  "T2D_PPS": {
    "method": "grouped",
    "db_table": "t2d_pps"
  }
}`

func writeFixtureDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "prs.db")
	db, err := sqlx.Connect(sqliteDriver, "file:"+path)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE t1d_grs2 (contig_id TEXT, position_hg19 INTEGER, position_hg38 INTEGER, rsid TEXT, effect_allele TEXT, other_allele TEXT, beta REAL, "group" TEXT)`,
		`INSERT INTO t1d_grs2 VALUES ('1', 114377568, 113834946, 'rs2476601', 'a', 'g', 0.7, 'immune')`,
		`INSERT INTO t1d_grs2 VALUES ('11', 2182224, 2160994, 'rs689', 'T', NULL, 0.3, 'beta_cell,immune')`,
		`CREATE TABLE t1d_dq (contig_id TEXT, position_hg19 INTEGER, position_hg38 INTEGER, effect_allele TEXT, tag TEXT)`,
		`INSERT INTO t1d_dq VALUES ('6', 32658079, 32690302, 'A', 'DR3')`,
		`INSERT INTO t1d_dq VALUES ('6', 32681049, 32713272, 'G', 'DR4')`,
		`CREATE TABLE t1d_int (a1 TEXT, a2 TEXT, beta REAL)`,
		`INSERT INTO t1d_int VALUES ('DR3', 'DR4', 3.87)`,
		`INSERT INTO t1d_int VALUES (NULL, 'DR3', 1.2)`,
		`INSERT INTO t1d_int VALUES ('NULL', 'DR4', 1.5)`,
		`CREATE TABLE t1d_rank (haplotype TEXT, rank INTEGER)`,
		`INSERT INTO t1d_rank VALUES ('DR3', 2), ('DR4', 1)`,
		`CREATE TABLE t1d_freq (haplotype TEXT, frequency REAL)`,
		`INSERT INTO t1d_freq VALUES ('DR3', 0.12), ('DR4', 0.15)`,
		`CREATE TABLE t2d_pps (contig_id TEXT, position_hg19 INTEGER, effect_allele TEXT, beta REAL, "group" TEXT)`,
		`INSERT INTO t2d_pps VALUES ('10', 114758349, 'T', 0.31, 'beta_cell')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}

	return path
}

func TestStoreLoadsHLAInteractionScore(t *testing.T) {
	meta, err := ReadMeta(strings.NewReader(metaJSON))
	require.NoError(t, err)

	store, err := OpenStoreWithMeta(writeFixtureDB(t), meta)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, []string{"T1D_GRS2", "T2D_PPS"}, store.Flags())

	cat := New(BuildHg38)
	require.NoError(t, store.Load(context.Background(), cat))

	def, err := cat.Resolve("T1D_GRS2")
	require.NoError(t, err)

	require.Len(t, def.Variants, 2)
	assert.Equal(t, 113834946, def.Variants[0].Position)
	assert.Equal(t, "A", def.Variants[0].EffectAllele)
	assert.Equal(t, "G", def.Variants[0].OtherAllele)
	assert.Equal(t, "", def.Variants[1].OtherAllele)
	assert.Equal(t, []string{"beta_cell", "immune"}, def.Variants[1].Partitions)

	require.NotNil(t, def.HLA)
	assert.Len(t, def.HLA.Tags, 2)
	assert.Equal(t, 32690302, def.HLA.Tags[0].Variant.Position)
	assert.Equal(t, 3.87, def.HLA.Pairs[HaplotypePair{A: "DR3", B: "DR4"}])
	assert.Equal(t, 1.2, def.HLA.Singles["DR3"])
	assert.Equal(t, 1.5, def.HLA.Singles["DR4"])
	assert.Equal(t, 1, def.HLA.Ranks["DR4"])
	assert.Equal(t, 0.15, def.HLA.Frequencies["DR4"])
	assert.Equal(t, DefaultHLAPartition, def.HLA.Partition)

	assert.True(t, def.StoredMin.Valid)
	assert.Equal(t, -2.5, def.StoredMin.Float64)
}

func TestStoreMissingBuildPosition(t *testing.T) {
	meta, err := ReadMeta(strings.NewReader(metaJSON))
	require.NoError(t, err)

	store, err := OpenStoreWithMeta(writeFixtureDB(t), meta)
	require.NoError(t, err)
	defer store.Close()

	// t2d_pps has no hg38 column.
	cat := New(BuildHg38)
	require.NoError(t, store.Load(context.Background(), cat, "T2D_PPS"))
	_, err = cat.Resolve("T2D_PPS")
	assert.Error(t, err)

	cat = New(BuildHg19)
	require.NoError(t, store.Load(context.Background(), cat, "T2D_PPS", "NOT_IN_META"))
	def, err := cat.Resolve("T2D_PPS")
	require.NoError(t, err)
	assert.Equal(t, MethodGrouped, def.Method)
	assert.Equal(t, []string{"beta_cell"}, def.Partitions())
}

func TestReadMetaRejectsInjectedTableName(t *testing.T) {
	_, err := ReadMeta(strings.NewReader(`{"X": {"db_table": "t; DROP TABLE t"}}`))
	assert.Error(t, err)

	_, err = ReadMeta(strings.NewReader(`{"X": {"db_table": "t", "method": "hla_int"}}`))
	assert.Error(t, err)
}

package catalog

import (
	"strconv"
	"strings"

	"gopkg.in/guregu/null.v3"
)

// variantRow is one row of a variant table. Columns a table lacks stay
// null.
type variantRow struct {
	ContigID     string      `db:"contig_id"`
	PositionHg19 null.Int    `db:"position_hg19"`
	PositionHg38 null.Int    `db:"position_hg38"`
	RSID         null.String `db:"rsid"`
	EffectAllele string      `db:"effect_allele"`
	OtherAllele  null.String `db:"other_allele"`
	Beta         float64     `db:"beta"`
	Group        null.String `db:"group"`
	Ancestry     null.String `db:"ancestry"`
}

func (r variantRow) position(build string) int {
	switch build {
	case BuildHg19:
		if r.PositionHg19.Valid {
			return int(r.PositionHg19.Int64)
		}
	case BuildHg38:
		if r.PositionHg38.Valid {
			return int(r.PositionHg38.Int64)
		}
	}

	return 0
}

func (r variantRow) spec(build string, grouped bool) VariantSpec {
	v := VariantSpec{
		Contig:       r.ContigID,
		Position:     r.position(build),
		Build:        build,
		EffectAllele: strings.ToUpper(r.EffectAllele),
		OtherAllele:  strings.ToUpper(nullable(r.OtherAllele)),
		Weight:       r.Beta,
		Ancestry:     nullable(r.Ancestry),
		RSID:         nullable(r.RSID),
	}

	if grouped {
		v.Partitions = splitGroups(nullable(r.Group))
	}

	return v
}

type tagRow struct {
	variantRow
	Tag string `db:"tag"`
}

type interactionRow struct {
	A1   null.String `db:"a1"`
	A2   string      `db:"a2"`
	Beta float64     `db:"beta"`
}

type rankRow struct {
	Haplotype string `db:"haplotype"`
	Rank      int    `db:"rank"`
}

type frequencyRow struct {
	Haplotype string  `db:"haplotype"`
	Frequency float64 `db:"frequency"`
}

// nullable treats the literal text NULL and NA the way SQL NULL is treated.
func nullable(s null.String) string {
	if !s.Valid {
		return ""
	}
	switch strings.TrimSpace(s.String) {
	case "NULL", "NA":
		return ""
	}

	return strings.TrimSpace(s.String)
}

func splitGroups(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" && part != "NA" {
			out = append(out, part)
		}
	}

	return out
}

func parseNullInt(s string) (null.Int, error) {
	switch s = strings.TrimSpace(s); s {
	case "", "NA", "NULL":
		return null.Int{}, nil
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return null.Int{}, err
	}

	return null.IntFrom(v), nil
}

func parseNullString(s string) null.String {
	if s = strings.TrimSpace(s); s == "" {
		return null.String{}
	}

	return null.StringFrom(s)
}

// buildHLAModel assembles an interaction model from its four tables.
func buildHLAModel(build string, tags []tagRow, ints []interactionRow, ranks []rankRow, freqs []frequencyRow, partition string) *HLAModel {
	m := &HLAModel{
		Tags:        make([]HLATag, 0, len(tags)),
		Pairs:       make(map[HaplotypePair]float64),
		Singles:     make(map[string]float64),
		Frequencies: make(map[string]float64),
		Ranks:       make(map[string]int),
		Partition:   partition,
	}

	for _, t := range tags {
		m.Tags = append(m.Tags, HLATag{
			Variant:   t.spec(build, false),
			Haplotype: strings.TrimSpace(t.Tag),
		})
	}

	for _, r := range ints {
		a2 := strings.TrimSpace(r.A2)
		if a1 := nullable(r.A1); a1 == "" {
			m.Singles[a2] = r.Beta
		} else {
			m.Pairs[HaplotypePair{A: a1, B: a2}] = r.Beta
		}
	}

	for _, r := range ranks {
		m.Ranks[strings.TrimSpace(r.Haplotype)] = r.Rank
	}

	for _, r := range freqs {
		m.Frequencies[strings.TrimSpace(r.Haplotype)] = r.Frequency
	}

	if m.Partition == "" {
		m.Partition = DefaultHLAPartition
	}

	return m
}

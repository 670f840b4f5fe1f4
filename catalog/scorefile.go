package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/carbocation/prsedm"
	"github.com/carbocation/prsedm/prsparser"
	"github.com/gocarina/gocsv"
)

// FlagFromPath names a flat-file score after its file, without directories or
// extensions (so t1d_grs.tsv.gz becomes t1d_grs).
func FlagFromPath(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}

	return base
}

// LoadScoreFile reads a delimited weights file with one of the prsparser
// layouts and returns its definition on the requested build. Files whose
// layout carries a partition column are grouped scores.
func LoadScoreFile(ctx context.Context, path, layout, build string, client *storage.Client) (*ScoreDefinition, error) {
	parser, err := prsparser.New(layout, build)
	if err != nil {
		return nil, err
	}

	f, err := prsedm.Open(ctx, path, client)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := parser.ReadAll(f)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	def := &ScoreDefinition{
		Flag:     FlagFromPath(path),
		Method:   MethodAdditive,
		Build:    build,
		Variants: make([]VariantSpec, 0, len(rows)),
	}

	for _, r := range rows {
		if len(r.Partitions) > 0 {
			def.Method = MethodGrouped
		}

		def.Variants = append(def.Variants, VariantSpec{
			Contig:       r.Chromosome,
			Position:     r.Position,
			Build:        build,
			EffectAllele: strings.ToUpper(string(r.EffectAllele)),
			OtherAllele:  strings.ToUpper(string(r.OtherAllele())),
			Weight:       r.Score,
			Partitions:   r.Partitions,
			RSID:         r.SNP,
		})
	}

	return def, nil
}

// HLATablePaths names the four tab-delimited tables of an interaction model.
// Frequencies may be empty, in which case ambiguous samples are weighted
// uniformly.
type HLATablePaths struct {
	Tags         string
	Interactions string
	Ranks        string
	Frequencies  string
	Partition    string
}

type tagCSVRow struct {
	ContigID     string `csv:"contig_id"`
	PositionHg19 string `csv:"position_hg19"`
	PositionHg38 string `csv:"position_hg38"`
	RSID         string `csv:"rsid"`
	EffectAllele string `csv:"effect_allele"`
	OtherAllele  string `csv:"other_allele"`
	Tag          string `csv:"tag"`
}

type interactionCSVRow struct {
	A1   string  `csv:"a1"`
	A2   string  `csv:"a2"`
	Beta float64 `csv:"beta"`
}

type rankCSVRow struct {
	Haplotype string `csv:"haplotype"`
	Rank      int    `csv:"rank"`
}

type frequencyCSVRow struct {
	Haplotype string  `csv:"haplotype"`
	Frequency float64 `csv:"frequency"`
}

// LoadHLATables attaches an interaction model read from TSV files to def and
// marks it as an hla_int score.
func LoadHLATables(ctx context.Context, def *ScoreDefinition, paths HLATablePaths, client *storage.Client) error {
	var tagRows []tagCSVRow
	if err := readTSV(ctx, paths.Tags, client, &tagRows); err != nil {
		return err
	}

	tags := make([]tagRow, 0, len(tagRows))
	for _, r := range tagRows {
		hg19, err := parseNullInt(r.PositionHg19)
		if err != nil {
			return pfx.Err(fmt.Errorf("%s: %w", paths.Tags, err))
		}
		hg38, err := parseNullInt(r.PositionHg38)
		if err != nil {
			return pfx.Err(fmt.Errorf("%s: %w", paths.Tags, err))
		}

		tags = append(tags, tagRow{
			variantRow: variantRow{
				ContigID:     r.ContigID,
				PositionHg19: hg19,
				PositionHg38: hg38,
				RSID:         parseNullString(r.RSID),
				EffectAllele: r.EffectAllele,
				OtherAllele:  parseNullString(r.OtherAllele),
			},
			Tag: r.Tag,
		})
	}

	var intRows []interactionCSVRow
	if err := readTSV(ctx, paths.Interactions, client, &intRows); err != nil {
		return err
	}
	ints := make([]interactionRow, 0, len(intRows))
	for _, r := range intRows {
		ints = append(ints, interactionRow{A1: parseNullString(r.A1), A2: r.A2, Beta: r.Beta})
	}

	var rankRows []rankCSVRow
	if err := readTSV(ctx, paths.Ranks, client, &rankRows); err != nil {
		return err
	}
	ranks := make([]rankRow, 0, len(rankRows))
	for _, r := range rankRows {
		ranks = append(ranks, rankRow(r))
	}

	var freqs []frequencyRow
	if paths.Frequencies != "" {
		var freqRows []frequencyCSVRow
		if err := readTSV(ctx, paths.Frequencies, client, &freqRows); err != nil {
			return err
		}
		for _, r := range freqRows {
			freqs = append(freqs, frequencyRow(r))
		}
	}

	def.HLA = buildHLAModel(def.Build, tags, ints, ranks, freqs, paths.Partition)
	def.Method = MethodHLAInteraction

	return nil
}

func readTSV(ctx context.Context, path string, client *storage.Client, out interface{}) error {
	f, err := prsedm.Open(ctx, path, client)
	if err != nil {
		return err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.LazyQuotes = true

	if err := gocsv.UnmarshalCSV(cr, out); err != nil {
		return pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return nil
}

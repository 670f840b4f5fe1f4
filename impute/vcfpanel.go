package impute

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/brentp/irelate/interfaces"
	"github.com/carbocation/bix"
	"github.com/carbocation/pfx"
	"github.com/carbocation/prsedm/catalog"
	"github.com/carbocation/prsedm/chrpos"
	"github.com/carbocation/prsedm/hwe"
	"github.com/carbocation/vcfgo"
)

// HWEWarnThreshold is the HWE P value below which a panel site whose
// frequency was derived from genotypes is reported, since imputing it
// assumes HWE.
const HWEWarnThreshold = 1e-6

// LoadVCFPanel reads the sites needed by variants from a tabix-indexed VCF
// (local or gs://). Frequencies come from the AF INFO field; sites without
// one are counted from their GT calls.
func LoadVCFPanel(ctx context.Context, path string, client *storage.Client, variants []catalog.VariantSpec) (*Panel, error) {
	tbx, err := bix.NewGCP(path, client)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer tbx.Close()

	// Query each position once, in contig order.
	type site struct {
		contig   string
		position int
	}
	seen := make(map[string]struct{})
	sites := make([]site, 0, len(variants))
	for _, v := range variants {
		key := siteKey(v.Contig, v.Position)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		sites = append(sites, site{contig: v.Contig, position: v.Position})
	}
	sort.SliceStable(sites, func(i, j int) bool {
		if sites[i].contig != sites[j].contig {
			return chrpos.Less(sites[i].contig, sites[j].contig)
		}
		return sites[i].position < sites[j].position
	})

	entries := make([]Entry, 0, len(sites))
	derived := 0
	for i, s := range sites {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		found, nDerived, err := panelEntries(tbx, s.contig, s.position)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("%s:%d: %w", s.contig, s.position, err))
		}
		entries = append(entries, found...)
		derived += nDerived

		if (i+1)%1000 == 0 {
			log.Printf("Read %d of %d reference panel sites\n", i+1, len(sites))
		}
	}

	log.Printf("Reference panel %s: %d entries at %d sites (%d counted from genotypes)\n", path, len(entries), len(sites), derived)

	return NewPanel(entries...)
}

func panelEntries(tbx *bix.Bix, contig string, position int) ([]Entry, int, error) {
	for _, spelling := range chrpos.Spellings(contig) {
		vals, err := tbx.Query(chrpos.PositionLocus(spelling, position))
		if err != nil {
			return nil, 0, err
		}

		var out []Entry
		derived := 0
		for {
			v, err := vals.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				return nil, 0, err
			}

			v2, ok := v.(interfaces.VarWrap)
			if !ok {
				return nil, 0, fmt.Errorf("not a valid VarWrap")
			}
			snp, ok := v2.IVariant.(*vcfgo.Variant)
			if !ok {
				return nil, 0, fmt.Errorf("not a valid IVariant")
			}
			if int(snp.Pos) != position {
				continue
			}

			afs, fromGT, err := siteFrequencies(tbx, snp)
			if err != nil {
				return nil, 0, err
			}
			if fromGT {
				derived++
			}

			for i, alt := range snp.Alt() {
				if i >= len(afs) || math.IsNaN(afs[i]) {
					continue
				}
				out = append(out, Entry{
					Contig:   contig,
					Position: position,
					Ref:      snp.Ref(),
					Alt:      alt,
					AF:       afs[i],
				})
			}
		}

		if len(out) > 0 {
			return out, derived, nil
		}
	}

	return nil, 0, nil
}

// siteFrequencies returns one frequency per alt allele.
func siteFrequencies(tbx *bix.Bix, snp *vcfgo.Variant) ([]float64, bool, error) {
	if raw, err := snp.Info().Get("AF"); err == nil && raw != nil {
		if afs := infoFloats(raw); len(afs) == len(snp.Alt()) {
			return afs, false, nil
		}
	}

	if err := tbx.VReader.Header.ParseSamples(snp); err != nil {
		return nil, false, err
	}

	gts := make([][]int, 0, len(snp.Samples))
	for _, s := range snp.Samples {
		if s != nil {
			gts = append(gts, s.GT)
		}
	}

	afs, counts := FrequenciesFromGenotypes(gts, len(snp.Alt()))
	if p, deviates := hweDeviates(counts); deviates {
		log.Printf("Reference panel site %s:%d deviates from Hardy-Weinberg equilibrium (P=%g); imputed values assume HWE\n", snp.Chromosome, snp.Pos, p)
	}

	return afs, true, nil
}

// hweDeviates screens a site with the chi-square test and confirms a low P
// value with the exact test.
func hweDeviates(counts *hwe.Counts) (float64, bool) {
	if counts == nil || counts.N() == 0 {
		return 1, false
	}

	p := counts.Fast(HWEWarnThreshold)

	return p, p < HWEWarnThreshold
}

// FrequenciesFromGenotypes counts each alt allele among called alleles.
// Genotypes with a missing allele are skipped. For biallelic sites the
// diploid genotype counts are also returned for an HWE test.
func FrequenciesFromGenotypes(gts [][]int, nAlts int) ([]float64, *hwe.Counts) {
	altCounts := make([]int, nAlts)
	called := 0

	var counts *hwe.Counts
	if nAlts == 1 {
		counts = &hwe.Counts{}
	}

GenotypeLoop:
	for _, gt := range gts {
		if len(gt) == 0 {
			continue
		}
		for _, allele := range gt {
			if allele < 0 {
				continue GenotypeLoop
			}
		}

		copies := 0
		for _, allele := range gt {
			called++
			if allele > 0 && allele <= nAlts {
				altCounts[allele-1]++
			}
			if allele == 1 {
				copies++
			}
		}

		if counts != nil && len(gt) == 2 {
			counts.Add(copies)
		}
	}

	out := make([]float64, nAlts)
	for i := range out {
		if called == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = float64(altCounts[i]) / float64(called)
	}

	return out, counts
}

// infoFloats flattens the shapes vcfgo uses for INFO values.
func infoFloats(raw interface{}) []float64 {
	switch v := raw.(type) {
	case float64:
		return []float64{v}
	case float32:
		return []float64{float64(v)}
	case int:
		return []float64{float64(v)}
	case []float64:
		return v
	case []float32:
		out := make([]float64, len(v))
		for i, f := range v {
			out[i] = float64(f)
		}
		return out
	case []interface{}:
		out := make([]float64, 0, len(v))
		for _, x := range v {
			out = append(out, infoFloats(x)...)
		}
		return out
	case string:
		out := make([]float64, 0, 1)
		for _, part := range strings.Split(v, ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				f = math.NaN()
			}
			out = append(out, f)
		}
		return out
	case []string:
		out := make([]float64, 0, len(v))
		for _, s := range v {
			out = append(out, infoFloats(s)...)
		}
		return out
	}

	return nil
}

package genotype

import (
	"context"
	"fmt"
	"io"
	"math"

	"cloud.google.com/go/storage"
	"github.com/brentp/irelate/interfaces"
	"github.com/carbocation/bix"
	"github.com/carbocation/prsedm/catalog"
	"github.com/carbocation/prsedm/chrpos"
	"github.com/carbocation/vcfgo"
)

// VCFSource reads a bgzipped, tabix-indexed VCF (local or gs://).
type VCFSource struct {
	path    string
	kind    Kind
	tbx     *bix.Bix
	samples []string
}

func OpenVCF(ctx context.Context, path string, kind Kind, client *storage.Client) (*VCFSource, error) {
	tbx, err := bix.NewGCP(path, client)
	if err != nil {
		return nil, err
	}

	samples := append([]string(nil), tbx.VReader.Header.SampleNames...)

	return &VCFSource{
		path:    path,
		kind:    kind,
		tbx:     tbx,
		samples: samples,
	}, nil
}

func (s *VCFSource) Samples() []string {
	return s.samples
}

func (s *VCFSource) Close() error {
	return s.tbx.Close()
}

// Query fetches every record at v's position. Files differ on whether contigs
// carry a chr prefix, so an empty result is retried under the other
// spelling.
func (s *VCFSource) Query(ctx context.Context, v catalog.VariantSpec) (Call, error) {
	if err := ctx.Err(); err != nil {
		return Call{}, err
	}

	var snps []*vcfgo.Variant
	for _, contig := range chrpos.Spellings(v.Contig) {
		found, err := s.fetch(contig, v.Position)
		if err != nil {
			return Call{}, locusError(v.Contig, v.Position, err)
		}
		if len(found) > 0 {
			snps = found
			break
		}
	}

	records := make([]record, 0, len(snps))
	for _, snp := range snps {
		records = append(records, s.record(snp))
	}

	dosages, ok := selectRecord(records, v)
	if !ok {
		return absentCall(len(s.samples)), nil
	}

	return Call{Found: true, Dosages: dosages}, nil
}

func (s *VCFSource) fetch(contig string, position int) ([]*vcfgo.Variant, error) {
	vals, err := s.tbx.Query(chrpos.PositionLocus(contig, position))
	if err != nil {
		return nil, err
	}

	out := make([]*vcfgo.Variant, 0, 1)
	for {
		v, err := vals.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		// Unwrap multiple layers to get to vcfgo.Variant{}
		v2, ok := v.(interfaces.VarWrap)
		if !ok {
			return nil, fmt.Errorf("%s:%d: not a valid VarWrap", v.Chrom(), v.End())
		}

		snp, ok := v2.IVariant.(*vcfgo.Variant)
		if !ok {
			return nil, fmt.Errorf("%s:%d: not a valid IVariant", v.Chrom(), v.End())
		}

		// Tabix returns overlapping records, such as deletions that start
		// upstream. Only records that start here are candidates.
		if int(snp.Pos) != position {
			continue
		}

		if err := s.tbx.VReader.Header.ParseSamples(snp); err != nil {
			return nil, err
		}

		out = append(out, snp)
	}

	return out, nil
}

func (s *VCFSource) record(snp *vcfgo.Variant) record {
	alleles := append([]string{snp.Ref()}, snp.Alt()...)
	kind := s.kind
	n := len(s.samples)

	return record{
		alleles: alleles,
		dosages: func(effect int) []float64 {
			out := nanSlice(n)
			for i := 0; i < n && i < len(snp.Samples); i++ {
				sample := snp.Samples[i]
				if sample == nil {
					continue
				}
				switch kind {
				case HardCall:
					out[i] = HardCallDosage(sample.GT, effect)
				case Dosage:
					out[i] = vcfSampleDosage(sample, len(alleles), effect)
				}
			}
			return out
		},
	}
}

// vcfSampleDosage prefers GP; biallelic records with only DS (the alt
// dosage) are also accepted.
func vcfSampleDosage(sample *vcfgo.SampleGenotype, nAlleles, effect int) float64 {
	if gp, exists := sample.Fields["GP"]; exists && gp != "" && gp != "." {
		probs := parseFloats(gp)
		if sample.Phased && len(probs) == 2*nAlleles {
			return PhasedDosage(probs, 2, nAlleles, effect)
		}
		return UnphasedDosage(probs, nAlleles, effect)
	}

	if ds, exists := sample.Fields["DS"]; exists && nAlleles == 2 {
		values := parseFloats(ds)
		if len(values) != 1 || math.IsNaN(values[0]) {
			return math.NaN()
		}
		if effect == 1 {
			return values[0]
		}
		return 2 - values[0]
	}

	return math.NaN()
}

// Package scheduler splits a scoring run into units of work (variant chunk
// by sample batch), runs them on a bounded worker pool, and merges their
// partial sums in unit order.
package scheduler

import (
	"sort"

	"github.com/carbocation/prsedm/catalog"
	"github.com/carbocation/prsedm/chrpos"
)

// Unit is one chunk of one flag's variants (or its HLA tags) for one batch
// of samples. Samples are addressed by their index in the cohort.
type Unit struct {
	Index       int
	Flag        string
	Contig      string
	Variants    []catalog.VariantSpec
	HLA         *catalog.HLAModel
	SampleStart int
	SampleEnd   int
}

func (u Unit) covers(sample int) bool {
	return sample >= u.SampleStart && sample < u.SampleEnd
}

// Plan is the full, ordered list of units for a run. Unit indices are
// positions in Units and fix the merge order.
type Plan struct {
	Flags   []string
	Samples []string
	Defs    map[string]*catalog.ScoreDefinition
	Units   []Unit

	// byFlag lists each flag's unit indices in ascending order.
	byFlag map[string][]int
}

// NewPlan resolves every flag before any scoring starts, so catalog and build
// errors abort the run up front. Each flag's variants are grouped by contig
// in chromosome order and cut into chunks of at most chunkSize variants
// (0 means one chunk per contig); each chunk is crossed with batches of at
// most batchSize samples (0 means one batch). HLA tags form one extra chunk
// per flag. Repeated flags are scored once, at their first position.
func NewPlan(cat *catalog.Catalog, flags, samples []string, chunkSize, batchSize int) (*Plan, error) {
	flags = uniqueFlags(flags)
	p := &Plan{
		Flags:   flags,
		Samples: samples,
		Defs:    make(map[string]*catalog.ScoreDefinition, len(flags)),
		byFlag:  make(map[string][]int, len(flags)),
	}

	for _, flag := range flags {
		def, err := cat.Resolve(flag)
		if err != nil {
			return nil, err
		}
		p.Defs[flag] = def
	}

	batches := sampleBatches(len(samples), batchSize)
	for _, flag := range flags {
		def := p.Defs[flag]

		for _, chunk := range chunkVariants(def.Variants, chunkSize) {
			for _, b := range batches {
				p.add(Unit{
					Flag:        flag,
					Contig:      chunk[0].Contig,
					Variants:    chunk,
					SampleStart: b[0],
					SampleEnd:   b[1],
				})
			}
		}

		if def.HLA != nil && len(def.HLA.Tags) > 0 {
			for _, b := range batches {
				p.add(Unit{
					Flag:        flag,
					Contig:      def.HLA.Tags[0].Variant.Contig,
					HLA:         def.HLA,
					SampleStart: b[0],
					SampleEnd:   b[1],
				})
			}
		}
	}

	return p, nil
}

func uniqueFlags(flags []string) []string {
	seen := make(map[string]struct{}, len(flags))
	out := make([]string, 0, len(flags))
	for _, flag := range flags {
		if _, exists := seen[flag]; exists {
			continue
		}
		seen[flag] = struct{}{}
		out = append(out, flag)
	}

	return out
}

func (p *Plan) add(u Unit) {
	u.Index = len(p.Units)
	p.Units = append(p.Units, u)
	p.byFlag[u.Flag] = append(p.byFlag[u.Flag], u.Index)
}

// chunkVariants groups variants by contig, contigs in chromosome order and
// variants in catalog order within a contig, then splits each group.
func chunkVariants(variants []catalog.VariantSpec, chunkSize int) [][]catalog.VariantSpec {
	groups := make(map[string][]catalog.VariantSpec)
	for _, v := range variants {
		key := chrpos.Normalize(v.Contig)
		groups[key] = append(groups[key], v)
	}

	contigs := make([]string, 0, len(groups))
	for c := range groups {
		contigs = append(contigs, c)
	}
	sort.Slice(contigs, func(i, j int) bool { return chrpos.Less(contigs[i], contigs[j]) })

	var out [][]catalog.VariantSpec
	for _, c := range contigs {
		group := groups[c]
		size := chunkSize
		if size <= 0 {
			size = len(group)
		}
		for start := 0; start < len(group); start += size {
			end := start + size
			if end > len(group) {
				end = len(group)
			}
			out = append(out, group[start:end])
		}
	}

	return out
}

// sampleBatches returns [start, end) ranges covering n samples.
func sampleBatches(n, batchSize int) [][2]int {
	if batchSize <= 0 || batchSize > n {
		batchSize = n
	}
	if n == 0 {
		return [][2]int{{0, 0}}
	}

	var out [][2]int
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}

	return out
}

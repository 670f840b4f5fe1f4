package genotype

import (
	"context"
	"fmt"
	"sync"

	"github.com/carbocation/prsedm/catalog"
	"github.com/carbocation/prsedm/chrpos"
	"github.com/carbocation/prsedm/prserr"
)

// Record is an in-memory genotype record. GT and GP are indexed by sample;
// either may be nil.
type Record struct {
	Contig   string
	Position int
	Alleles  []string // ref first
	GT       [][]int
	GP       [][]float64
}

// Memory is a genotype container held in memory. It is safe for concurrent
// use because it is never mutated after construction.
type Memory struct {
	kind    Kind
	samples []string
	records map[string][]Record
}

func NewMemory(kind Kind, samples []string, records ...Record) *Memory {
	m := &Memory{
		kind:    kind,
		samples: samples,
		records: make(map[string][]Record),
	}

	for _, r := range records {
		key := memoryKey(r.Contig, r.Position)
		m.records[key] = append(m.records[key], r)
	}

	return m
}

func memoryKey(contig string, position int) string {
	return fmt.Sprintf("%s:%d", chrpos.Normalize(contig), position)
}

func (m *Memory) Samples() []string {
	return m.samples
}

func (m *Memory) Query(ctx context.Context, v catalog.VariantSpec) (Call, error) {
	if err := ctx.Err(); err != nil {
		return Call{}, err
	}

	candidates := m.records[memoryKey(v.Contig, v.Position)]
	records := make([]record, 0, len(candidates))
	for _, r := range candidates {
		r := r
		records = append(records, record{
			alleles: r.Alleles,
			dosages: func(effect int) []float64 {
				out := nanSlice(len(m.samples))
				for i := range out {
					switch m.kind {
					case HardCall:
						if i < len(r.GT) {
							out[i] = HardCallDosage(r.GT[i], effect)
						}
					case Dosage:
						if i < len(r.GP) {
							out[i] = UnphasedDosage(r.GP[i], len(r.Alleles), effect)
						}
					}
				}
				return out
			},
		})
	}

	dosages, ok := selectRecord(records, v)
	if !ok {
		return absentCall(len(m.samples)), nil
	}

	return Call{Found: true, Dosages: dosages}, nil
}

func (m *Memory) Close() error {
	return nil
}

// MemoryOpener serves in-memory containers by contig. Contigs listed in
// Failures fail to open with the given error, which lets callers exercise
// partial-failure handling.
type MemoryOpener struct {
	Mapping    map[string]*Memory
	Failures   map[string]error
	mu         sync.Mutex
	openCounts map[string]int
}

func (o *MemoryOpener) Samples(ctx context.Context) ([]string, error) {
	var reference []string
	var referenceName string
	for _, name := range sortedKeys(o.Mapping) {
		samples := o.Mapping[name].Samples()
		if reference == nil {
			reference, referenceName = samples, name
			continue
		}
		if err := sameSamples(referenceName, reference, name, samples); err != nil {
			return nil, err
		}
	}

	return reference, nil
}

func (o *MemoryOpener) Open(ctx context.Context, contig string) (Source, error) {
	o.mu.Lock()
	if o.openCounts == nil {
		o.openCounts = make(map[string]int)
	}
	o.openCounts[contig]++
	o.mu.Unlock()

	for _, candidate := range chrpos.Candidates(contig) {
		if err, exists := o.Failures[candidate]; exists {
			return nil, prserr.Wrap(prserr.ErrGenotypeSource, err, "opening contig %s", contig)
		}
		if m, exists := o.Mapping[candidate]; exists {
			return m, nil
		}
	}

	return nil, prserr.New(prserr.ErrGenotypeSource, "no genotype container for contig %s", contig)
}

// Opens reports how many times contig has been opened.
func (o *MemoryOpener) Opens(contig string) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.openCounts[contig]
}

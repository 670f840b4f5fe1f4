// Package catalog holds the score definitions available to a run. A Catalog
// is built once for one genome build and is read-only afterwards, so it can
// be shared by every worker without locking.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carbocation/prsedm/chrpos"
	"github.com/carbocation/prsedm/prserr"
	"gopkg.in/guregu/null.v3"
)

const (
	BuildHg19 = "hg19"
	BuildHg38 = "hg38"
)

// DefaultHLAPartition is the partition that carries the HLA interaction term
// unless the definition names another.
const DefaultHLAPartition = "HLA_DRDQ"

type Method string

const (
	MethodAdditive       Method = "additive"
	MethodGrouped        Method = "grouped"
	MethodHLAInteraction Method = "hla_int"
)

// VariantSpec is one weighted variant of a score, positioned on a single
// genome build.
type VariantSpec struct {
	Contig       string
	Position     int // 0 when the source had no position for Build
	Build        string
	EffectAllele string
	OtherAllele  string // empty when unknown
	Weight       float64
	Ancestry     string
	Partitions   []string
	RSID         string
}

// Key identifies a variant within a definition.
func (v VariantSpec) Key() string {
	return fmt.Sprintf("%s:%d:%s:%s", chrpos.Normalize(v.Contig), v.Position, v.Build, strings.ToUpper(v.EffectAllele))
}

func (v VariantSpec) String() string {
	return fmt.Sprintf("%s:%d:%s>%s", v.Contig, v.Position, v.OtherAllele, v.EffectAllele)
}

func (v VariantSpec) InPartition(partition string) bool {
	for _, p := range v.Partitions {
		if p == partition {
			return true
		}
	}

	return false
}

// HLATag is a tag SNP whose effect-allele count is read as copies of
// Haplotype.
type HLATag struct {
	Variant   VariantSpec
	Haplotype string
}

// HaplotypePair is an unordered pair of haplotype calls; NoCall stands in for
// the second haplotype of a sample with a single call.
type HaplotypePair struct {
	A string
	B string
}

const NoCall = "X"

func (p HaplotypePair) String() string {
	return p.A + "/" + p.B
}

// HLAModel is the interaction rule of an hla_int score.
type HLAModel struct {
	Tags        []HLATag
	Pairs       map[HaplotypePair]float64
	Singles     map[string]float64
	Frequencies map[string]float64
	Ranks       map[string]int
	Partition   string
}

// Haplotypes lists every haplotype named anywhere in the model, sorted.
func (m *HLAModel) Haplotypes() []string {
	seen := make(map[string]struct{})
	for _, t := range m.Tags {
		seen[t.Haplotype] = struct{}{}
	}
	for p := range m.Pairs {
		seen[p.A] = struct{}{}
		seen[p.B] = struct{}{}
	}
	for h := range m.Singles {
		seen[h] = struct{}{}
	}
	delete(seen, NoCall)

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Strings(out)

	return out
}

type ScoreDefinition struct {
	Flag      string
	Method    Method
	Build     string
	Variants  []VariantSpec
	HLA       *HLAModel
	StoredMin null.Float
	StoredMax null.Float
}

// Partitions lists the partition ids of the definition in sorted order,
// including the HLA partition when there is an interaction model.
func (d *ScoreDefinition) Partitions() []string {
	seen := make(map[string]struct{})
	for _, v := range d.Variants {
		for _, p := range v.Partitions {
			seen[p] = struct{}{}
		}
	}
	if d.HLA != nil {
		seen[d.HLA.Partition] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)

	return out
}

// Catalog maps flags to definitions for one build.
type Catalog struct {
	build  string
	defs   map[string]*ScoreDefinition
	broken map[string]error
}

func New(build string) *Catalog {
	return &Catalog{
		build:  build,
		defs:   make(map[string]*ScoreDefinition),
		broken: make(map[string]error),
	}
}

func (c *Catalog) Build() string {
	return c.build
}

// Register adds a definition. Definitions whose variants lack a position on
// the catalog's build are kept as unresolvable so that Resolve can report
// UnsupportedBuild. Structural problems (duplicate flags or variants) are
// returned directly.
func (c *Catalog) Register(def *ScoreDefinition) error {
	if def.Flag == "" {
		return fmt.Errorf("score definition has no flag")
	}
	if _, exists := c.defs[def.Flag]; exists {
		return fmt.Errorf("flag %s registered twice", def.Flag)
	}
	if _, exists := c.broken[def.Flag]; exists {
		return fmt.Errorf("flag %s registered twice", def.Flag)
	}
	if def.Build == "" {
		def.Build = c.build
	}
	if def.HLA != nil && def.HLA.Partition == "" {
		def.HLA.Partition = DefaultHLAPartition
	}

	seen := make(map[string]struct{}, len(def.Variants))
	for i := range def.Variants {
		v := &def.Variants[i]
		if v.Build == "" {
			v.Build = def.Build
		}
		if v.Position <= 0 || v.Build != c.build {
			c.broken[def.Flag] = &prserr.Error{
				Kind:       prserr.ErrUnsupportedBuild,
				Component:  prserr.ComponentCatalog,
				Flag:       def.Flag,
				Chromosome: v.Contig,
				Message:    fmt.Sprintf("variant %s (%s) has no %s position", v.RSID, v.EffectAllele, c.build),
			}
			return nil
		}

		key := v.Key()
		if _, exists := seen[key]; exists {
			return fmt.Errorf("flag %s lists variant %s twice", def.Flag, key)
		}
		seen[key] = struct{}{}
	}

	if def.HLA != nil {
		for _, tag := range def.HLA.Tags {
			if tag.Variant.Position <= 0 {
				c.broken[def.Flag] = &prserr.Error{
					Kind:      prserr.ErrUnsupportedBuild,
					Component: prserr.ComponentCatalog,
					Flag:      def.Flag,
					Message:   fmt.Sprintf("HLA tag for %s has no %s position", tag.Haplotype, c.build),
				}
				return nil
			}
		}
	}

	c.defs[def.Flag] = def

	return nil
}

// Resolve returns the definition for flag, or UnknownScoreFlag /
// UnsupportedBuild.
func (c *Catalog) Resolve(flag string) (*ScoreDefinition, error) {
	if def, exists := c.defs[flag]; exists {
		return def, nil
	}
	if err, exists := c.broken[flag]; exists {
		return nil, err
	}

	return nil, &prserr.Error{
		Kind:      prserr.ErrUnknownScoreFlag,
		Component: prserr.ComponentCatalog,
		Flag:      flag,
		Message:   fmt.Sprintf("available flags: %s", strings.Join(c.ListAvailable(), ", ")),
	}
}

// ListAvailable lists the flags that resolve on this build.
func (c *Catalog) ListAvailable() []string {
	out := make([]string, 0, len(c.defs))
	for flag := range c.defs {
		out = append(out, flag)
	}
	sort.Strings(out)

	return out
}

// ListUnavailable maps flags that are registered but cannot be resolved on
// this build to the reason.
func (c *Catalog) ListUnavailable() map[string]error {
	out := make(map[string]error, len(c.broken))
	for flag, err := range c.broken {
		out[flag] = err
	}

	return out
}

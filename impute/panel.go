// Package impute fills variants that a sample is missing with their
// expected allele count under Hardy-Weinberg equilibrium, using a reference
// panel of allele frequencies.
package impute

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/carbocation/prsedm/catalog"
	"github.com/carbocation/prsedm/chrpos"
	"github.com/gocarina/gocsv"
)

// Entry is the frequency of Alt at one panel site.
type Entry struct {
	Contig   string  `csv:"contig"`
	Position int     `csv:"position"`
	Ref      string  `csv:"ref"`
	Alt      string  `csv:"alt"`
	AF       float64 `csv:"af"`
}

// Panel is an immutable lookup of reference allele frequencies. It is built
// once at the start of a run and shared by every worker without locking.
type Panel struct {
	sites map[string][]Entry
	n     int
}

func NewPanel(entries ...Entry) (*Panel, error) {
	p := &Panel{sites: make(map[string][]Entry)}

	for _, e := range entries {
		if math.IsNaN(e.AF) || e.AF < 0 || e.AF > 1 {
			return nil, fmt.Errorf("%s:%d %s>%s: allele frequency %v is outside [0,1]", e.Contig, e.Position, e.Ref, e.Alt, e.AF)
		}

		e.Ref = strings.ToUpper(e.Ref)
		e.Alt = strings.ToUpper(e.Alt)

		key := siteKey(e.Contig, e.Position)
		p.sites[key] = append(p.sites[key], e)
		p.n++
	}

	return p, nil
}

func siteKey(contig string, position int) string {
	return fmt.Sprintf("%s:%d", chrpos.Normalize(contig), position)
}

func (p *Panel) Len() int {
	if p == nil {
		return 0
	}

	return p.n
}

// Frequency returns the frequency of v's effect allele. A site matches when
// its ref/alt pair contains the effect allele and, if v names one, the other
// allele; the first matching site in load order wins.
func (p *Panel) Frequency(v catalog.VariantSpec) (float64, bool) {
	if p == nil {
		return 0, false
	}

	for _, e := range p.sites[siteKey(v.Contig, v.Position)] {
		var af float64
		var other string

		switch {
		case strings.EqualFold(e.Alt, v.EffectAllele):
			af, other = e.AF, e.Ref
		case strings.EqualFold(e.Ref, v.EffectAllele):
			af, other = 1-e.AF, e.Alt
		default:
			continue
		}

		if v.OtherAllele != "" && !strings.EqualFold(other, v.OtherAllele) {
			continue
		}

		return af, true
	}

	return 0, false
}

// ReadPanelTable reads a tab-delimited panel with the columns contig,
// position, ref, alt and af.
func ReadPanelTable(r io.Reader) (*Panel, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'

	var entries []Entry
	if err := gocsv.UnmarshalCSV(cr, &entries); err != nil {
		return nil, pfx.Err(err)
	}

	return NewPanel(entries...)
}

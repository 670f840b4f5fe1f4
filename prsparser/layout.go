package prsparser

import (
	"sort"
	"strings"
)

// Layout describes where each field lives in a delimited weights file.
// Column indices are zero-based; -1 marks a column the layout lacks.
type Layout struct {
	Delimiter       rune // 0 means detect from the file's first lines
	Comment         rune
	Header          bool
	ColEffectAllele int
	ColAllele1      int
	ColAllele2      int
	ColChromosome   int
	ColPosition     int
	ColScore        int
	ColSNP          int
	ColPartition    int

	// ColPositions, when set, maps a genome build to its position column and
	// takes precedence over ColPosition.
	ColPositions map[string]int

	Parser *func(layout *Layout, build string, row []string) (PRS, error)
}

var Layouts = map[string]Layout{
	"AVKNG2018": {
		Delimiter:       '\t',
		Comment:         '#',
		ColEffectAllele: 1,
		ColAllele1:      5,
		ColAllele2:      6,
		ColChromosome:   3,
		ColPosition:     4,
		ColScore:        2,
		ColSNP:          0,
		ColPartition:    -1,
		Parser:          &defaultParseRow,
	},
	"LDPRED": {
		Delimiter:       ' ',
		Comment:         '#',
		ColEffectAllele: 3,
		ColAllele1:      3,
		ColAllele2:      4,
		ColChromosome:   0,
		ColPosition:     1,
		ColScore:        6,
		ColSNP:          2,
		ColPartition:    -1,
		Parser:          &ldpredParseRow,
	},
	// PRSEDM matches the variant tables of the sqlite catalog, exported as
	// text: contig_id, position_hg19, position_hg38, rsid, effect_allele,
	// other_allele, beta, and an optional comma-separated group column.
	"PRSEDM": {
		Delimiter:       0,
		Comment:         '#',
		Header:          true,
		ColEffectAllele: 4,
		ColAllele1:      4,
		ColAllele2:      5,
		ColChromosome:   0,
		ColPosition:     -1,
		ColPositions:    map[string]int{"hg19": 1, "hg38": 2},
		ColScore:        6,
		ColSNP:          3,
		ColPartition:    7,
		Parser:          &defaultParseRow,
	},
}

// LayoutNames lists the known layouts in a stable order.
func LayoutNames() string {
	names := make([]string, 0, len(Layouts))
	for m := range Layouts {
		names = append(names, m)
	}
	sort.Strings(names)

	return strings.Join(names, ", ")
}

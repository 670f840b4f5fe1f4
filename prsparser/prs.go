package prsparser

import "strings"

type Allele string

// Is compares alleles without regard to case.
func (a Allele) Is(other Allele) bool {
	return strings.EqualFold(string(a), string(other))
}

type PRS struct {
	EffectAllele Allele
	Allele1      Allele
	Allele2      Allele
	Chromosome   string
	Position     int // 0 when the file has no position for the requested build
	Score        float64
	SNP          string
	Partitions   []string
}

// OtherAllele is whichever of Allele1/Allele2 is not the effect allele.
func (p PRS) OtherAllele() Allele {
	if p.EffectAllele.Is(p.Allele1) {
		return p.Allele2
	}

	return p.Allele1
}

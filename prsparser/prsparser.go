package prsparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/carbocation/prsedm"
)

type PRSParser struct {
	CSVReaderSettings *csv.Reader
	Layout            Layout
	Build             string
}

func New(layout, build string) (*PRSParser, error) {
	l, exists := Layouts[layout]
	if !exists {
		return nil, fmt.Errorf("Layout %s is not found. Valid layout names include: %s", layout, LayoutNames())
	}

	return NewWithLayout(l, build)
}

func NewWithLayout(layout Layout, build string) (*PRSParser, error) {
	if layout.ColPositions != nil {
		if _, exists := layout.ColPositions[build]; !exists {
			return nil, fmt.Errorf("layout has no position column for build %q", build)
		}
	}

	n := &PRSParser{}
	n.Layout = layout
	n.Build = build
	n.CSVReaderSettings = &csv.Reader{}
	n.CSVReaderSettings.Comma = layout.Delimiter
	n.CSVReaderSettings.Comment = layout.Comment

	return n, nil
}

func (prsp *PRSParser) ParseRow(row []string) (PRS, error) {
	if prsp.Layout.Parser == nil {
		return defaultParseRow(&prsp.Layout, prsp.Build, row)
	}

	return (*prsp.Layout.Parser)(&prsp.Layout, prsp.Build, row)
}

// ReadAll parses every data row of r. When the layout does not fix a
// delimiter, it is detected from the first few kilobytes.
func (prsp *PRSParser) ReadAll(r io.Reader) ([]PRS, error) {
	buffered := bufio.NewReader(r)

	comma := prsp.CSVReaderSettings.Comma
	if comma == 0 {
		sample, err := buffered.Peek(4096)
		if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
			return nil, pfx.Err(err)
		}
		comma = prsedm.DetermineDelimiter(sample)
	}

	cr := csv.NewReader(buffered)
	cr.Comma = comma
	cr.Comment = prsp.CSVReaderSettings.Comment
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = comma == ' '

	out := make([]PRS, 0)
	for i := 0; ; i++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, pfx.Err(err)
		}

		if i == 0 && prsp.Layout.Header {
			continue
		}

		p, err := prsp.ParseRow(row)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("row %d: %w", i+1, err))
		}
		out = append(out, p)
	}

	return out, nil
}

var defaultParseRow = func(layout *Layout, build string, row []string) (PRS, error) {
	p := PRS{}

	for _, col := range []int{layout.ColEffectAllele, layout.ColAllele1, layout.ColAllele2, layout.ColChromosome, layout.ColScore} {
		if col >= len(row) {
			return p, fmt.Errorf("expected at least %d columns, found %d", col+1, len(row))
		}
	}

	p.EffectAllele = Allele(row[layout.ColEffectAllele])
	p.Allele1 = Allele(row[layout.ColAllele1])
	p.Allele2 = Allele(row[layout.ColAllele2])
	p.Chromosome = row[layout.ColChromosome]

	if col := layout.positionColumn(build); col >= 0 && col < len(row) {
		if value := row[col]; value != "" && value != "NA" {
			pos, err := strconv.Atoi(value)
			if err != nil {
				return p, err
			}
			p.Position = pos
		}
	}

	score, err := strconv.ParseFloat(row[layout.ColScore], 64)
	if err != nil {
		return p, err
	}
	p.Score = score

	if layout.ColSNP >= 0 && layout.ColSNP < len(row) {
		p.SNP = row[layout.ColSNP]
	}

	if layout.ColPartition >= 0 && layout.ColPartition < len(row) {
		for _, part := range strings.Split(row[layout.ColPartition], ",") {
			if part = strings.TrimSpace(part); part != "" && part != "NA" {
				p.Partitions = append(p.Partitions, part)
			}
		}
	}

	return p, nil
}

// LDpred files carry the alt allele's weight; a negative weight is flipped
// onto the ref allele so that every effect is risk-increasing.
var ldpredParseRow = func(layout *Layout, build string, row []string) (PRS, error) {
	p, err := defaultParseRow(layout, build, row)
	if err != nil {
		return p, err
	}

	p.Chromosome = strings.TrimPrefix(p.Chromosome, "chrom_")
	p.EffectAllele = p.Allele2
	if p.Score < 0 {
		p.EffectAllele = p.Allele1
		p.Score = -p.Score
	}

	return p, nil
}

func (l *Layout) positionColumn(build string) int {
	if l.ColPositions != nil {
		if col, exists := l.ColPositions[build]; exists {
			return col
		}
		return -1
	}

	return l.ColPosition
}

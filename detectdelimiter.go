package prsedm

import (
	"bytes"
	"strings"

	"github.com/csimplestring/go-csv/detector"
)

// DetermineDelimiter returns the single most likely rune that delimits the
// values in sample, assuming a CSV-like file. Samples with neither tabs nor
// commas but with runs of spaces are treated as whitespace-delimited and
// yield ' '.
func DetermineDelimiter(sample []byte) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(bytes.NewReader(sample), '"')

	for _, v := range delimiters {
		if v == "\t" || v == "," || v == ";" || v == "|" {
			return rune(v[0])
		}
	}

	if s := string(sample); !strings.ContainsAny(s, "\t,") && strings.Contains(s, " ") {
		return ' '
	}

	if len(delimiters) > 0 {
		return rune(delimiters[0][0])
	}

	return '\t'
}

package chrpos

import (
	"math"
	"strconv"
	"strings"
)

// AllContigs is the key under which a single container spanning every contig
// is registered.
const AllContigs = "all"

// Normalize strips a leading "chr" and any leading zeroes (BGENIX stores
// chromosome 1 as "01" in the UK Biobank), so that "chr01", "01" and "1" all
// compare equal.
func Normalize(contig string) string {
	c := contig
	if len(c) > 3 && strings.EqualFold(c[:3], "chr") {
		c = c[3:]
	}

	if strings.HasPrefix(c, "0") {
		if chrInt, err := strconv.Atoi(c); err == nil {
			c = strconv.Itoa(chrInt)
		}
	}

	switch strings.ToUpper(c) {
	case "X", "Y", "M":
		return strings.ToUpper(c)
	case "MT":
		return "M"
	}

	return c
}

// Candidates lists, in order, the names under which a contig may have been
// registered: as given, with a chr prefix, without one, and finally the
// catch-all container.
func Candidates(contig string) []string {
	out := []string{contig}
	seen := map[string]struct{}{contig: {}}

	add := func(c string) {
		if _, exists := seen[c]; exists {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	if strings.HasPrefix(contig, "chr") {
		add(strings.TrimPrefix(contig, "chr"))
	} else {
		add("chr" + contig)
	}
	add(Normalize(contig))
	add("chr" + Normalize(contig))
	add(AllContigs)

	return out
}

// Rank orders contigs as 1..22, X, Y, M, then anything else.
func Rank(contig string) int {
	c := Normalize(contig)
	if n, err := strconv.Atoi(c); err == nil {
		return n
	}

	switch c {
	case "X":
		return 23
	case "Y":
		return 24
	case "M":
		return 25
	}

	return math.MaxInt32
}

// Less is a contig sort order; ties in Rank fall back to the name.
func Less(a, b string) bool {
	ra, rb := Rank(a), Rank(b)
	if ra != rb {
		return ra < rb
	}

	return Normalize(a) < Normalize(b)
}

// Spellings returns contig as written and with its chr prefix toggled, for
// querying files whose naming convention is unknown.
func Spellings(contig string) []string {
	if strings.HasPrefix(contig, "chr") {
		return []string{contig, strings.TrimPrefix(contig, "chr")}
	}

	return []string{contig, "chr" + contig}
}

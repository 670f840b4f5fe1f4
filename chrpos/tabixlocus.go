package chrpos

import "fmt"

// TabixLocus satisfies the interface used by bix for region queries. Start is
// zero-based, End is inclusive of the last position.
type TabixLocus struct {
	chrom string
	start int
	end   int
}

func MakeTabixLocus(chrom string, start, end int) TabixLocus {
	return TabixLocus{
		chrom: chrom,
		start: start,
		end:   end,
	}
}

// PositionLocus spans a single 1-based position.
func PositionLocus(chrom string, position int) TabixLocus {
	return MakeTabixLocus(chrom, position-1, position)
}

func (tl TabixLocus) Chrom() string {
	return tl.chrom
}

func (tl TabixLocus) Start() uint32 {
	return uint32(tl.start)
}

func (tl TabixLocus) End() uint32 {
	return uint32(tl.end)
}

func (tl TabixLocus) String() string {
	return fmt.Sprintf("%s:%d-%d", tl.chrom, tl.start, tl.end)
}

package output

import (
	"fmt"
	"io"
	"log"

	"github.com/carbocation/prsedm/scheduler"
	"github.com/carbocation/prsedm/score"
	"github.com/montanaflynn/stats"
)

// Summary describes the raw scores of one flag across the cohort.
type Summary struct {
	Flag   string
	N      int
	Failed int
	Mean   float64
	SD     float64
	Min    float64
	Median float64
	Max    float64
}

// Summarize computes one Summary per requested flag, in request order. Only
// successful rows contribute to the statistics.
func Summarize(res *scheduler.Result) ([]Summary, error) {
	raws := make(map[string][]float64, len(res.Flags))
	failed := make(map[string]int, len(res.Flags))
	for _, row := range res.Rows {
		if row.Failed() {
			failed[row.Flag]++
			continue
		}
		raws[row.Flag] = append(raws[row.Flag], row.Score.Raw)
	}

	out := make([]Summary, 0, len(res.Flags))
	for _, flag := range res.Flags {
		s := Summary{Flag: flag, Failed: failed[flag]}

		data := stats.LoadRawData(raws[flag])
		s.N = data.Len()
		if s.N < 1 {
			out = append(out, s)
			continue
		}

		var err error
		if s.Mean, err = data.Mean(); err != nil {
			return nil, err
		}
		if s.Min, err = data.Min(); err != nil {
			return nil, err
		}
		if s.Median, err = data.Median(); err != nil {
			return nil, err
		}
		if s.Max, err = data.Max(); err != nil {
			return nil, err
		}
		if s.N > 1 {
			if s.SD, err = data.StandardDeviationSample(); err != nil {
				return nil, err
			}
		}

		out = append(out, s)
	}

	return out, nil
}

func (s Summary) String() string {
	if s.N < 1 {
		return fmt.Sprintf("%s: no scored samples (%d failed)", s.Flag, s.Failed)
	}

	return fmt.Sprintf("%s: %d scored, %d failed, mean %.4g, sd %.4g, min %.4g, median %.4g, max %.4g", s.Flag, s.N, s.Failed, s.Mean, s.SD, s.Min, s.Median, s.Max)
}

// LogSummary logs one line per flag.
func LogSummary(res *scheduler.Result) error {
	summaries, err := Summarize(res)
	if err != nil {
		return err
	}

	for _, s := range summaries {
		log.Println(s)
	}

	return nil
}

// WriteBounds prints each flag's normalization envelope, including the part
// contributed by the HLA interaction term.
func WriteBounds(w io.Writer, flags []string, bounds map[string]score.Bounds) error {
	if _, err := fmt.Fprintln(w, "flag\tmin\tmax\thla_min\thla_max"); err != nil {
		return err
	}

	for _, flag := range flags {
		b := bounds[flag]
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", flag, formatFloat(b.Min), formatFloat(b.Max), formatFloat(b.HLAMin), formatFloat(b.HLAMax)); err != nil {
			return err
		}
	}

	return nil
}

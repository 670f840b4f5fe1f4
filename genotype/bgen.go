package genotype

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/bgen"
	"github.com/carbocation/pfx"
	"github.com/carbocation/prsedm"
	"github.com/carbocation/prsedm/catalog"
	"github.com/carbocation/prsedm/chrpos"
	"github.com/cenkalti/backoff"
)

// BGENSource reads a BGEN file through its BGI index. The BGEN itself must be
// on a local (or fuse-mounted) filesystem; a gs:// BGI is copied locally
// first because SQLite reads from a filename.
type BGENSource struct {
	bgenPath string
	bgiPath  string
	kind     Kind
	bgi      *bgen.BGIIndex
	b        *bgen.BGEN
	samples  []string
}

func OpenBGEN(ctx context.Context, bgenPath string, kind Kind, sampleFile string, client *storage.Client) (*BGENSource, error) {
	bgiPath := bgenPath + ".bgi"

	// Repeatedly reading SQLite files over-the-wire is slow. So localize
	// them.
	if prsedm.IsRemote(bgiPath) {
		localPath, newDownload, err := LocalizeBGI(ctx, bgiPath, client)
		if err != nil {
			return nil, err
		}
		if newDownload {
			log.Printf("Copied BGI file from %s to %s\n", bgiPath, localPath)
		}
		bgiPath = localPath
	}

	s := &BGENSource{
		bgenPath: bgenPath,
		bgiPath:  bgiPath,
		kind:     kind,
	}
	if err := s.open(); err != nil {
		return nil, err
	}

	n, err := s.countSamples()
	if err != nil {
		s.Close()
		return nil, err
	}

	if sampleFile != "" {
		s.samples, err = readSampleFile(ctx, sampleFile, client)
		if err != nil {
			s.Close()
			return nil, err
		}
		if len(s.samples) != n {
			s.Close()
			return nil, fmt.Errorf("%s lists %d samples but %s has %d", sampleFile, len(s.samples), bgenPath, n)
		}
	} else {
		s.samples = make([]string, n)
		for i := range s.samples {
			s.samples[i] = strconv.Itoa(i)
		}
	}

	return s, nil
}

func (s *BGENSource) open() error {
	bgi, err := OpenBGI(s.bgiPath)
	if err != nil {
		return pfx.Err(err)
	}
	bgi.Metadata.FirstThousandBytes = nil

	b, err := bgen.Open(s.bgenPath)
	if err != nil {
		// The bgi opened, so close it before losing the handle.
		bgi.Close()
		return pfx.Err(err)
	}

	s.bgi, s.b = bgi, b

	return nil
}

func (s *BGENSource) Close() error {
	if s.b != nil {
		s.b.Close()
		s.b = nil
	}

	var err error
	if s.bgi != nil {
		err = s.bgi.Close()
		s.bgi = nil
	}

	return err
}

func (s *BGENSource) Samples() []string {
	return s.samples
}

func (s *BGENSource) countSamples() (int, error) {
	var first []bgen.VariantIndex
	if err := s.bgi.DB.Select(&first, "SELECT * FROM Variant ORDER BY file_start_position LIMIT 1"); err != nil {
		return 0, pfx.Err(err)
	}
	if len(first) == 0 {
		return 0, fmt.Errorf("%s indexes no variants", s.bgiPath)
	}

	vr := s.b.NewVariantReader()
	variant := vr.ReadAt(int64(first[0].FileStartPosition))
	if err := vr.Error(); err != nil {
		return 0, pfx.Err(err)
	}

	return len(variant.SampleProbabilities), nil
}

// Query reads every BGEN variant at v's position. Input/output errors, which
// come from unreliable filesystems, are retried after reopening the handles;
// anything else is returned.
func (s *BGENSource) Query(ctx context.Context, v catalog.VariantSpec) (Call, error) {
	var records []record

	operation := func() error {
		var err error
		records, err = s.fetch(v)
		if err == nil {
			return nil
		}
		if !isIOError(err) {
			return backoff.Permanent(err)
		}

		// We also seemingly need to reopen the handles.
		s.Close()
		if reopenErr := s.open(); reopenErr != nil {
			return reopenErr
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), MaxOpenAttempts-1), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return Call{}, locusError(v.Contig, v.Position, err)
	}

	dosages, ok := selectRecord(records, v)
	if !ok {
		return absentCall(len(s.samples)), nil
	}

	return Call{Found: true, Dosages: dosages}, nil
}

func (s *BGENSource) fetch(v catalog.VariantSpec) ([]record, error) {
	// Note: BGENIX stores chromosome 1 as "01", etc., in the UK Biobank.
	var sites []bgen.VariantIndex
	if err := s.bgi.DB.Select(&sites, "SELECT * FROM Variant WHERE position=?", v.Position); err != nil {
		return nil, pfx.Err(err)
	}

	want := chrpos.Normalize(v.Contig)
	out := make([]record, 0, len(sites))
	for _, site := range sites {
		if chrpos.Normalize(site.Chromosome) != want {
			continue
		}

		vr := s.b.NewVariantReader()
		variant := vr.ReadAt(int64(site.FileStartPosition))
		if err := vr.Error(); err != nil {
			return nil, err
		}

		out = append(out, s.record(variant))
	}

	return out, nil
}

func (s *BGENSource) record(variant *bgen.Variant) record {
	alleles := make([]string, len(variant.Alleles))
	for i, a := range variant.Alleles {
		alleles[i] = string(a)
	}
	n := len(s.samples)
	kind := s.kind
	phased := variant.Phased

	return record{
		alleles: alleles,
		dosages: func(effect int) []float64 {
			out := nanSlice(n)
			for i := 0; i < n && i < len(variant.SampleProbabilities); i++ {
				sp := variant.SampleProbabilities[i]
				out[i] = bgenSampleDosage(sp.Probabilities, int(sp.Ploidy), len(alleles), effect, phased, kind)
			}
			return out
		},
	}
}

func bgenSampleDosage(probs []float64, ploidy, nAlleles, effect int, phased bool, kind Kind) float64 {
	if len(probs) == 0 {
		return math.NaN()
	}

	if phased {
		if kind == HardCall {
			return phasedHardCall(probs, ploidy, nAlleles, effect)
		}
		return PhasedDosage(probs, ploidy, nAlleles, effect)
	}

	if ploidy != 2 {
		return math.NaN()
	}

	// Layout 2 may omit the final genotype probability.
	if full := nAlleles * (nAlleles + 1) / 2; len(probs) == full-1 {
		rest := 1.0
		for _, p := range probs {
			rest -= p
		}
		probs = append(append([]float64(nil), probs...), rest)
	}

	if kind == HardCall {
		return unphasedHardCall(probs, nAlleles, effect)
	}

	return UnphasedDosage(probs, nAlleles, effect)
}

// unphasedHardCall counts effect alleles in the most probable genotype.
func unphasedHardCall(probs []float64, nAlleles, effect int) float64 {
	if len(probs) != nAlleles*(nAlleles+1)/2 {
		return math.NaN()
	}

	best, bestJ, bestK := -1.0, 0, 0
	for k := 0; k < nAlleles; k++ {
		for j := 0; j <= k; j++ {
			if p := probs[k*(k+1)/2+j]; p > best {
				best, bestJ, bestK = p, j, k
			}
		}
	}

	return HardCallDosage([]int{bestJ, bestK}, effect)
}

// phasedHardCall takes the most probable allele on each haplotype.
func phasedHardCall(probs []float64, ploidy, nAlleles, effect int) float64 {
	if ploidy <= 0 || len(probs) != ploidy*nAlleles {
		return math.NaN()
	}

	gt := make([]int, ploidy)
	for h := 0; h < ploidy; h++ {
		best := -1.0
		for a := 0; a < nAlleles; a++ {
			if p := probs[h*nAlleles+a]; p > best {
				best, gt[h] = p, a
			}
		}
	}

	return HardCallDosage(gt, effect)
}

// readSampleFile reads sample ids from the first column of an Oxford .sample
// file, skipping its two header lines.
func readSampleFile(ctx context.Context, path string, client *storage.Client) ([]string, error) {
	f, err := prsedm.Open(ctx, path, client)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseSampleFile(f)
}

func ParseSampleFile(r io.Reader) ([]string, error) {
	out := make([]string, 0)

	scanner := bufio.NewScanner(r)
	for line := 0; scanner.Scan(); line++ {
		if line < 2 {
			continue
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		out = append(out, fields[0])
	}

	return out, pfx.Err(scanner.Err())
}

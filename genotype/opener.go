package genotype

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/carbocation/prsedm/prserr"
	"github.com/cenkalti/backoff"
)

// MaxOpenAttempts bounds retries when a container fails to open, which
// happens over unreliable (network or fuse) filesystems.
const MaxOpenAttempts = 10

// FileOpener opens VCF/BCF (tabix-indexed) and BGEN (BGI-indexed)
// containers named by a Mapping. Paths ending in .bgen are read as BGEN;
// everything else as VCF.
type FileOpener struct {
	Mapping    Mapping
	Kind       Kind
	Client     *storage.Client
	SampleFile string // Oxford .sample file naming BGEN samples

	// RetryInterval is the initial wait between open attempts.
	RetryInterval time.Duration
}

func (o *FileOpener) Samples(ctx context.Context) ([]string, error) {
	var reference []string
	var referencePath string

	for _, path := range o.Mapping.Paths() {
		src, err := o.openPath(ctx, path)
		if err != nil {
			return nil, err
		}
		samples := src.Samples()
		src.Close()

		if reference == nil {
			reference, referencePath = samples, path
			continue
		}
		if err := sameSamples(referencePath, reference, path, samples); err != nil {
			return nil, err
		}
	}

	if reference == nil {
		return nil, prserr.New(prserr.ErrGenotypeSource, "no genotype containers were configured")
	}

	return reference, nil
}

func (o *FileOpener) Open(ctx context.Context, contig string) (Source, error) {
	path, ok := o.Mapping.Locate(contig)
	if !ok {
		return nil, prserr.New(prserr.ErrGenotypeSource, "no genotype container is mapped to contig %s", contig)
	}

	return o.openPath(ctx, path)
}

func (o *FileOpener) openPath(ctx context.Context, path string) (Source, error) {
	var src Source

	operation := func() error {
		var err error
		if IsBGEN(path) {
			src, err = OpenBGEN(ctx, path, o.Kind, o.SampleFile, o.Client)
		} else {
			src, err = OpenVCF(ctx, path, o.Kind, o.Client)
		}
		return err
	}

	err := backoff.RetryNotify(operation, o.backOff(ctx), func(err error, wait time.Duration) {
		log.Printf("Opening %s: sleeping %s to recover from %v\n", path, wait, err)
	})
	if err != nil {
		return nil, prserr.Wrap(prserr.ErrGenotypeSource, err, "opening %s", path)
	}

	return src, nil
}

func (o *FileOpener) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if o.RetryInterval > 0 {
		b.InitialInterval = o.RetryInterval
	}

	return backoff.WithContext(backoff.WithMaxRetries(b, MaxOpenAttempts-1), ctx)
}

func IsBGEN(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".bgen")
}

func sameSamples(nameA string, a []string, nameB string, b []string) error {
	if len(a) != len(b) {
		return prserr.New(prserr.ErrGenotypeSource, "%s has %d samples but %s has %d", nameA, len(a), nameB, len(b))
	}

	for i := range a {
		if a[i] != b[i] {
			return prserr.New(prserr.ErrGenotypeSource, "sample %d is %s in %s but %s in %s", i, a[i], nameA, b[i], nameB)
		}
	}

	return nil
}

func sortedKeys(m map[string]*Memory) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)

	return out
}

func isIOError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "input/output error")
}

func locusError(contig string, position int, err error) error {
	return &prserr.Error{
		Kind:       prserr.ErrGenotypeSource,
		Component:  prserr.ComponentGenotype,
		Chromosome: contig,
		Position:   uint32(position),
		Message:    fmt.Sprintf("reading %s:%d", contig, position),
		Err:        err,
	}
}

package genotype

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/carbocation/prsedm"
	"github.com/carbocation/prsedm/chrpos"
)

// Mapping assigns genotype containers to contigs. A single container that
// spans every contig is registered under chrpos.AllContigs.
type Mapping map[string]string

// SingleContainer maps every contig to path.
func SingleContainer(path string) Mapping {
	return Mapping{chrpos.AllContigs: path}
}

// ParseMapping reads "path<whitespace>contig" lines. Relative paths are
// resolved against baseDir. Blank lines and lines starting with # are
// skipped.
func ParseMapping(r io.Reader, baseDir string) (Mapping, error) {
	out := make(Mapping)

	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("mapping line %d: expected 'path contig', got %q", line, text)
		}

		path, contig := fields[0], fields[1]
		if !prsedm.IsRemote(path) && !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}

		if existing, exists := out[contig]; exists && existing != path {
			return nil, fmt.Errorf("mapping line %d: contig %s already mapped to %s", line, contig, existing)
		}
		out[contig] = path
	}

	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(err)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("mapping is empty")
	}

	return out, nil
}

// ReadMapping loads a mapping file; relative entries are resolved against
// the mapping file's own directory.
func ReadMapping(ctx context.Context, path string, client *storage.Client) (Mapping, error) {
	f, err := prsedm.Open(ctx, path, client)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	base := filepath.Dir(path)
	if prsedm.IsRemote(path) {
		base = ""
	}

	return ParseMapping(f, base)
}

// Locate finds the container for contig, trying the contig as written, with
// and without a chr prefix, and finally the catch-all container.
func (m Mapping) Locate(contig string) (string, bool) {
	for _, candidate := range chrpos.Candidates(contig) {
		if path, exists := m[candidate]; exists {
			return path, true
		}
	}

	return "", false
}

// Paths lists the distinct containers in a stable order.
func (m Mapping) Paths() []string {
	seen := make(map[string]struct{}, len(m))
	out := make([]string, 0, len(m))
	for _, p := range m {
		if _, exists := seen[p]; exists {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)

	return out
}

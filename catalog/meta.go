package catalog

import (
	"fmt"
	"io"
	"regexp"

	"github.com/carbocation/pfx"
	"gopkg.in/guregu/null.v3"
	"gopkg.in/yaml.v3"
)

// Meta is one entry of prs_meta.json. JSON is valid YAML, so the file is read
// with the YAML decoder used for run configuration.
type Meta struct {
	Method       Method   `yaml:"method"`
	Table        string   `yaml:"db_table"`
	TagTable     string   `yaml:"db_dq"`
	Interactions string   `yaml:"db_int"`
	RankTable    string   `yaml:"db_rank"`
	FreqTable    string   `yaml:"db_freq"`
	HLAPartition string   `yaml:"hla_partition"`
	Min          *float64 `yaml:"min"`
	Max          *float64 `yaml:"max"`
}

var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ReadMeta decodes a metadata document mapping flag to Meta.
func ReadMeta(r io.Reader) (map[string]Meta, error) {
	out := make(map[string]Meta)
	if err := yaml.NewDecoder(r).Decode(&out); err != nil && err != io.EOF {
		return nil, pfx.Err(err)
	}

	for flag, m := range out {
		if err := m.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", flag, err)
		}
		if m.Method == "" {
			m.Method = MethodAdditive
			out[flag] = m
		}
	}

	return out, nil
}

func (m Meta) validate() error {
	switch m.Method {
	case "", MethodAdditive, MethodGrouped:
	case MethodHLAInteraction:
		for _, t := range []string{m.TagTable, m.Interactions, m.RankTable} {
			if t == "" {
				return fmt.Errorf("method %s requires db_dq, db_int and db_rank", m.Method)
			}
		}
	default:
		return fmt.Errorf("unknown method %q", m.Method)
	}

	if m.Table == "" {
		return fmt.Errorf("db_table is required")
	}

	// Table names are interpolated into SQL, so only plain identifiers are
	// accepted.
	for _, t := range []string{m.Table, m.TagTable, m.Interactions, m.RankTable, m.FreqTable} {
		if t != "" && !validIdentifier.MatchString(t) {
			return fmt.Errorf("table name %q is not a plain identifier", t)
		}
	}

	return nil
}

func (m Meta) storedBounds() (null.Float, null.Float) {
	return null.FloatFromPtr(m.Min), null.FloatFromPtr(m.Max)
}

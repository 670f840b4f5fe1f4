// Package config holds the options of a scoring run. Values are layered:
// defaults, then a YAML file, then PRSEDM_* environment variables, then
// command-line flags (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/carbocation/pfx"
	"github.com/carbocation/prsedm"
	"github.com/carbocation/prsedm/catalog"
	"github.com/carbocation/prsedm/genotype"
	"github.com/carbocation/prsedm/impute"
	"github.com/carbocation/prsedm/prserr"
	"github.com/carbocation/prsedm/scheduler"
	"github.com/carbocation/prsedm/score"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g. PRSEDM_GENOME_BUILD.
const EnvPrefix = "PRSEDM"

type BigQuery struct {
	Project string `yaml:"project" split_words:"true"`
	Dataset string `yaml:"dataset" split_words:"true"`
	Table   string `yaml:"table" split_words:"true"`
}

func (b BigQuery) Enabled() bool {
	return b.Project != "" && b.Dataset != "" && b.Table != ""
}

// HLATables names the tab-delimited HLA tables attached to a flat-file
// score.
type HLATables struct {
	Tags         string `yaml:"tags" split_words:"true"`
	Interactions string `yaml:"interactions" split_words:"true"`
	Ranks        string `yaml:"ranks" split_words:"true"`
	Frequencies  string `yaml:"frequencies" split_words:"true"`
	Partition    string `yaml:"partition" split_words:"true"`
}

func (h HLATables) Paths() catalog.HLATablePaths {
	return catalog.HLATablePaths{
		Tags:         h.Tags,
		Interactions: h.Interactions,
		Ranks:        h.Ranks,
		Frequencies:  h.Frequencies,
		Partition:    h.Partition,
	}
}

type Run struct {
	ColumnKind             string   `yaml:"columnKind" split_words:"true"`
	GenomeBuild            string   `yaml:"genomeBuild" split_words:"true"`
	RequestedFlags         []string `yaml:"requestedFlags" split_words:"true"`
	ImputationEnabled      bool     `yaml:"imputationEnabled" split_words:"true"`
	ReferencePanel         string   `yaml:"referencePanel" split_words:"true"`
	NormalizationEnabled   bool     `yaml:"normalizationEnabled" split_words:"true"`
	ParallelismEnabled     bool     `yaml:"parallelismEnabled" split_words:"true"`
	TaskCount              int      `yaml:"taskCount" split_words:"true"`
	ChunkSize              int      `yaml:"chunkSize" split_words:"true"`
	SampleBatchSize        int      `yaml:"sampleBatchSize" split_words:"true"`
	FailFast               bool     `yaml:"failFast" split_words:"true"`
	MissingFrequencyPolicy string   `yaml:"missingFrequencyPolicy" split_words:"true"`
	HLAUnresolvedPolicy    string   `yaml:"hlaUnresolvedPolicy" split_words:"true"`
	RequireCompleteData    bool     `yaml:"requireCompleteData" split_words:"true"`

	CatalogDB   string    `yaml:"catalogDB" split_words:"true"`
	CatalogMeta string    `yaml:"catalogMeta" split_words:"true"`
	ScoreFiles  []string  `yaml:"scoreFiles" split_words:"true"`
	ScoreLayout string    `yaml:"scoreLayout" split_words:"true"`
	HLA         HLATables `yaml:"hla" envconfig:"HLA"`

	Genotypes       string `yaml:"genotypes" split_words:"true"`
	GenotypeMapping string `yaml:"genotypeMapping" split_words:"true"`
	SampleFile      string `yaml:"sampleFile" split_words:"true"`
	CredentialsFile string `yaml:"credentialsFile" split_words:"true"`

	Output   string   `yaml:"output" split_words:"true"`
	BigQuery BigQuery `yaml:"bigQuery" envconfig:"BIGQUERY"`
}

func Default() Run {
	return Run{
		ColumnKind:             string(genotype.HardCall),
		GenomeBuild:            catalog.BuildHg19,
		ParallelismEnabled:     true,
		TaskCount:              runtime.NumCPU(),
		MissingFrequencyPolicy: string(impute.PolicyFail),
		HLAUnresolvedPolicy:    string(score.HLAPolicyFail),
		RequireCompleteData:    true,
		ScoreLayout:            "PRSEDM",
	}
}

// Load returns the defaults overlaid with the YAML file at path (if path is
// not empty) and then with the environment.
func Load(path string) (Run, error) {
	r := Default()

	if path != "" {
		if err := r.ApplyFile(path); err != nil {
			return r, err
		}
	}

	if err := r.ApplyEnv(); err != nil {
		return r, err
	}

	return r, nil
}

// ApplyFile overlays the keys present in a YAML (or JSON) file. Unknown keys
// are an error.
func (r *Run) ApplyFile(path string) error {
	path, err := prsedm.ExpandHome(path)
	if err != nil {
		return pfx.Err(err)
	}

	f, err := os.Open(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(r); err != nil && !errors.Is(err, io.EOF) {
		return pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return nil
}

// ApplyEnv overlays any PRSEDM_* variables that are set.
func (r *Run) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, r); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// Validate checks the options a scoring run depends on.
func (r Run) Validate() error {
	if _, err := genotype.ParseKind(r.ColumnKind); err != nil {
		return err
	}
	if r.GenomeBuild != catalog.BuildHg19 && r.GenomeBuild != catalog.BuildHg38 {
		return prserr.New(prserr.ErrUnsupportedBuild, "genome build %q (expected %s or %s)", r.GenomeBuild, catalog.BuildHg19, catalog.BuildHg38)
	}
	if len(r.RequestedFlags) == 0 {
		return fmt.Errorf("no score flags were requested")
	}
	if r.CatalogDB == "" && len(r.ScoreFiles) == 0 {
		return fmt.Errorf("no score catalog: set catalogDB or scoreFiles")
	}
	if r.CatalogDB != "" && r.CatalogMeta == "" {
		return fmt.Errorf("catalogDB %s needs catalogMeta", r.CatalogDB)
	}
	if r.HLA.Tags != "" && len(r.ScoreFiles) != 1 {
		return fmt.Errorf("HLA tables can only be attached when exactly one score file is given (got %d)", len(r.ScoreFiles))
	}
	if (r.Genotypes == "") == (r.GenotypeMapping == "") {
		return fmt.Errorf("set exactly one of genotypes or genotypeMapping")
	}
	if r.ImputationEnabled && r.ReferencePanel == "" {
		return fmt.Errorf("imputation is enabled but no referencePanel is set")
	}
	if r.ParallelismEnabled && r.TaskCount < 1 {
		return fmt.Errorf("taskCount must be at least 1, got %d", r.TaskCount)
	}
	if r.ChunkSize < 0 {
		return fmt.Errorf("chunkSize must not be negative, got %d", r.ChunkSize)
	}
	if r.SampleBatchSize < 0 {
		return fmt.Errorf("sampleBatchSize must not be negative, got %d", r.SampleBatchSize)
	}
	if _, err := impute.ParsePolicy(r.MissingFrequencyPolicy); err != nil {
		return err
	}
	if _, err := score.ParseHLAPolicy(r.HLAUnresolvedPolicy); err != nil {
		return err
	}

	// Without imputation a normalized score is only meaningful when every
	// variant is observed for every sample.
	if r.NormalizationEnabled && !r.ImputationEnabled && !r.RequireCompleteData {
		return prserr.New(prserr.ErrBoundsInvalid, "normalization with imputation disabled requires requireCompleteData")
	}

	return nil
}

func (r Run) Kind() (genotype.Kind, error) {
	return genotype.ParseKind(r.ColumnKind)
}

// Engine builds the imputation engine for this run around an already loaded
// panel (nil when imputation is disabled).
func (r Run) Engine(panel *impute.Panel) (*impute.Engine, error) {
	policy, err := impute.ParsePolicy(r.MissingFrequencyPolicy)
	if err != nil {
		return nil, err
	}

	return &impute.Engine{
		Enabled:             r.ImputationEnabled,
		Panel:               panel,
		MissingFrequency:    policy,
		RequireCompleteData: r.RequireCompleteData,
	}, nil
}

func (r Run) Scheduler() (scheduler.Config, error) {
	policy, err := score.ParseHLAPolicy(r.HLAUnresolvedPolicy)
	if err != nil {
		return scheduler.Config{}, err
	}

	return scheduler.Config{
		Flags:           r.RequestedFlags,
		ChunkSize:       r.ChunkSize,
		SampleBatchSize: r.SampleBatchSize,
		Parallel:        r.ParallelismEnabled,
		TaskCount:       r.TaskCount,
		FailFast:        r.FailFast,
		Normalize:       r.NormalizationEnabled,
		HLAPolicy:       policy,
	}, nil
}

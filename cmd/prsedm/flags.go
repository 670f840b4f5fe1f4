package main

import (
	"fmt"

	"github.com/carbocation/prsedm/config"
	"github.com/carbocation/prsedm/prsparser"
	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "YAML run configuration; PRSEDM_* environment variables and flags override it",
		Sources: cli.EnvVars("PRSEDM_CONFIG"),
	}
}

// catalogFlags select and load score definitions.
func catalogFlags() []cli.Flag {
	return []cli.Flag{
		configFlag(),
		&cli.StringFlag{Name: "build", Usage: "Genome build of the genotypes: hg19 or hg38"},
		&cli.StringSliceFlag{Name: "flag", Aliases: []string{"f"}, Usage: "Score flag to compute (repeatable)"},
		&cli.StringFlag{Name: "catalog-db", Usage: "SQLite score catalog"},
		&cli.StringFlag{Name: "catalog-meta", Usage: "Metadata (prs_meta.json) describing the tables of --catalog-db"},
		&cli.StringSliceFlag{Name: "score-file", Usage: "Delimited score weights file, named by its base name (repeatable)"},
		&cli.StringFlag{Name: "layout", Usage: fmt.Sprint("Layout of --score-file. Options: ", prsparser.LayoutNames())},
		&cli.StringFlag{Name: "hla-tags", Usage: "TSV of HLA tag SNPs for the single --score-file"},
		&cli.StringFlag{Name: "hla-interactions", Usage: "TSV of HLA pair interaction weights (a1, a2, beta)"},
		&cli.StringFlag{Name: "hla-ranks", Usage: "TSV of HLA haplotype ranks"},
		&cli.StringFlag{Name: "hla-frequencies", Usage: "TSV of HLA haplotype population frequencies"},
		&cli.StringFlag{Name: "hla-partition", Usage: "Partition that reports the HLA term"},
		&cli.StringFlag{Name: "credentials", Usage: "Google Cloud credentials file for gs:// inputs"},
	}
}

// scoreFlags add the genotype, imputation, scheduling and output options.
func scoreFlags() []cli.Flag {
	return append(catalogFlags(),
		&cli.StringFlag{Name: "genotypes", Usage: "Single VCF/BCF (tabix) or BGEN (BGI) container spanning all contigs"},
		&cli.StringFlag{Name: "genotype-mapping", Usage: "Two-column file of 'path contig' lines, one container per contig"},
		&cli.StringFlag{Name: "sample-file", Usage: "Oxford .sample file naming the samples of BGEN containers"},
		&cli.StringFlag{Name: "column-kind", Usage: "GT (hard calls) or GP (dosages from genotype probabilities)"},
		&cli.BoolFlag{Name: "impute", Usage: "Fill missing variants with 2p from --reference-panel"},
		&cli.StringFlag{Name: "reference-panel", Usage: "Allele-frequency panel: VCF with AF (or GT) or a TSV of contig, position, ref, alt, af"},
		&cli.StringFlag{Name: "missing-frequency", Usage: "When the panel lacks a variant: fail, drop or zero"},
		&cli.BoolFlag{Name: "require-complete-data", Usage: "Without imputation, fail samples that miss any variant"},
		&cli.BoolFlag{Name: "normalize", Usage: "Rescale raw scores to [0, 1]"},
		&cli.StringFlag{Name: "hla-unresolved", Usage: "Unresolvable HLA genotypes: fail or neutral"},
		&cli.BoolFlag{Name: "parallel", Usage: "Run units of work concurrently"},
		&cli.IntFlag{Name: "tasks", Usage: "Number of concurrent workers"},
		&cli.IntFlag{Name: "chunk-size", Usage: "Variants per unit of work (0: one unit per contig)"},
		&cli.IntFlag{Name: "sample-batch-size", Usage: "Samples per unit of work (0: all samples)"},
		&cli.BoolFlag{Name: "fail-fast", Usage: "Stop at the first failure"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "TSV output path (default: stdout)"},
		&cli.StringFlag{Name: "bq-project", Usage: "BigQuery project for uploading results"},
		&cli.StringFlag{Name: "bq-dataset", Usage: "BigQuery dataset for uploading results"},
		&cli.StringFlag{Name: "bq-table", Usage: "BigQuery table for uploading results"},
	)
}

// runConfig layers the configuration file, the environment and any flags
// that were set on the command line.
func runConfig(cmd *cli.Command) (config.Run, error) {
	r, err := config.Load(cmd.String("config"))
	if err != nil {
		return r, err
	}

	setString := func(name string, dst *string) {
		if cmd.IsSet(name) {
			*dst = cmd.String(name)
		}
	}
	setBool := func(name string, dst *bool) {
		if cmd.IsSet(name) {
			*dst = cmd.Bool(name)
		}
	}
	setInt := func(name string, dst *int) {
		if cmd.IsSet(name) {
			*dst = int(cmd.Int(name))
		}
	}
	setSlice := func(name string, dst *[]string) {
		if cmd.IsSet(name) {
			*dst = cmd.StringSlice(name)
		}
	}

	for _, f := range cmd.Flags {
		switch name := f.Names()[0]; name {
		case "build":
			setString(name, &r.GenomeBuild)
		case "flag":
			setSlice(name, &r.RequestedFlags)
		case "catalog-db":
			setString(name, &r.CatalogDB)
		case "catalog-meta":
			setString(name, &r.CatalogMeta)
		case "score-file":
			setSlice(name, &r.ScoreFiles)
		case "layout":
			setString(name, &r.ScoreLayout)
		case "hla-tags":
			setString(name, &r.HLA.Tags)
		case "hla-interactions":
			setString(name, &r.HLA.Interactions)
		case "hla-ranks":
			setString(name, &r.HLA.Ranks)
		case "hla-frequencies":
			setString(name, &r.HLA.Frequencies)
		case "hla-partition":
			setString(name, &r.HLA.Partition)
		case "credentials":
			setString(name, &r.CredentialsFile)
		case "genotypes":
			setString(name, &r.Genotypes)
		case "genotype-mapping":
			setString(name, &r.GenotypeMapping)
		case "sample-file":
			setString(name, &r.SampleFile)
		case "column-kind":
			setString(name, &r.ColumnKind)
		case "impute":
			setBool(name, &r.ImputationEnabled)
		case "reference-panel":
			setString(name, &r.ReferencePanel)
		case "missing-frequency":
			setString(name, &r.MissingFrequencyPolicy)
		case "require-complete-data":
			setBool(name, &r.RequireCompleteData)
		case "normalize":
			setBool(name, &r.NormalizationEnabled)
		case "hla-unresolved":
			setString(name, &r.HLAUnresolvedPolicy)
		case "parallel":
			setBool(name, &r.ParallelismEnabled)
		case "tasks":
			setInt(name, &r.TaskCount)
		case "chunk-size":
			setInt(name, &r.ChunkSize)
		case "sample-batch-size":
			setInt(name, &r.SampleBatchSize)
		case "fail-fast":
			setBool(name, &r.FailFast)
		case "output":
			setString(name, &r.Output)
		case "bq-project":
			setString(name, &r.BigQuery.Project)
		case "bq-dataset":
			setString(name, &r.BigQuery.Dataset)
		case "bq-table":
			setString(name, &r.BigQuery.Table)
		}
	}

	return r, nil
}

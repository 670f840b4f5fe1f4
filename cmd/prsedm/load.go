package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/carbocation/prsedm"
	"github.com/carbocation/prsedm/catalog"
	"github.com/carbocation/prsedm/config"
	"github.com/carbocation/prsedm/genotype"
	"github.com/carbocation/prsedm/impute"
	"google.golang.org/api/option"
)

// storageClient connects to Google Cloud Storage only if some input lives
// there.
func storageClient(ctx context.Context, r config.Run) (*storage.Client, error) {
	paths := []string{r.CatalogDB, r.CatalogMeta, r.Genotypes, r.GenotypeMapping, r.SampleFile, r.ReferencePanel,
		r.HLA.Tags, r.HLA.Interactions, r.HLA.Ranks, r.HLA.Frequencies}
	paths = append(paths, r.ScoreFiles...)

	remote := false
	for _, p := range paths {
		if prsedm.IsRemote(p) {
			remote = true
			break
		}
	}
	if !remote {
		return nil, nil
	}

	var opts []option.ClientOption
	if r.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(r.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return client, nil
}

// loadCatalog builds the catalog for the run's build from the SQLite store
// and any flat score files. Only the requested flags are read from the
// store; an empty request loads every flag it describes.
func loadCatalog(ctx context.Context, r config.Run, client *storage.Client) (*catalog.Catalog, error) {
	cat := catalog.New(r.GenomeBuild)

	if r.CatalogDB != "" {
		dbPath, err := prsedm.ExpandHome(r.CatalogDB)
		if err != nil {
			return nil, pfx.Err(err)
		}
		metaPath, err := prsedm.ExpandHome(r.CatalogMeta)
		if err != nil {
			return nil, pfx.Err(err)
		}

		store, err := catalog.OpenStore(dbPath, metaPath)
		if err != nil {
			return nil, err
		}
		defer store.Close()

		// Flags that only a score file provides are not in the store.
		var fromStore []string
		known := make(map[string]struct{})
		for _, flag := range store.Flags() {
			known[flag] = struct{}{}
		}
		for _, flag := range r.RequestedFlags {
			if _, exists := known[flag]; exists {
				fromStore = append(fromStore, flag)
			}
		}
		if len(r.RequestedFlags) == 0 || len(fromStore) > 0 {
			if err := store.Load(ctx, cat, fromStore...); err != nil {
				return nil, err
			}
		}
	}

	for _, path := range r.ScoreFiles {
		def, err := catalog.LoadScoreFile(ctx, path, r.ScoreLayout, r.GenomeBuild, client)
		if err != nil {
			return nil, err
		}

		if r.HLA.Tags != "" {
			if err := catalog.LoadHLATables(ctx, def, r.HLA.Paths(), client); err != nil {
				return nil, err
			}
		}

		if err := cat.Register(def); err != nil {
			return nil, err
		}
		log.Printf("Loaded %d variants for %s from %s\n", len(def.Variants), def.Flag, path)
	}

	return cat, nil
}

// openGenotypes maps contigs to containers.
func openGenotypes(ctx context.Context, r config.Run, client *storage.Client) (*genotype.FileOpener, error) {
	kind, err := r.Kind()
	if err != nil {
		return nil, err
	}

	var mapping genotype.Mapping
	if r.GenotypeMapping != "" {
		mapping, err = genotype.ReadMapping(ctx, r.GenotypeMapping, client)
		if err != nil {
			return nil, err
		}
	} else {
		mapping = genotype.SingleContainer(r.Genotypes)
	}

	log.Printf("Reading %s genotypes from %d containers\n", kind, len(mapping.Paths()))

	return &genotype.FileOpener{
		Mapping:       mapping,
		Kind:          kind,
		Client:        client,
		SampleFile:    r.SampleFile,
		RetryInterval: 5 * time.Second,
	}, nil
}

// loadPanel reads reference frequencies for the variants of the requested
// flags. VCF panels are queried by position; anything else is read as a TSV.
func loadPanel(ctx context.Context, r config.Run, cat *catalog.Catalog, client *storage.Client) (*impute.Panel, error) {
	if !r.ImputationEnabled {
		return nil, nil
	}

	var variants []catalog.VariantSpec
	for _, flag := range r.RequestedFlags {
		def, err := cat.Resolve(flag)
		if err != nil {
			return nil, err
		}
		variants = append(variants, def.Variants...)
		if def.HLA != nil {
			for _, tag := range def.HLA.Tags {
				variants = append(variants, tag.Variant)
			}
		}
	}

	var panel *impute.Panel
	var err error
	if isVCF(r.ReferencePanel) {
		panel, err = impute.LoadVCFPanel(ctx, r.ReferencePanel, client, variants)
	} else {
		panel, err = readPanelTable(ctx, r.ReferencePanel, client)
	}
	if err != nil {
		return nil, err
	}

	log.Printf("Loaded %d reference frequencies from %s\n", panel.Len(), r.ReferencePanel)

	return panel, nil
}

func readPanelTable(ctx context.Context, path string, client *storage.Client) (*impute.Panel, error) {
	f, err := prsedm.Open(ctx, path, client)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	panel, err := impute.ReadPanelTable(f)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return panel, nil
}

func isVCF(path string) bool {
	p := strings.ToLower(path)
	for _, suffix := range []string{".vcf", ".vcf.gz", ".vcf.bgz", ".bcf"} {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}

	return false
}

// Command prsedm computes polygenic risk scores and partitioned scores from
// VCF/BCF or BGEN genotypes.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"

	"github.com/carbocation/pfx"
	"github.com/carbocation/prsedm"
	"github.com/carbocation/prsedm/compileinfo"
	"github.com/carbocation/prsedm/output"
	"github.com/carbocation/prsedm/scheduler"
	"github.com/carbocation/prsedm/score"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/option"
)

var (
	BufferSize = 4096
	STDOUT     = bufio.NewWriterSize(os.Stdout, BufferSize)
)

func main() {
	defer STDOUT.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		STDOUT.Flush()
		log.Fatalln(err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "prsedm",
		Usage: "Polygenic risk scores with HWE imputation and HLA interaction terms",
		Commands: []*cli.Command{
			{
				Name:   "score",
				Usage:  "Score every requested flag for every sample",
				Flags:  scoreFlags(),
				Action: scoreAction,
			},
			{
				Name:   "list",
				Usage:  "List the flags available on a genome build",
				Flags:  catalogFlags(),
				Action: listAction,
			},
			{
				Name:   "bounds",
				Usage:  "Print the normalization envelope of each flag",
				Flags:  catalogFlags(),
				Action: boundsAction,
			},
			{
				Name:  "version",
				Usage: "Print build information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Fprintln(STDOUT, compileinfo.Get())
					return nil
				},
			},
		},
	}
}

func scoreAction(ctx context.Context, cmd *cli.Command) error {
	compileinfo.Log()

	r, err := runConfig(cmd)
	if err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return err
	}

	client, err := storageClient(ctx, r)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	cat, err := loadCatalog(ctx, r, client)
	if err != nil {
		return err
	}

	panel, err := loadPanel(ctx, r, cat, client)
	if err != nil {
		return err
	}
	engine, err := r.Engine(panel)
	if err != nil {
		return err
	}

	opener, err := openGenotypes(ctx, r, client)
	if err != nil {
		return err
	}

	cfg, err := r.Scheduler()
	if err != nil {
		return err
	}

	res, err := scheduler.Run(ctx, cfg, cat, opener, engine)
	if err != nil {
		return err
	}

	if err := writeTSV(r.Output, res); err != nil {
		return err
	}

	if err := output.LogSummary(res); err != nil {
		return err
	}

	if r.BigQuery.Enabled() {
		var opts []option.ClientOption
		if r.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(r.CredentialsFile))
		}

		sink, err := output.NewBigQuerySink(ctx, r.BigQuery.Project, r.BigQuery.Dataset, r.BigQuery.Table, opts...)
		if err != nil {
			return err
		}
		defer sink.Close()

		if _, err := sink.Write(ctx, output.NewRunID(), res); err != nil {
			return err
		}
	}

	return nil
}

func writeTSV(path string, res *scheduler.Result) error {
	if path == "" || path == "-" {
		return output.WriteTSV(STDOUT, res)
	}

	path, err := prsedm.ExpandHome(path)
	if err != nil {
		return pfx.Err(err)
	}

	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}

	log.Printf("Writing scores to %s\n", path)

	bw := bufio.NewWriterSize(f, BufferSize)
	if err := output.WriteTSV(bw, res); err != nil {
		f.Close()
		return pfx.Err(err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return pfx.Err(err)
	}

	if err := f.Close(); err != nil {
		return pfx.Err(err)
	}

	return nil
}

func listAction(ctx context.Context, cmd *cli.Command) error {
	r, err := runConfig(cmd)
	if err != nil {
		return err
	}

	client, err := storageClient(ctx, r)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	// List everything the sources describe, not only requested flags.
	r.RequestedFlags = nil
	cat, err := loadCatalog(ctx, r, client)
	if err != nil {
		return err
	}

	for _, flag := range cat.ListAvailable() {
		fmt.Fprintf(STDOUT, "%s\tavailable\n", flag)
	}

	unavailable := cat.ListUnavailable()
	flags := make([]string, 0, len(unavailable))
	for flag := range unavailable {
		flags = append(flags, flag)
	}
	sort.Strings(flags)
	for _, flag := range flags {
		fmt.Fprintf(STDOUT, "%s\tunavailable\t%v\n", flag, unavailable[flag])
	}

	return nil
}

func boundsAction(ctx context.Context, cmd *cli.Command) error {
	r, err := runConfig(cmd)
	if err != nil {
		return err
	}

	client, err := storageClient(ctx, r)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	cat, err := loadCatalog(ctx, r, client)
	if err != nil {
		return err
	}

	flags := r.RequestedFlags
	if len(flags) == 0 {
		flags = cat.ListAvailable()
	}

	bounds := make(map[string]score.Bounds, len(flags))
	for _, flag := range flags {
		def, err := cat.Resolve(flag)
		if err != nil {
			return err
		}
		b := score.ComputeBounds(def)
		if !b.MatchesStored(def) {
			log.Printf("%s: stored bounds differ from computed bounds %s\n", flag, b)
		}
		bounds[flag] = b
	}

	return output.WriteBounds(STDOUT, flags, bounds)
}

// Package main implements pqds, a tool to inspect, plan and read
// partitioned datasets.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/arkilian/pqdataset"
	"github.com/arkilian/pqdataset/internal/config"
	"github.com/arkilian/pqdataset/internal/frame"
	"github.com/arkilian/pqdataset/internal/partition"
)

var (
	version = "dev"
	commit  = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, "pqds - partitioned columnar datasets\n\n")
	fmt.Fprintf(os.Stderr, "Usage: pqds [options] <command> <dataset> [command options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  inspect   Print metadata: schema, index and partition statistics\n")
	fmt.Fprintf(os.Stderr, "  plan      Print the read plan: columns, divisions and task keys\n")
	fmt.Fprintf(os.Stderr, "  show      Compute a read and print the rows\n")
	fmt.Fprintf(os.Stderr, "  demo      Write a small example dataset\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  pqds demo /tmp/ds\n")
	fmt.Fprintf(os.Stderr, "  pqds plan /tmp/ds -columns x -index myindex\n")
	fmt.Fprintf(os.Stderr, "  pqds show /tmp/ds -column x -limit 3\n")
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  PQDS_STORAGE_TYPE   Storage type (local, s3)\n")
	fmt.Fprintf(os.Stderr, "  PQDS_S3_BUCKET      Bucket when storage type is s3\n")
	fmt.Fprintf(os.Stderr, "  PQDS_WRITE_CODEC    Partition format (parquet, sqlite)\n")
	fmt.Fprintf(os.Stderr, "  PQDS_LOG_LEVEL      Log level (debug, info, warn, error)\n")
}

func main() {
	var (
		configFile  string
		logLevel    string
		showVersion bool
	)
	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Printf("pqds version %s (commit: %s)\n", version, commit)
		return
	}
	if flag.NArg() < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fatalf("failed to load configuration: %v", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, dataset, args := flag.Arg(0), flag.Arg(1), flag.Args()[2:]
	if err := run(ctx, os.Stdout, cfg, cmd, dataset, args); err != nil {
		fatalf("%s: %v", cmd, err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "pqds: "+format+"\n", args...)
	os.Exit(1)
}

// run executes one command. Local datasets are directories, relative to
// storage.path unless absolute; with s3 storage the dataset is an object prefix.
func run(ctx context.Context, out io.Writer, cfg *config.Config, cmd, dataset string, args []string) error {
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	opts := []pqdataset.Option{
		pqdataset.WithLogger(logger),
		pqdataset.WithExecutorConfig(cfg.Executor()),
	}
	if cfg.Storage.Type == config.StorageLocal {
		if !filepath.IsAbs(dataset) {
			dataset = filepath.Join(cfg.Storage.Path, dataset)
		}
	} else {
		st, err := cfg.OpenStorage(ctx)
		if err != nil {
			return err
		}
		opts = append(opts, pqdataset.WithStorage(st))
	}

	switch cmd {
	case "inspect":
		return inspect(ctx, out, dataset, opts)
	case "plan", "show":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		readOpts := readFlags(fs)
		limit := fs.Int("limit", 20, "Maximum rows to print (show only, 0 for all)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		extra, err := readOpts()
		if err != nil {
			return err
		}
		opts = append(opts, extra...)
		if cmd == "plan" {
			return printPlan(ctx, out, dataset, opts)
		}
		return show(ctx, out, dataset, *limit, opts)
	case "demo":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		codec := fs.String("codec", cfg.Write.Codec, "Partition format: "+strings.Join(partition.CodecNames(), ", "))
		chunks := fs.Int("chunks", 3, "Number of partitions")
		if err := fs.Parse(args); err != nil {
			return err
		}
		opts = append(opts,
			pqdataset.WithCodec(*codec),
			pqdataset.WithChunkPolicy(pqdataset.NumChunks(*chunks)),
			pqdataset.WithStagingDir(cfg.Write.StagingDir))
		return demo(ctx, out, dataset, opts)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

// readFlags registers the column and index flags shared by plan and show.
func readFlags(fs *flag.FlagSet) func() ([]pqdataset.Option, error) {
	columns := fs.String("columns", "", "Comma separated columns to read as a frame (\"-\" for none)")
	column := fs.String("column", "", "Single column to read as a series")
	index := fs.String("index", "", "Column to use as the index")
	noIndex := fs.Bool("no-index", false, "Read with a positional index")

	return func() ([]pqdataset.Option, error) {
		var opts []pqdataset.Option
		switch {
		case *columns != "" && *column != "":
			return nil, fmt.Errorf("-columns and -column are mutually exclusive")
		case *columns == "-":
			opts = append(opts, pqdataset.WithColumns())
		case *columns != "":
			opts = append(opts, pqdataset.WithColumns(strings.Split(*columns, ",")...))
		case *column != "":
			opts = append(opts, pqdataset.WithColumn(*column))
		}
		switch {
		case *index != "" && *noIndex:
			return nil, fmt.Errorf("-index and -no-index are mutually exclusive")
		case *index != "":
			opts = append(opts, pqdataset.WithIndex(*index))
		case *noIndex:
			opts = append(opts, pqdataset.WithoutIndex())
		}
		return opts, nil
	}
}

func inspect(ctx context.Context, out io.Writer, dataset string, opts []pqdataset.Option) error {
	p, err := pqdataset.PlanRead(ctx, dataset, opts...)
	if err != nil {
		return err
	}
	rec := p.Record

	fmt.Fprintf(out, "Location:   %s\n", p.Location)
	fmt.Fprintf(out, "Dataset ID: %s\n", rec.DatasetID)
	fmt.Fprintf(out, "Written:    %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "Codec:      %s\n", rec.Codec)
	fmt.Fprintf(out, "Index:      %s\n", orNone(rec.IndexColumn))
	fmt.Fprintf(out, "Rows:       %d\n", rec.TotalRows())
	fmt.Fprintf(out, "\nSchema:\n")
	for _, c := range rec.Schema.Columns {
		fmt.Fprintf(out, "  %-20s %s\n", c.Name, c.Type)
	}

	fmt.Fprintf(out, "\nPartitions:\n")
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  FILE\tROWS\tBYTES\tINDEX MIN\tINDEX MAX")
	for _, part := range rec.Partitions {
		lo, hi := "-", "-"
		if mm, ok := part.Stats[rec.IndexColumn]; ok {
			lo, hi = fmt.Sprint(mm.Min), fmt.Sprint(mm.Max)
		}
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%s\t%s\n", part.Object, part.RowCount, part.SizeBytes, lo, hi)
	}
	return tw.Flush()
}

func printPlan(ctx context.Context, out io.Writer, dataset string, opts []pqdataset.Option) error {
	p, err := pqdataset.PlanRead(ctx, dataset, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Name:      %s\n", p.Name)
	fmt.Fprintf(out, "Shape:     %s\n", p.Shape)
	fmt.Fprintf(out, "Columns:   %s\n", strings.Join(p.ColumnNames(), ", "))
	fmt.Fprintf(out, "Index:     %s\n", orNone(p.IndexName()))
	fmt.Fprintf(out, "Divisions: %v", p.Divisions)
	if p.KnownDivisions() && !p.DivisionsSorted {
		fmt.Fprintf(out, " (not sorted)")
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Tasks:\n")
	for i, k := range p.Keys {
		fmt.Fprintf(out, "  %s -> read %s %v\n", k, p.Task(i).Object, p.Task(i).DecodeColumns())
	}
	return nil
}

func show(ctx context.Context, out io.Writer, dataset string, limit int, opts []pqdataset.Option) error {
	res, err := pqdataset.ReadDataset(ctx, dataset, opts...)
	if err != nil {
		return err
	}
	return printFrame(out, res.Frame, limit)
}

func printFrame(out io.Writer, f *frame.Frame, limit int) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	cols := f.Columns
	if f.Index != nil {
		cols = append([]*frame.Column{f.Index}, cols...)
	}

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	rows := f.NumRows()
	if limit > 0 && rows > limit {
		rows = limit
	}
	cells := make([]string, len(cols))
	for r := 0; r < rows; r++ {
		for i, c := range cols {
			cells[i] = fmt.Sprint(c.Values[r])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if rows < f.NumRows() {
		fmt.Fprintf(out, "... %d more rows\n", f.NumRows()-rows)
	}
	return nil
}

func demo(ctx context.Context, out io.Writer, dataset string, opts []pqdataset.Option) error {
	table := frame.MustNew(
		frame.Int64s("x", 6, 2, 3, 4, 5),
		frame.Float64s("y", 1, 2, 1, 2, 1),
	).MustWithIndex(frame.Int64s("myindex", 10, 20, 30, 40, 50))

	rec, err := pqdataset.WriteDataset(ctx, dataset, table, true, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d rows in %d partitions (%s)\n", rec.TotalRows(), rec.NumPartitions(), rec.DatasetID)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

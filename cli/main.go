package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ankit-chaubey/geotag-surgery/core"
	"github.com/ankit-chaubey/geotag-surgery/core/archive"
	"github.com/ankit-chaubey/geotag-surgery/core/batch"
	"github.com/ankit-chaubey/geotag-surgery/core/config"
	"github.com/ankit-chaubey/geotag-surgery/core/jpg"
	"github.com/ankit-chaubey/geotag-surgery/core/pngmeta"
	"github.com/ankit-chaubey/geotag-surgery/core/server"
)

var version = "development"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch cmd := os.Args[1]; cmd {
	case "tag":
		err = runTag(ctx, os.Args[2:])
	case "view":
		err = runView(os.Args[2:])
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "version":
		fmt.Printf("geotag %s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		core.PrintError(fmt.Sprintf("unknown command %q", cmd))
		usage()
		os.Exit(1)
	}
	if err != nil {
		core.PrintError(err.Error())
		os.Exit(1)
	}
}

func usage() {
	fmt.Printf("Geotag Surgery %s\n\n", version)
	fmt.Printf("Usage:\n")
	fmt.Printf("  geotag tag [flags] <image>...   embed metadata into JPEG/PNG images\n")
	fmt.Printf("  geotag view [-json] <image>     list EXIF/PNG metadata\n")
	fmt.Printf("  geotag serve [-config file]     run the HTTP upload endpoint\n")
	fmt.Printf("  geotag version\n\n")
	fmt.Printf("Examples:\n")
	fmt.Printf("  geotag tag -title \"Sunset\" -keywords \"sunset, nature\" -lat 37.7749 -lon -122.4194 a.jpg b.png\n")
	fmt.Printf("  geotag view geotagged_a.jpg\n")
}

// optionalFloat is a flag that remembers whether it was set.
type optionalFloat struct {
	v   float64
	set bool
}

func (f *optionalFloat) String() string {
	if !f.set {
		return ""
	}
	return strconv.FormatFloat(f.v, 'f', -1, 64)
}

func (f *optionalFloat) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	f.v, f.set = v, true
	return nil
}

func (f *optionalFloat) ptr() *float64 {
	if !f.set {
		return nil
	}
	return &f.v
}

func setupLogger(cfg config.Config) error {
	logger, err := cfg.Log.Logger(os.Stderr)
	if err != nil {
		return err
	}
	log.Logger = logger
	return nil
}

func runTag(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tag", flag.ExitOnError)
	var (
		in         core.RecordInput
		lat, lon   optionalFloat
		outPath    string
		configPath string
		jsonMode   bool
		verbose    bool
	)
	fs.StringVar(&in.Title, "title", "", "title (EXIF ImageDescription)")
	fs.StringVar(&in.Description, "description", "", "description (EXIF UserComment)")
	fs.StringVar(&in.Keywords, "keywords", "", "comma separated keywords (XPKeywords)")
	fs.StringVar(&in.Address, "address", "", "address (GPSProcessingMethod)")
	fs.Var(&lat, "lat", "latitude in decimal degrees [-90, 90]")
	fs.Var(&lon, "lon", "longitude in decimal degrees [-180, 180]")
	fs.StringVar(&outPath, "out", "", "output file (default: suggested name in the current directory)")
	fs.StringVar(&configPath, "config", "", "YAML configuration file")
	fs.BoolVar(&jsonMode, "json", false, "print the summary as JSON")
	fs.BoolVar(&verbose, "v", false, "debug logging")
	fs.Parse(args)

	files := fs.Args()
	if len(files) == 0 {
		return errors.New("no input images given")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := setupLogger(cfg); err != nil {
		return err
	}

	in.Latitude, in.Longitude = lat.ptr(), lon.ptr()
	rec, err := core.NewMetadataRecord(in)
	if err != nil {
		return err
	}
	if rec.IsEmpty() {
		return errors.New("enter at least one metadata field before processing")
	}

	printer := core.NewPrinter(jsonMode, verbose)
	inputs := make([]batch.Input, 0, len(files))
	for _, f := range files {
		inputs = append(inputs, batch.FileInput(f))
	}

	pipeline := batch.New(
		batch.WithTempDir(cfg.TempDir),
		batch.WithLogger(log.Logger),
		batch.WithProgress(printer.PrintProgress),
		batch.WithMaxPixels(cfg.MaxImagePixels),
	)
	res, err := pipeline.Run(ctx, inputs, rec)
	if err != nil {
		return err
	}
	printer.PrintSummary(res.Summary())

	assembler := archive.New(archive.WithPrefix(cfg.OutputPrefix), archive.WithLogger(log.Logger))
	plan, err := assembler.Plan(res)
	if err != nil {
		cleanup(res, log.Logger)
		return err
	}
	if outPath == "" {
		outPath = plan.Name
	}

	out, err := os.Create(outPath)
	if err != nil {
		cleanup(res, log.Logger)
		return err
	}
	d, err := assembler.Assemble(res, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(outPath)
		return err
	}

	abs, _ := filepath.Abs(outPath)
	printer.PrintDelivered(abs, d.Size, d.Entries)
	log.Debug().Str("path", abs).Int64("size", d.Size).Msg("output written")
	return nil
}

type cleaner interface {
	Cleanup() error
	Dir() string
}

// cleanup removes the run directory of an abandoned run. Failures are
// logged; the caller already has an error to report.
func cleanup(c cleaner, logger zerolog.Logger) {
	dir := c.Dir()
	if err := c.Cleanup(); err != nil {
		logger.Error().Err(err).Str("dir", dir).Msg("Failed to remove run directory")
	}
}

func runView(args []string) error {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	jsonMode := fs.Bool("json", false, "print as JSON")
	verbose := fs.Bool("v", false, "show raw tag values")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: geotag view [-json] <image>")
	}

	file := fs.Arg(0)
	format, err := sniff(file)
	if err != nil {
		return err
	}
	var m *core.Metadata
	switch format {
	case core.FmtJPEG:
		m, err = jpg.ViewFile(file)
	case core.FmtPNG:
		m, err = pngmeta.ViewFile(file)
	default:
		return fmt.Errorf("only JPEG and PNG files supported, got %s", format)
	}
	if err != nil {
		return err
	}
	core.NewPrinter(*jsonMode, *verbose).PrintMetadata(m)
	return nil
}

// sniff resolves the format of path from its leading bytes and name.
func sniff(path string) (core.FormatID, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.FmtUnknown, err
	}
	defer f.Close()

	head := make([]byte, 16)
	n, _ := io.ReadFull(f, head)
	return core.Resolve(head[:n], core.FmtUnknown, path), nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	listen := fs.String("listen", "", "listen address (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if err := setupLogger(cfg); err != nil {
		return err
	}
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	return server.New(cfg, log.Logger).Run(ctx)
}

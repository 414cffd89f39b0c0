package main

import (
	"fmt"
	"log"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	pefile "github.com/wanglei-coder/pev"
	"github.com/wanglei-coder/pev/config"
	"github.com/wanglei-coder/pev/output"
	"github.com/wanglei-coder/pev/plugins"
)

type options struct {
	Format     string `short:"f" long:"format" description:"Output format (text, json, yaml or a plugin name)"`
	Config     string `short:"c" long:"config" description:"Path to the configuration file"`
	PluginsDir string `long:"plugins-dir" description:"Load every output plugin in this directory"`
	NoColor    bool   `long:"no-color" description:"Disable coloured text output"`

	All         bool `short:"A" long:"all" description:"Show all information (default)"`
	Headers     bool `short:"H" long:"headers" description:"Show DOS, COFF and optional headers"`
	Directories bool `short:"d" long:"directories" description:"Show data directories"`
	Sections    bool `short:"S" long:"sections" description:"Show sections"`
	Overlay     bool `long:"overlay" description:"Show appended data"`
	Hashes      bool `long:"hashes" description:"Show authentihash and rich header hash"`

	Positional struct {
		File string `positional-arg-name:"FILE" required:"true"`
	} `positional-args:"true"`
}

func (o *options) reportSections() output.ReportSections {
	s := output.ReportSections{
		Headers:     o.Headers,
		Directories: o.Directories,
		Sections:    o.Sections,
		Overlay:     o.Overlay,
		Hashes:      o.Hashes,
	}
	if o.All || s == (output.ReportSections{}) {
		return output.All
	}
	return s
}

func run(opts *options) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}

	registry := plugins.NewRegistry()
	defer registry.UnloadAll()

	if err := output.RegisterBuiltins(registry, opts.NoColor); err != nil {
		return err
	}

	// Plugins that fail to load only cost their own format.
	if _, err := registry.LoadAll(cfg); err != nil {
		log.Printf("warning: %v", err)
	}
	if opts.PluginsDir != "" {
		if _, err := registry.LoadAllFromDirectory(opts.PluginsDir); err != nil {
			log.Printf("warning: %v", err)
		}
	}

	format := opts.Format
	if format == "" {
		format = cfg.Format
	}
	formatter, err := registry.Lookup(format)
	if err != nil {
		return errors.WithMessagef(err, "unknown output format, available: %v", registry.Names())
	}

	f, err := pefile.NewFile(opts.Positional.File)
	if err != nil {
		return errors.WithMessage(err, opts.Positional.File)
	}

	doc := output.Report(f, opts.reportSections())
	return formatter.Format(os.Stdout, doc)
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	if err := run(&opts); err != nil {
		log.Fatal(err)
	}
}

func init() {
	log.SetFlags(0)
	log.SetPrefix(fmt.Sprintf("%s: ", os.Args[0]))
}

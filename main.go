package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the command line options
type AppOptions struct {
	ConfigFile string
	InputDir   string
	Ext        string
	OutputDir  string
	Database   string
	Overwrite  string
	NoExport   bool
	ParseOnly  bool
	HttpMode   bool
	HttpPort   int
}

// Runner is the set of entry points main dispatches to
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunParseOnly() error
	RunBatch() error
	RunService() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}
}

// run parses args and dispatches to the selected mode
func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("mobsurvey", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file (optional)")
	fs.StringVar(&opts.InputDir, "input", "", "Directory containing session logs (overrides config)")
	fs.StringVar(&opts.Ext, "ext", "", "Session log extension, e.g. .csv (overrides config)")
	fs.StringVar(&opts.OutputDir, "output", "", "Output root directory (overrides config)")
	fs.StringVar(&opts.Database, "db", "", "Accumulated sqlite database (overrides config)")
	fs.StringVar(&opts.Overwrite, "overwrite", "", "Database overwrite mode: full, last or first (overrides config)")
	fs.BoolVar(&opts.NoExport, "no-export", false, "Process sessions without writing artifacts")
	fs.BoolVar(&opts.ParseOnly, "parse-only", false, "Parse session logs, print a summary and exit")
	fs.BoolVar(&opts.HttpMode, "http", false, "Serve processed sessions over HTTP after the batch")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port (default 8080)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(out, "mobsurvey version: %s\n", Version)
	app.ApplyOptions(opts)

	if opts.ParseOnly {
		return app.RunParseOnly()
	}

	if err := app.RunBatch(); err != nil {
		return err
	}

	if opts.HttpMode {
		return app.RunService()
	}
	return nil
}

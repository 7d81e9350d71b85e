// Command glyph compresses voxel models into crystal or IFS artifacts and
// serves the compression job API.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/glyph.codec/internal/config"
	"github.com/banshee-data/glyph.codec/internal/fsutil"
	"github.com/banshee-data/glyph.codec/internal/version"
)

// cli carries the output stream and file layer shared by every command.
type cli struct {
	out  io.Writer
	fsys fsutil.FileSystem
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	c := &cli{out: os.Stdout, fsys: fsutil.OSFileSystem{}}
	if err := c.run(flag.Arg(0), flag.Args()[1:]); err != nil {
		log.Fatalf("glyph %s: %v", flag.Arg(0), err)
	}
}

func (c *cli) run(command string, args []string) error {
	switch command {
	case "compress":
		return c.runCompress(args)
	case "batch":
		return c.runBatch(args)
	case "synth":
		return c.runSynth(args)
	case "inspect":
		return c.runInspect(args)
	case "decode":
		return c.runDecode(args)
	case "serve":
		return c.runServe(args)
	case "submit":
		return c.runSubmit(args)
	case "migrate":
		return c.runMigrate(args)
	case "version":
		fmt.Fprintln(c.out, version.String())
		return nil
	case "help":
		printUsage()
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
		return nil
	}
}

func printUsage() {
	fmt.Println(`glyph - lattice and IFS compression for voxel models

Usage: glyph <command> [options]

Commands:
  compress   Compress one .vox or .asc model into an .agc artifact
  batch      Compress every model matching a pattern in parallel
  synth      Generate a periodic, random or sphere test model
  inspect    Report the lattice analysis of a model, optionally with plots
  decode     Rebuild a voxel model from an .agc artifact
  serve      Run the HTTP job API
  submit     Upload a model to a running server
  migrate    Manage the job database schema (up, down, status, version, force)
  version    Show glyph version
  help       Show this help message

Common Flags:
  --config <file>   Tuning config JSON (defaults are built in)

Examples:
  glyph synth --kind periodic --period 8 --out lattice.vox
  glyph compress --out artifacts lattice.vox
  glyph inspect --plots plots lattice.vox
  glyph decode --out rebuilt.vox artifacts/lattice.agc
  glyph serve --listen :8080 --db glyph.db`)
}

// loadTuning returns the tuning config at path, or the built-in defaults
// when path is empty.
func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.EmptyTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

// parseArgs parses args into fs, allowing flags after positional
// arguments, and checks the positional count.
func parseArgs(fs *flag.FlagSet, args []string, minPositional, maxPositional int) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
	if len(positional) < minPositional || (maxPositional >= 0 && len(positional) > maxPositional) {
		fs.Usage()
		return nil, fmt.Errorf("expected %s, got %d", argCount(minPositional, maxPositional), len(positional))
	}
	return positional, nil
}

func argCount(lo, hi int) string {
	switch {
	case hi < 0:
		return fmt.Sprintf("at least %d arguments", lo)
	case lo == hi && lo == 1:
		return "1 argument"
	case lo == hi:
		return fmt.Sprintf("%d arguments", lo)
	default:
		return fmt.Sprintf("%d to %d arguments", lo, hi)
	}
}

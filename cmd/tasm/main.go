// Command tasm assembles a single Transputer source file into a flat
// binary image, an optional listing, and an optional cross-reference
// report. It is a thin front end over parser/transform/codegen/
// listing: all the real work happens in those packages.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/devzendo/transputer-asm/browser"
	"github.com/devzendo/transputer-asm/codegen"
	"github.com/devzendo/transputer-asm/config"
	"github.com/devzendo/transputer-asm/ident"
	"github.com/devzendo/transputer-asm/listing"
	"github.com/devzendo/transputer-asm/parser"
)

// Version information - overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	var (
		showVersion   = flag.Bool("version", false, "Show version information")
		outBinary     = flag.String("o", "", "Output binary path (default: <input>.bin)")
		outListing    = flag.String("l", "", "Output listing path (default: none)")
		outXref       = flag.String("x", "", "Output cross-reference path (default: none)")
		caseSensitive = flag.Bool("case-sensitive", false, "Treat symbol names as case-sensitive (default: MASM-compatible, case-insensitive)")
		debugCodegen  = flag.Bool("debug-codegen", false, "Set the code generator's debug flag (no trace is printed)")
		browse        = flag.Bool("browse", false, "Open a read-only TUI browser over the assembled model instead of writing output files")
		useConfig     = flag.Bool("config", false, "Load default settings from the per-user config file before applying flags")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <source.asm>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("tasm %s (%s)\n", Version, Commit)
		os.Exit(0)
	}

	cfg := config.DefaultConfig()
	if *useConfig {
		loaded, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if !flagPassed("case-sensitive") {
		*caseSensitive = cfg.Assembly.CaseSensitive
	}
	if !flagPassed("debug-codegen") {
		*debugCodegen = cfg.Assembly.DebugCodegen
	}
	if *outBinary == "" {
		*outBinary = cfg.Output.BinaryPath
	}
	if *outListing == "" {
		*outListing = cfg.Output.ListingPath
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	srcPath := flag.Arg(0)

	lines, p, includeErrs, err := parser.ParseFile(srcPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", srcPath, err)
		os.Exit(1)
	}
	if includeErrs != nil && includeErrs.HasErrors() {
		fmt.Fprint(os.Stderr, includeErrs.Error())
		os.Exit(1)
	}
	if p.Errors().HasErrors() {
		fmt.Fprint(os.Stderr, p.Errors().Error())
		os.Exit(1)
	}

	norm := ident.NewNormalizer(*caseSensitive)
	gen := codegen.NewCodeGenerator(norm, *debugCodegen)
	asmModel := gen.CreateModel(lines)

	modelErrs := asmModel.Errors()
	genErrs := gen.CodeGenerationErrors()
	if len(modelErrs) > 0 || len(genErrs) > 0 {
		for _, e := range modelErrs {
			fmt.Fprintf(os.Stderr, "%s\n", e.Error())
		}
		for _, e := range genErrs {
			fmt.Fprintf(os.Stderr, "%s\n", e.Error())
		}
		os.Exit(1)
	}

	if *browse {
		b := browser.New(asmModel, gen.Regions())
		if err := b.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Browser error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *outBinary == "" {
		*outBinary = strings.TrimSuffix(srcPath, filepath.Ext(srcPath)) + ".bin"
	}
	image := listing.WriteBinary(asmModel)
	if err := os.WriteFile(*outBinary, image, 0644); err != nil { // #nosec G306 -- output binary is not sensitive
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *outBinary, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d bytes to %s\n", len(image), *outBinary)

	if *outListing != "" {
		text := listing.WriteListing(asmModel, cfg.Listing.BytesPerLine, cfg.Listing.ShowSource)
		if err := os.WriteFile(*outListing, []byte(text), 0644); err != nil { // #nosec G306 -- listing output is not sensitive
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *outListing, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote listing to %s\n", *outListing)
	}

	if *outXref != "" {
		text := listing.CrossReference(lines, asmModel)
		if err := os.WriteFile(*outXref, []byte(text), 0644); err != nil { // #nosec G306 -- cross-reference output is not sensitive
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *outXref, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote cross-reference to %s\n", *outXref)
	}
}

// flagPassed reports whether name was explicitly set on the command
// line, as opposed to carrying only its zero-value default — used so
// a config-file value isn't clobbered by an unset flag's default.
func flagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

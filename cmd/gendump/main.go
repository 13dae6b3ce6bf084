// gendump loads a YAML scenario, runs the requirement machine on it, and
// dumps the rewrite system, property map and minimized signature.
//
// Usage:
//
//	gendump [--debug] [--rules] scenario.yaml
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/lunalang/generics/internal/config"
	"github.com/lunalang/generics/internal/decl"
	"github.com/lunalang/generics/internal/machine"
	"github.com/lunalang/generics/internal/rewrite"
	"github.com/lunalang/generics/internal/scenario"
)

const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
)

var useColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

func colorize(color, s string) string {
	if !useColor {
		return s
	}
	return color + s + colorReset
}

func isScenarioFile(path string) bool {
	for _, ext := range config.ScenarioFileExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func main() {
	debug := flag.Bool("debug", false, "dump rewrite system construction traces")
	rules := flag.Bool("rules", false, "dump the full rule set and property map")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: gendump [--debug] [--rules] scenario.yaml")
		os.Exit(2)
	}
	path := flag.Arg(0)
	if !isScenarioFile(path) {
		fmt.Fprintf(os.Stderr, "gendump: %s: not a scenario file (want %s)\n",
			path, strings.Join(config.ScenarioFileExtensions, " or "))
		os.Exit(2)
	}

	config.DebugDump = *debug

	if err := run(path, *rules); err != nil {
		fmt.Fprintf(os.Stderr, "gendump: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, dumpRules bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sc, err := scenario.Load(data)
	if err != nil {
		return err
	}
	registry, reqs, err := sc.Build()
	if err != nil {
		return err
	}

	if sc.Name != "" {
		fmt.Println(colorize(colorBold, "scenario: "+sc.Name))
	}

	ctx := rewrite.NewContext(registry)
	if config.DebugDump {
		fmt.Println(colorize(colorYellow, "session "+ctx.ID().String()))
	}
	m := machine.NewMachine(ctx)

	if sc.Minimize != "" {
		return runProtocol(m, registry, sc.Minimize, dumpRules)
	}
	return runSignature(m, reqs, dumpRules)
}

func runSignature(m *machine.Machine, reqs []decl.Requirement, dumpRules bool) error {
	if err := m.InitWithGenericSignature(reqs); err != nil {
		return err
	}
	m.Minimize()

	if dumpRules {
		m.Dump(os.Stdout)
	}

	minimized, err := m.GenericSignatureRequirements()
	if err != nil {
		return err
	}

	fmt.Println(colorize(colorBold, "minimized generic signature:"))
	for _, req := range minimized {
		fmt.Printf("  %s\n", colorize(colorGreen, req.String()))
	}
	printStatus(m)
	return nil
}

func runProtocol(m *machine.Machine, registry *decl.Registry, proto string, dumpRules bool) error {
	// Mutually recursive protocols minimize together; feeding the machine
	// one member of a component yields a non-minimal signature.
	if err := m.InitWithProtocols(registry.ProtocolComponent(proto)); err != nil {
		return err
	}
	m.Minimize()

	if dumpRules {
		m.Dump(os.Stdout)
	}

	perProto, err := m.ProtocolRequirements()
	if err != nil {
		return err
	}

	fmt.Println(colorize(colorBold, "requirement signature of "+proto+":"))
	for _, req := range perProto[proto] {
		fmt.Printf("  %s\n", colorize(colorGreen, req.String()))
	}
	printStatus(m)
	return nil
}

func printStatus(m *machine.Machine) {
	if m.HadError() {
		fmt.Println(colorize(colorRed, "status: invalid requirements"))
		for _, err := range m.Errors() {
			fmt.Printf("  %s\n", colorize(colorYellow, err.Error()))
		}
		return
	}
	fmt.Println(colorize(colorGreen, "status: ok"))
}

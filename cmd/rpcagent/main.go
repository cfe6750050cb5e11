// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the rpcagent CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/jllopis/rpcagent/pkg/agent"
	"github.com/jllopis/rpcagent/pkg/config"
	"github.com/jllopis/rpcagent/pkg/registry"
)

type globalFlags struct {
	ConfigArgs []string
	ConfigPath string
	Profile    string
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage(os.Stdout)
		return
	}

	switch args[0] {
	case "version":
		ensureNoArgs(args[1:])
		printVersion(os.Stdout)
		return
	case "help":
		printUsage(os.Stdout)
		return
	}

	cfg, err := config.LoadWithCLI(global.ConfigArgs)
	if err != nil {
		fatal(err)
	}

	switch args[0] {
	case "run":
		if err := runAgent(ctx, global, cfg, args[1:]); err != nil {
			fatal(err)
		}
	case "describe":
		if err := runDescribe(ctx, cfg, args[1:], os.Stdout); err != nil {
			fatal(err)
		}
	default:
		fatal(fmt.Errorf("unknown command %q", args[0]))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--config" || arg == "--profile" || arg == "--set":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for %s", arg)
			}
			flags.record(arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--config="), strings.HasPrefix(arg, "--profile="), strings.HasPrefix(arg, "--set="):
			name, value, _ := strings.Cut(arg, "=")
			flags.record(name, value)
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func (f *globalFlags) record(name, value string) {
	f.ConfigArgs = append(f.ConfigArgs, name, value)
	switch name {
	case "--config":
		f.ConfigPath = value
	case "--profile":
		f.Profile = value
	}
}

// runDescribe prints the catalog the agent would register.
func runDescribe(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	opts, err := parseRunFlags("describe", args)
	if err != nil {
		return err
	}

	reg := registry.New()
	closeDB, err := populateRegistry(ctx, reg, cfg, opts.Samples, nil)
	if err != nil {
		return err
	}
	defer closeDB()

	if reg.Len() == 0 {
		color.New(color.FgYellow).Fprintln(out, "# no functions registered")
		return nil
	}

	payload, err := yaml.Marshal(reg.Metadata())
	if err != nil {
		return err
	}
	_, err = out.Write(payload)
	return err
}

func printVersion(out io.Writer) {
	fmt.Fprintf(out, "rpcagent %s\n", agent.Version)
}

func printUsage(out io.Writer) {
	commands := map[string]string{
		"run":      "Register the functions and process queries until stopped",
		"describe": "Print the function catalog as YAML",
		"version":  "Print the agent package version",
		"help":     "Show this help",
	}
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	cyan := color.New(color.FgCyan)
	fmt.Fprintln(out, "rpcagent exposes local functions to a remote orchestrator.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  rpcagent [global flags] <command> [--samples]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	for _, name := range names {
		cyan.Fprintf(out, "  %-10s", name)
		fmt.Fprintf(out, " %s\n", commands[name])
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, `Global flags:
  --config <path>      YAML configuration file
  --profile <name>     Also load config.<name>.yaml next to --config
  --set key=value      Override a setting (repeatable)

Environment:
  RPCAGENT_AGENT__HOST, RPCAGENT_AGENT__API_TOKEN, RPCAGENT_AGENT__RESOURCE_ID, ...`)
}

func fatal(err error) {
	color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func ensureNoArgs(args []string) {
	if len(args) > 0 {
		fatal(fmt.Errorf("unexpected args: %v", args))
	}
}

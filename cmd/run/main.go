package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/wippyai/wasm-gasmeter/runtime"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to a WebAssembly module")
		funcName    = flag.String("func", "", "Function to call (optional)")
		argsStr     = flag.String("args", "", "Comma-separated uint64 arguments")
		limit       = flag.Int64("limit", 1_000_000, "Points budget for the instance")
		list        = flag.Bool("list", false, "List exports and exit")
		interactive = flag.Bool("i", false, "Interactive mode with a live points dashboard")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -wasm <file.wasm> [-func name] [-args 1,2,3] [-limit N]")
		fmt.Fprintln(os.Stderr, "       run -wasm <file.wasm> -list")
		fmt.Fprintln(os.Stderr, "       run -wasm <file.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "interactive mode requires a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*wasmFile, *limit); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*wasmFile, *funcName, *argsStr, *limit, *list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(wasmFile, funcName, argsStr string, limit int64, listOnly bool) error {
	ctx := context.Background()

	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	rt, err := runtime.New(ctx)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close(ctx)

	module, err := rt.LoadModule(ctx, data)
	if err != nil {
		return fmt.Errorf("load module: %w", err)
	}

	info := module.Instrument()
	fmt.Printf("Module: %s\n", wasmFile)
	fmt.Printf("Functions metered: %d\n", info.FunctionsMetered)

	fmt.Printf("\nExports:\n")
	var exportNames []string
	for _, e := range module.Exports() {
		exportNames = append(exportNames, e.Name)
		fmt.Printf("  %s\n", e.Name)
	}

	if listOnly {
		return nil
	}

	instance, err := module.Instantiate(ctx, limit)
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}
	defer instance.Close(ctx)

	if funcName == "" {
		for _, name := range []string{"_start", "run", "main"} {
			for _, f := range exportNames {
				if f == name {
					funcName = name
					break
				}
			}
			if funcName != "" {
				break
			}
		}
		if funcName == "" {
			fmt.Printf("\nNo function specified and no common entry point found.\n")
			fmt.Printf("Use -func to specify a function to call.\n")
			return nil
		}
	}

	args, err := parseArgs(argsStr)
	if err != nil {
		return fmt.Errorf("parse args: %w", err)
	}

	fmt.Printf("\nCalling %s(%v) with a %d point budget...\n", funcName, args, limit)
	results, err := instance.Call(ctx, funcName, args...)
	if err != nil {
		return fmt.Errorf("call %s: %w", funcName, err)
	}

	fmt.Printf("Result: %v\n", results)
	fmt.Printf("Points used: %d / %d\n", instance.PointsUsed(), instance.PointsLimit())

	return nil
}

func parseArgs(s string) ([]uint64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	args := make([]uint64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %d (%q): %w", i, p, err)
		}
		args[i] = v
	}
	return args, nil
}

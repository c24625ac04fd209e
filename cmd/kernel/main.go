// Command kernel boots a nyx kernel image against a flattened device tree
// blob and keeps the process alive while its simulated CPU cores run.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nyxkernel/nyx/internal/drivers/headless"
	"github.com/nyxkernel/nyx/internal/kernel"
	"github.com/nyxkernel/nyx/internal/klog"
)

func banner() {
	fmt.Println("nyx - a preemptive, multi-core hobby kernel core running as a Go simulation")
}

func main() {
	fdtPath := flag.String("fdt", "", "path to the flattened device tree blob (required)")
	cores := flag.Int("cores", 1, "number of logical CPU cores to bring up")
	logLevel := flag.String("log-level", "info", "minimum log level: debug, info, warn, error")
	interactive := flag.Bool("interactive-console", false, "read keyboard input from the real terminal instead of a headless stand-in")
	flag.Parse()

	banner()

	if *fdtPath == "" {
		fmt.Fprintln(os.Stderr, "kernel: -fdt is required")
		flag.Usage()
		os.Exit(1)
	}

	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kernel: %v\n", err)
		os.Exit(1)
	}

	blob, err := os.ReadFile(*fdtPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kernel: reading fdt blob: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	k, err := kernel.Kickstart(ctx, blob, *cores, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kernel: boot failed: %v\n", err)
		os.Exit(1)
	}

	k.Logger.Infof("main", "boot complete: %d core(s) online", k.NumCores())

	if *interactive {
		tty, err := headless.NewTTYConsole()
		if err != nil {
			k.Logger.Warnf("main", "interactive console unavailable, staying headless: %v", err)
		} else if err := tty.Start(); err != nil {
			k.Logger.Warnf("main", "failed to start interactive console: %v", err)
		} else {
			defer tty.Stop()
		}
	}

	<-ctx.Done()
	k.Logger.Infof("main", "shutdown signal received, halting")
}

func parseLevel(s string) (klog.Level, error) {
	switch s {
	case "debug":
		return klog.Debug, nil
	case "info":
		return klog.Info, nil
	case "warn":
		return klog.Warn, nil
	case "error":
		return klog.Error, nil
	default:
		return 0, fmt.Errorf("unknown -log-level %q", s)
	}
}

// Command cli prints the layered plan for a YAML unit manifest and can drive
// the plan with stub units to observe tick timing.
//
//	go run ./cli -manifest cli/frame.yaml -mermaid
//	go run ./cli -manifest cli/frame.yaml -ticks 10
//	go run ./cli -manifest cli/frame.yaml -run 2s -interval 16ms
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	sched "github.com/seoyhaein/sched-go"
	"github.com/seoyhaein/sched-go/debugonly"
	"github.com/seoyhaein/sched-go/manifest"
	"github.com/seoyhaein/sched-go/viz"
)

type options struct {
	manifest string
	mermaid  bool
	ticks    int
	run      time.Duration
	interval time.Duration
	lenient  bool
	serial   bool
	verbose  bool
}

func main() {
	var opts options
	flag.StringVar(&opts.manifest, "manifest", "", "path to the unit manifest (YAML)")
	flag.BoolVar(&opts.mermaid, "mermaid", false, "also print the plan as a Mermaid flowchart")
	flag.IntVar(&opts.ticks, "ticks", 0, "process this many ticks back to back")
	flag.DurationVar(&opts.run, "run", 0, "drive the plan with a clock for this long")
	flag.DurationVar(&opts.interval, "interval", 16*time.Millisecond, "clock interval used with -run")
	flag.BoolVar(&opts.lenient, "lenient", false, "order unresolved write conflicts by registration instead of failing")
	flag.BoolVar(&opts.serial, "serial", false, "run units one at a time in topological order")
	flag.BoolVar(&opts.verbose, "v", false, "log every ordering decision")
	flag.Parse()

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, viz.RenderError(err))
		os.Exit(1)
	}
}

func run(opts options, out io.Writer) error {
	if opts.manifest == "" {
		return fmt.Errorf("-manifest is required")
	}
	if opts.verbose {
		sched.Log.SetLevel(logrus.DebugLevel)
	}

	doc, err := manifest.LoadManifestFile(opts.manifest)
	if err != nil {
		return err
	}

	var schedOpts []sched.SchedulerOption
	if opts.lenient {
		schedOpts = append(schedOpts, sched.WithLenientConflicts())
	}
	if opts.serial {
		schedOpts = append(schedOpts, sched.WithSerialExecution())
	}
	s := sched.NewSchedulerWithOptions(schedOpts...)
	defer s.Close() //nolint:errcheck

	units, err := doc.Register(s)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, viz.RenderPlan(s.Snapshot()))
	if opts.mermaid {
		fmt.Fprintln(out)
		fmt.Fprint(out, s.ToMermaid())
	}

	ctx := context.Background()
	if opts.ticks > 0 {
		start := time.Now()
		for i := 1; i <= opts.ticks; i++ {
			if err := s.ProcessTick(ctx, sched.Tick{Seq: uint64(i), Time: time.Now()}, nil); err != nil {
				return err
			}
		}
		elapsed := time.Since(start)
		fmt.Fprintf(out, "%d ticks in %s (%s per tick)\n", opts.ticks, elapsed, elapsed/time.Duration(opts.ticks))
	}

	if opts.run > 0 {
		runCtx, cancel := context.WithTimeout(ctx, opts.run)
		defer cancel()
		clock := sched.NewClock(s, opts.interval)
		if err := clock.Run(runCtx, nil); err != nil {
			return err
		}
		fmt.Fprintf(out, "clock issued %d ticks in %s\n", clock.Ticks(), opts.run)
	}

	if opts.ticks > 0 || opts.run > 0 {
		for _, u := range units {
			fmt.Fprintf(out, "  %-16s %d updates\n", u.Kind(), u.Calls())
		}
	}
	if debugonly.Enabled() {
		fmt.Fprintln(out, "debugger tag: true")
	}
	return nil
}

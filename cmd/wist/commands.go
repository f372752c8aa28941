package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wist-lang/wist/internal/config"
	"github.com/wist-lang/wist/internal/lir"
	"github.com/wist-lang/wist/internal/pipeline"
	"github.com/wist-lang/wist/internal/vm"
)

type flags struct {
	configPath string
	trace      bool
	maxSteps   int64
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "wist",
		Short:         "Wist back end and abstract machine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&f.configPath, "config", "", "path to wist.yaml (default: search upwards from FILE)")
	root.PersistentFlags().BoolVar(&f.trace, "trace", false, "log every executed instruction to stderr")
	root.PersistentFlags().Int64Var(&f.maxSteps, "max-steps", 0, "stop after this many instructions (0: from config)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run FILE",
			Short: "Evaluate a program and print the value of main",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runFile(cmd, f, args[0])
			},
		},
		&cobra.Command{
			Use:   "disasm FILE",
			Short: "Compile a program and print its bytecode",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return disasmFile(cmd, f, args[0])
			},
		},
		&cobra.Command{
			Use:   "lir FILE",
			Short: "Lower a program and print its LIR",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return lirFile(cmd, f, args[0])
			},
		},
	)
	return root
}

// loadLimits picks the explicit config, else the nearest wist.yaml above
// the program, else the defaults; flags override all of them.
func loadLimits(cmd *cobra.Command, f *flags, file string) (config.Limits, error) {
	path := f.configPath
	if path == "" {
		found, err := config.FindConfig(filepath.Dir(file))
		if err != nil {
			return config.Limits{}, err
		}
		path = found
	}
	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return config.Limits{}, err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("trace") {
		cfg.VM.Trace = f.trace
	}
	if cmd.Flags().Changed("max-steps") {
		cfg.VM.MaxSteps = f.maxSteps
	}
	return cfg.VM, nil
}

// prepare reads file and runs the given stages over it in a fresh VM.
func prepare(cmd *cobra.Command, f *flags, file string, stages ...pipeline.Processor) (*pipeline.PipelineContext, error) {
	limits, err := loadLimits(cmd, f, file)
	if err != nil {
		return nil, err
	}
	source, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	machine := vm.New(limits)
	if limits.Trace {
		machine.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	if err := machine.PushFrame(); err != nil {
		return nil, err
	}

	ctx := pipeline.NewPipelineContext(file, source, machine)
	ctx = pipeline.New(append([]pipeline.Processor{&pipeline.DocumentProcessor{}}, stages...)...).Run(ctx)
	if ctx.Failed() {
		machine.Close()
		return nil, ctx.Errors[0]
	}
	return ctx, nil
}

func runFile(cmd *cobra.Command, f *flags, file string) error {
	ctx, err := prepare(cmd, f, file, &pipeline.LowerProcessor{}, &pipeline.CompileProcessor{}, &pipeline.EvalProcessor{})
	if err != nil {
		return err
	}
	defer ctx.Machine.Close()

	if !ctx.HasResult {
		return nil
	}
	v, err := ctx.Machine.Value(ctx.Result)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), v.Inspect())
	return nil
}

func disasmFile(cmd *cobra.Command, f *flags, file string) error {
	ctx, err := prepare(cmd, f, file, &pipeline.LowerProcessor{}, &pipeline.CompileProcessor{})
	if err != nil {
		return err
	}
	defer ctx.Machine.Close()

	out := cmd.OutOrStdout()
	c := newColorizer(out)
	writeTitle(out, c, file)
	code := ctx.Machine.Code()
	for i, u := range ctx.Units {
		end := code.Len()
		if i+1 < len(ctx.Units) {
			end = ctx.Units[i+1].Entry
		}
		listing := vm.Disassemble(code, u.Entry, end, ctx.Machine.Globals(), u.Label())
		writeListing(out, c, listing)
	}

	syms := ctx.Machine.Globals().Symbols()
	if len(syms) > 0 {
		names := make([]string, len(syms))
		for i, s := range syms {
			idx, _ := ctx.Machine.Globals().IndexOf(s)
			names[i] = fmt.Sprintf("%s=%d", s.Name(), idx)
		}
		fmt.Fprintln(out, c.dim("globals: "+strings.Join(names, " ")))
	}
	return nil
}

func lirFile(cmd *cobra.Command, f *flags, file string) error {
	ctx, err := prepare(cmd, f, file, &pipeline.LowerProcessor{})
	if err != nil {
		return err
	}
	defer ctx.Machine.Close()

	out := cmd.OutOrStdout()
	c := newColorizer(out)
	writeTitle(out, c, file)
	for _, u := range ctx.Units {
		fmt.Fprintln(out, c.header(fmt.Sprintf("== %s ==", u.Label())))
		lir.Print(out, u.LIR)
	}
	return nil
}

// writeTitle names the program by its file name without the document
// extension.
func writeTitle(w io.Writer, c colorizer, file string) {
	fmt.Fprintln(w, c.dim("; "+config.TrimSourceExt(filepath.Base(file))))
}

func writeListing(w io.Writer, c colorizer, listing string) {
	for _, line := range strings.SplitAfter(listing, "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "==") {
			fmt.Fprintln(w, c.header(strings.TrimSuffix(line, "\n")))
			continue
		}
		io.WriteString(w, line)
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mlld-lang/mlld-core/errkind"
	"github.com/mlld-lang/mlld-core/runtime"
)

func main() {
	var (
		file     string
		noColor  bool
		debug    bool
		traceOut bool
		timeout  time.Duration
	)

	rootCmd := &cobra.Command{
		Use:           "mlld [file]",
		Short:         "Evaluate an mlld script and print its materialized output",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				file = args[0]
			}
			useColor := ShouldUseColor(noColor)
			exitCode, err := run(cmd, file, useColor, debug, traceOut, timeout)
			if err != nil {
				cmd.SilenceUsage = true
				return err
			}
			if exitCode != 0 {
				return fmt.Errorf("run failed with exit code %d", exitCode)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&file, "file", "f", "main.mld", "Path to the mlld script to evaluate")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output on stderr")
	rootCmd.PersistentFlags().BoolVar(&traceOut, "trace", false, "Print the path of each state write to stderr (guard traces are not printed)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Abort the run after this duration (0 = no limit)")

	exitCode := 0
	if err := rootCmd.Execute(); err != nil {
		FormatError(os.Stderr, err, ShouldUseColor(noColor))
		exitCode = 1
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// newCancellableContext cancels on SIGINT/SIGTERM so Ctrl+C propagates
// through subprocess/file-I/O suspension points (spec.md §5
// cancellation).
func newCancellableContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()
	return ctx, cancel
}

func run(cmd *cobra.Command, file string, useColor, debug, traceOut bool, timeout time.Duration) (int, error) {
	reader, closeFunc, err := getInputReader(file)
	if err != nil {
		return 1, err
	}
	defer func() { _ = closeFunc() }()

	source, err := io.ReadAll(reader)
	if err != nil {
		return 1, fmt.Errorf("error reading input: %w", err)
	}

	ctx, cancel := newCancellableContext()
	defer cancel()

	opts := []runtime.Option{
		runtime.WithParser(lineParser{}),
		runtime.WithProjectRoot(filepath.Dir(absPath(file))),
		runtime.WithStderr(os.Stderr),
	}
	if timeout > 0 {
		opts = append(opts, runtime.WithTimeout(timeout))
	}
	rt := runtime.New(opts...)

	result, runErr := rt.Process(ctx, string(source))
	fmt.Fprint(cmd.OutOrStdout(), result.Output)

	if debug {
		fmt.Fprintf(os.Stderr, "\n%s%d state write(s)\n", Colorize("debug: ", ColorGray, useColor), len(result.StateWrites))
	}
	if traceOut {
		for _, sw := range result.StateWrites {
			fmt.Fprintf(os.Stderr, "state write: %s\n", sw.Path)
		}
	}

	if runErr != nil {
		if exitErr, ok := runErr.(*errkind.Error); ok {
			return exitErr.Kind.ExitCode(), runErr
		}
		return 1, runErr
	}
	return 0, nil
}

// getInputReader handles the 2 supported input modes: explicit stdin
// (`-f -`) or piped input, else a named file.
func getInputReader(file string) (io.Reader, func() error, error) {
	if file == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	if file == "main.mld" && hasPipedInput() {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, nil, &CLIError{
			Type:    "input",
			Message: fmt.Sprintf("error opening file %s: %v", file, err),
			Hint:    "Pass a path with -f, or pipe source on stdin",
		}
	}
	return f, f.Close, nil
}

func hasPipedInput() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func absPath(file string) string {
	if file == "-" || file == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "."
		}
		return wd
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return file
	}
	return abs
}

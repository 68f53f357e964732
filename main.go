package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"pkt.systems/psi"
	"pkt.systems/pslog"

	"quill/config"
)

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	root := newRootCmd()
	root.SetArgs(os.Args[1:])
	if err := root.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("quill command failed")
		return 1
	}
	return 0
}

var errNotTerminal = errors.New("stdout is not a terminal")

func newRootCmd() *cobra.Command {
	var cfgPath, logPath string
	var noLSP bool
	root := &cobra.Command{
		Use:           "quill [files...]",
		Short:         "Multi-buffer terminal text editor",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				return errNotTerminal
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			logger, closeLog, err := fileLogger(logPath)
			if err != nil {
				return err
			}
			defer closeLog()
			return runTUI(pslog.ContextWithLogger(cmd.Context(), logger), cfg, filterArgsToFiles(args), noLSP)
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	root.Flags().StringVar(&logPath, "log-file", "", "write logs to this file (the terminal belongs to the editor)")
	root.Flags().BoolVar(&noLSP, "no-lsp", false, "do not start the language server")

	root.AddCommand(newExtensionsCmd(&cfgPath))
	root.AddCommand(newConfigCmd(&cfgPath))
	return root
}

// fileLogger returns a structured logger writing to path, or a discarding
// one when path is empty.
func fileLogger(path string) (pslog.Logger, func(), error) {
	var w io.Writer = io.Discard
	closeFn := func() {}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(w),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeStructured, NoColor: true}),
	)
	return logger, closeFn, nil
}

func newExtensionsCmd(cfgPath *string) *cobra.Command {
	var noLSP bool
	cmd := &cobra.Command{
		Use:   "extensions",
		Short: "List installed extensions and whether they are enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			app, err := newApp(appOptions{cfg: cfg, log: pslog.Ctx(cmd.Context()), noLSP: noLSP})
			if err != nil {
				return err
			}
			defer app.close()
			return writeExtensions(cmd.OutOrStdout(), app)
		},
	}
	cmd.Flags().BoolVar(&noLSP, "no-lsp", false, "leave out the language server provider")
	return cmd
}

func writeExtensions(out io.Writer, app *appState) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tNAME\tVERSION\tSTATE\tDESCRIPTION")
	for _, st := range app.registry.Statuses() {
		state := "disabled"
		if st.Enabled {
			state = "enabled"
		}
		if st.Builtin {
			state += " (built-in)"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", st.Index, st.Name, st.Version, state, st.Description)
	}
	return tw.Flush()
}

func newConfigCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	var overwrite bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.WriteDefault(*cfgPath, overwrite)
			if err != nil {
				return err
			}
			pslog.Ctx(cmd.Context()).Info("config written", "path", path)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&overwrite, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

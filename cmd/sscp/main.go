package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ZygoteCode/SSCP/internal/cmdutil"
	"github.com/ZygoteCode/SSCP/internal/logging"
	sscpversion "github.com/ZygoteCode/SSCP/internal/version"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// envPrefix scopes every environment override, e.g. SSCP_LISTEN.
const envPrefix = "SSCP_"

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	env    cmdutil.Env

	logLevel  string
	logFormat string
	noColor   bool
	log       zerolog.Logger
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr, env: cmdutil.Env{Prefix: envPrefix}, log: zerolog.Nop()}
	root := a.rootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		if cmdutil.IsUsage(err) {
			fmt.Fprintln(stderr, "run 'sscp --help' for usage")
		}
	}
	return cmdutil.ExitCode(err)
}

func versionInfo() sscpversion.Info { return sscpversion.Resolve(version, commit, date) }

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sscp",
		Short:         "Secure Sockets Communication Protocol server and client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setupLogging(cmd)
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return cmdutil.Usagef("%v", err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.logLevel, "log-level", "", "trace, debug, info, warn, error or off (env: SSCP_LOG_LEVEL)")
	pf.StringVar(&a.logFormat, "log-format", "", "console or json (env: SSCP_LOG_FORMAT)")
	pf.BoolVar(&a.noColor, "no-color", false, "disable colored console logs (env: SSCP_LOG_NOCOLOR)")

	root.AddCommand(a.serveCmd(), a.connectCmd(), a.configCmd(), a.versionCmd())
	return root
}

// setupLogging builds the logger from defaults, SSCP_LOG_* and the persistent flags, in that order.
func (a *app) setupLogging(cmd *cobra.Command) error {
	cfg := logging.ApplyEnv(logging.DefaultConfig(), a.env)
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		lvl, ok := logging.ParseLevel(a.logLevel)
		if !ok {
			return cmdutil.Usagef("invalid --log-level %q", a.logLevel)
		}
		cfg.Level = lvl
	}
	if flags.Changed("log-format") {
		f, ok := logging.ParseFormat(a.logFormat)
		if !ok {
			return cmdutil.Usagef("invalid --log-format %q", a.logFormat)
		}
		cfg.Format = f
	}
	if flags.Changed("no-color") {
		cfg.NoColor = a.noColor
	}
	a.log = logging.New(a.stderr, "sscp", cfg)
	return nil
}

// levelPinned reports whether the log level was chosen by flag or environment.
func (a *app) levelPinned(cmd *cobra.Command) bool {
	if cmd.Flags().Changed("log-level") {
		return true
	}
	_, ok := logging.ParseLevel(a.env.String(logging.EnvLogLevel, ""))
	return ok
}

func (a *app) versionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionInfo()
			if asJSON {
				return cmdutil.WriteJSON(a.stdout, info, false)
			}
			_, err := fmt.Fprintln(a.stdout, info.String())
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return cmdutil.Usagef("%s takes no arguments", cmd.CommandPath())
	}
	return nil
}

func maxOneArg(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return cmdutil.Usagef("%s takes at most one argument", cmd.CommandPath())
	}
	return nil
}

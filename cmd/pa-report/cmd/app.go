// Package cmd implements the pa-report command line.
package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ironsheep/pa-report/internal/config"
	"github.com/ironsheep/pa-report/internal/logging"
)

// viperKey is the flag annotation naming the configuration key a flag sets.
const viperKey = "viper_key"

// App holds the state shared by all commands of one invocation.
type App struct {
	version   string
	buildTime string
	gitCommit string

	v      *viper.Viper
	cfg    *config.Config
	log    zerolog.Logger
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configFile string
}

// New creates the application.
func New(version, buildTime, gitCommit string) *App {
	return &App{
		version:   version,
		buildTime: buildTime,
		gitCommit: gitCommit,
		v:         config.NewViper(),
		log:       logging.Nop(),
		in:        os.Stdin,
		out:       os.Stdout,
		errOut:    os.Stderr,
	}
}

// SetIO redirects the standard streams of the commands, for tests.
func (a *App) SetIO(in io.Reader, out, errOut io.Writer) {
	a.in = in
	a.out = out
	a.errOut = errOut
}

// Execute runs the command line given by args.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	return root.ExecuteContext(ctx)
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pa-report",
		Short: "Reconcile PA search particle lists and report them",
		Long: `pa-report pairs the particles an EDAX particle search found with the
particles ImageJ measured on the same field images, crops a thumbnail of
every particle and writes an interactive HTML report.

Settings come from defaults, .env files, pa-report.yaml (or --config),
PA_REPORT_* environment variables and flags, in increasing precedence.`,
		Version:           a.version,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	root.SetVersionTemplate("pa-report {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default ./pa-report.yaml)")
	bindString(flags, "log-level", "log.level", "", "log level: trace, debug, info, warn, error")
	bindString(flags, "data-dir", "data_dir", "", "directory holding the PA search")
	bindInt(flags, "run", "run_index", 0, "run to use when several PA searches are found")

	root.AddCommand(
		a.reportCommand(),
		a.matchCommand(),
		a.thumbnailsCommand(),
		a.mcpCommand(),
		a.configCommand(),
		a.versionCommand(),
	)
	return root
}

// setup binds the flags of the running command to their configuration keys,
// loads the configuration and builds the logger.
func (a *App) setup(cmd *cobra.Command, _ []string) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[viperKey]
		if len(keys) == 0 || bindErr != nil {
			return
		}
		bindErr = a.v.BindPFlag(keys[0], f)
	})
	if bindErr != nil {
		return bindErr
	}

	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := logging.FromEnv()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	logCfg.Output = cfg.Log.Output
	a.log = logging.New(logCfg)
	if cfg.ConfigFile != "" {
		a.log.Debug().Str("file", cfg.ConfigFile).Msg("Loaded config file")
	}
	return nil
}

func bindString(flags *pflag.FlagSet, name, key, value, usage string) {
	flags.String(name, value, usage)
	annotate(flags, name, key)
}

func bindStringP(flags *pflag.FlagSet, name, short, key, value, usage string) {
	flags.StringP(name, short, value, usage)
	annotate(flags, name, key)
}

func bindInt(flags *pflag.FlagSet, name, key string, value int, usage string) {
	flags.Int(name, value, usage)
	annotate(flags, name, key)
}

func bindFloat(flags *pflag.FlagSet, name, key string, value float64, usage string) {
	flags.Float64(name, value, usage)
	annotate(flags, name, key)
}

func bindBool(flags *pflag.FlagSet, name, key string, usage string) {
	flags.Bool(name, false, usage)
	annotate(flags, name, key)
}

// annotate marks a flag for binding in setup. Flags are bound only for the
// command that runs, since several commands share configuration keys.
func annotate(flags *pflag.FlagSet, name, key string) {
	if err := flags.SetAnnotation(name, viperKey, []string{key}); err != nil {
		panic("programming error: " + err.Error())
	}
}

// ContextWithSignals returns a context cancelled on SIGINT or SIGTERM.
func ContextWithSignals(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// ExitOnError prints err to stderr and exits with status 1.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"smartbiz/config"
	"smartbiz/log"
)

var version = "dev"

// deps is shared by every command. Flags fill it before PersistentPreRunE
// loads the config.
type deps struct {
	configPath string
	logPath    string

	cfg      *config.Config
	warnings []config.Warning
	cfgErr   error
}

func newRootCmd(d *deps) *cobra.Command {
	var opts voiceOptions
	root := &cobra.Command{
		Use:           "smartbiz",
		Short:         "Voice commands for your shop inventory",
		Long:          "Hold the hotkey, say a command like \"add 5 kg rice\", and release to update the SmartBiz inventory.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return d.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := d.requireConfig(); err != nil {
				return err
			}
			return runVoice(cmd.Context(), d, opts)
		},
	}
	root.SetVersionTemplate("smartbiz {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&d.configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	pf.StringVar(&d.logPath, "logpath", "", "log directory (default: OS-specific location, use ./ for current dir)")

	f := root.Flags()
	f.BoolVar(&opts.setup, "setup", false, "pick the microphone interactively and save it to the config")
	f.StringVar(&opts.device, "device", "", "use the named microphone")
	f.BoolVar(&opts.noHotkey, "no-hotkey", false, "disable the global hotkey and use the terminal only")
	f.DurationVar(&opts.longPress, "longpress", 350*time.Millisecond, "hold threshold separating push-to-talk from tap-to-toggle (0 = hold only)")

	root.AddCommand(
		newLoginCmd(d),
		newRegisterCmd(d),
		newLogoutCmd(d),
		newStockCmd(d),
		newDashboardCmd(d),
		newReportCmd(d),
		newDoctorCmd(d),
		newMockServerCmd(d),
		newVersionCmd(),
		newTestCmd(d),
	)
	return root
}

func (d *deps) load(cmd *cobra.Command) error {
	dir, err := log.ResolveDir(d.logPath)
	if err != nil {
		return fmt.Errorf("resolving log directory: %w", err)
	}
	log.SetDir(dir)

	d.cfg, d.warnings, d.cfgErr = config.Load(d.configPath)
	for _, w := range d.warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w.Message)
	}
	return nil
}

// requireConfig fails commands that cannot run without a valid config.
func (d *deps) requireConfig() error {
	if d.cfgErr != nil {
		return fmt.Errorf("config: %w", d.cfgErr)
	}
	return nil
}

// initCrashLog routes fatal runtime output to crash_log.txt in the log
// directory.
func initCrashLog() {
	dir, err := log.ResolveDir("")
	if err != nil {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(filepath.Join(dir, "crash_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(f, debug.CrashOptions{})
}

func run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd(&deps{}).ExecuteContext(ctx)
	log.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

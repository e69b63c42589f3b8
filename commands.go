package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"smartbiz/audio"
	"smartbiz/auth"
	"smartbiz/doctor"
	"smartbiz/inventory"
	"smartbiz/log"
	"smartbiz/mockserver"
)

func (d *deps) authClient() *auth.Client {
	return auth.NewClient(d.cfg.ServerURL, d.cfg.RequestTimeout, auth.NewTokenStore(d.cfg.TokenPath))
}

// prompt reads one line, or a password without echo when secret is set and
// stdin is a terminal.
func prompt(cmd *cobra.Command, in *bufio.Reader, label string, secret bool) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), label)
	if secret {
		if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(cmd.OutOrStdout())
			return string(b), err
		}
	}
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func newLoginCmd(d *deps) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store a session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := d.requireConfig(); err != nil {
				return err
			}
			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if email == "" {
				if email, err = prompt(cmd, in, "Email: ", false); err != nil {
					return err
				}
			}
			password, err := prompt(cmd, in, "Password: ", true)
			if err != nil {
				return err
			}
			if _, err := d.authClient().Login(cmd.Context(), email, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newRegisterCmd(d *deps) *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := d.requireConfig(); err != nil {
				return err
			}
			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if name == "" {
				if name, err = prompt(cmd, in, "Name: ", false); err != nil {
					return err
				}
			}
			if email == "" {
				if email, err = prompt(cmd, in, "Email: ", false); err != nil {
					return err
				}
			}
			password, err := prompt(cmd, in, "Password: ", true)
			if err != nil {
				return err
			}
			if err := d.authClient().Register(cmd.Context(), name, email, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s. Run 'smartbiz login' next.\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newLogoutCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := d.requireConfig(); err != nil {
				return err
			}
			if err := d.authClient().Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

var lowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)

func (d *deps) fetchStock(cmd *cobra.Command) ([]inventory.Item, error) {
	if err := d.requireConfig(); err != nil {
		return nil, err
	}
	store := auth.NewTokenStore(d.cfg.TokenPath)
	items, err := inventory.NewClient(d.cfg.ServerURL, d.cfg.RequestTimeout, store).List(cmd.Context())
	if errors.Is(err, auth.ErrNotLoggedIn) || errors.Is(err, inventory.ErrUnauthorized) {
		return nil, fmt.Errorf("%w (run 'smartbiz login')", err)
	}
	return items, err
}

func writeStock(w io.Writer, items []inventory.Item) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tLOCAL\tSTOCK\t")
	for _, it := range items {
		flag := ""
		if it.Low() {
			flag = lowStyle.Render("low")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.Name, it.NameLocal, inventory.FormatStock(it), flag)
	}
	tw.Flush()
}

func newStockCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "stock [query]",
		Short: "List inventory, optionally filtered by English or Nepali name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := d.fetchStock(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				items = inventory.Search(items, args[0])
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching items")
				return nil
			}
			writeStock(cmd.OutOrStdout(), items)
			return nil
		},
	}
}

func newDashboardCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Summarize inventory and list low-stock items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := d.fetchStock(cmd)
			if err != nil {
				return err
			}
			s := inventory.Dashboard(items)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total items:     %d\n", s.Total)
			fmt.Fprintf(out, "Low stock (<%d): %d\n", inventory.LowStockThreshold, s.LowStock)
			if s.LowStock > 0 {
				fmt.Fprintln(out)
				writeStock(out, s.Low)
			}
			return nil
		},
	}
}

func newReportCmd(d *deps) *cobra.Command {
	var (
		days int
		out  string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Download the sales report PDF for the last 1, 7 or 28 days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := d.requireConfig(); err != nil {
				return err
			}
			if !inventory.ValidReportDays(days) {
				return fmt.Errorf("--days must be 1, 7 or 28, got %d", days)
			}
			store := auth.NewTokenStore(d.cfg.TokenPath)
			rep, err := inventory.NewClient(d.cfg.ServerURL, d.cfg.RequestTimeout, store).SalesReport(cmd.Context(), days)
			var apiErr *auth.APIError
			switch {
			case errors.Is(err, auth.ErrNotLoggedIn) || errors.Is(err, inventory.ErrUnauthorized):
				return fmt.Errorf("%w (run 'smartbiz login')", err)
			case errors.As(err, &apiErr) && apiErr.Detail != "":
				return errors.New(apiErr.Detail)
			case err != nil:
				return err
			}

			path := out
			if path == "" {
				path = rep.Filename
			}
			if err := os.WriteFile(path, rep.Data, 0o644); err != nil {
				return fmt.Errorf("saving report: %w", err)
			}
			log.Infof("report saved to %s (%d bytes, %d days)", path, len(rep.Data), days)
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "report window in days (1, 7 or 28)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: the name the server suggests)")
	return cmd
}

func newDoctorCmd(d *deps) *cobra.Command {
	var skipMic bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, microphone, server and login",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dd := doctor.Deps{Config: d.cfg, ConfigErr: d.cfgErr}
			if d.cfg != nil {
				dd.Tokens = auth.NewTokenStore(d.cfg.TokenPath)
			}
			if !skipMic && d.cfg != nil {
				actx, err := audio.NewContext()
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: audio unavailable: %v\n", err)
				} else {
					defer actx.Close()
					dev, err := resolveDevice(actx, d.cfg.Device)
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v, using the default microphone\n", err)
					}
					dir, err := artifactDir()
					if err != nil {
						return err
					}
					dd.Mic = audio.NewMic(actx, dev, dir)
				}
			}
			if code := doctor.Run(cmd.Context(), cmd.OutOrStdout(), doctor.Checks(dd)); code != 0 {
				return errors.New("doctor found problems")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipMic, "no-mic", false, "skip the microphone check")
	return cmd
}

func newMockServerCmd(d *deps) *cobra.Command {
	var addr string
	var latency time.Duration
	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run an in-memory inventory backend for development",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := log.Init(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not init logging: %v\n", err)
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			srv := &http.Server{
				Handler:           mockserver.New(mockserver.WithLatency(latency)),
				ReadHeaderTimeout: 10 * time.Second,
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mock server listening on http://%s (login: user@user.com / user)\n", ln.Addr())

			errc := make(chan error, 1)
			go func() { errc <- srv.Serve(ln) }()
			select {
			case err := <-errc:
				return err
			case <-cmd.Context().Done():
				return srv.Close()
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "listen address")
	cmd.Flags().DurationVar(&latency, "latency", 0, "delay every voice reply")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "smartbiz %s\n", version)
		},
	}
}

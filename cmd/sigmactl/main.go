package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/caarlos0/env/v11"
	sigma "github.com/caarlos0/homekit-sigma"
	logp "github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "sigmactl",
})

type Config struct {
	Host     string `env:"HOST"`
	Port     string `env:"PANEL_PORT" envDefault:"5053"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	PIN      string `env:"PIN"`
	LogLevel string `env:"LOG_LEVEL"  envDefault:"warn"`
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		log.Fatal("could not parse env", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(execute(ctx, newRootCmd(&cfg, os.Stdout)))
}

// execute runs root and returns the process exit code. Cobra is told to stay
// quiet about errors, so they are logged here.
func execute(ctx context.Context, root *cobra.Command) int {
	if err := root.ExecuteContext(ctx); err != nil {
		log.Error("command failed", "err", err)
		return 1
	}
	return 0
}

func newRootCmd(cfg *Config, out io.Writer) *cobra.Command {
	var timeout time.Duration
	root := &cobra.Command{
		Use:           "sigmactl",
		Short:         "Query and control a Sigma alarm panel",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			level, err := logp.ParseLevel(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			log.SetLevel(level)
			sigma.SetLogLevel(level)
			return nil
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVarP(&cfg.Host, "host", "H", cfg.Host, "panel host [$HOST]")
	flags.StringVarP(&cfg.Port, "port", "p", cfg.Port, "panel port [$PANEL_PORT]")
	flags.StringVarP(&cfg.Username, "username", "u", cfg.Username, "web user [$USERNAME]")
	flags.StringVar(&cfg.Password, "password", cfg.Password, "web password [$PASSWORD]")
	flags.StringVar(&cfg.PIN, "pin", cfg.PIN, "user code, defaults to the password [$PIN]")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level [$LOG_LEVEL]")
	flags.DurationVarP(&timeout, "timeout", "t", 2*time.Minute, "give up after this long")

	newClient := func(cmd *cobra.Command) (*sigma.Client, context.Context, context.CancelFunc, error) {
		cli, err := sigma.New(sigma.Options{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			PIN:      cfg.PIN,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("could not create client: %w", err)
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		return cli, ctx, cancel, nil
	}

	root.AddCommand(newStatusCmd(newClient))
	for _, action := range []sigma.Action{sigma.ActionArm, sigma.ActionDisarm, sigma.ActionStay} {
		root.AddCommand(newActionCmd(action, newClient))
	}
	return root
}

type clientFactory = func(cmd *cobra.Command) (*sigma.Client, context.Context, context.CancelFunc, error)

func newStatusCmd(newClient clientFactory) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the partition status and zones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, ctx, cancel, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer cli.Logout(context.Background())

			snap, err := cli.FetchSnapshot(ctx)
			if err != nil {
				log.Error("could not get status", "err", err)
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), snap)
			}
			return printSnapshot(cmd.OutOrStdout(), snap)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as json")
	return cmd
}

func newActionCmd(action sigma.Action, newClient clientFactory) *cobra.Command {
	target, _ := action.Target()
	return &cobra.Command{
		Use:   action.String(),
		Short: fmt.Sprintf("Change the partition to %q and wait for it", strings.ToLower(target.String())),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, ctx, cancel, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer cli.Logout(context.Background())

			if err := cli.PerformAction(ctx, action); err != nil {
				log.Error("action failed", "action", action, "err", err)
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), target.String())
			return err
		},
	}
}

type jsonZone struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Contact     string `json:"contact"`
	Bypassed    *bool  `json:"bypassed"`
}

type jsonSnapshot struct {
	Status        string     `json:"status"`
	ZonesBypassed *bool      `json:"zones_bypassed"`
	BatteryVolts  *float64   `json:"battery_volts"`
	ACPower       *bool      `json:"ac_power"`
	Zones         []jsonZone `json:"zones"`
	FetchedAt     time.Time  `json:"fetched_at"`
}

func optional(f sigma.Flag) *bool {
	v, ok := f.Bool()
	if !ok {
		return nil
	}
	return &v
}

func printJSON(w io.Writer, snap sigma.Snapshot) error {
	out := jsonSnapshot{
		Status:        snap.Status.String(),
		ZonesBypassed: optional(snap.ZonesBypassed),
		BatteryVolts:  snap.BatteryVolts,
		ACPower:       optional(snap.ACPower),
		FetchedAt:     snap.FetchedAt,
	}
	for _, zone := range snap.Zones {
		out.Zones = append(out.Zones, jsonZone{
			ID:          zone.ID,
			Description: zone.Description,
			Contact:     string(zone.Contact),
			Bypassed:    optional(zone.Bypassed),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printSnapshot(w io.Writer, snap sigma.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Status:\t%s\n", snap.Status)
	fmt.Fprintf(tw, "Zones bypassed:\t%s\n", snap.ZonesBypassed)
	if snap.BatteryVolts != nil {
		fmt.Fprintf(tw, "Battery:\t%.1fV (%s)\n", *snap.BatteryVolts, snap.Battery())
	}
	fmt.Fprintf(tw, "Mains power:\t%s\n", snap.ACPower)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "ZONE\tDESCRIPTION\tCONTACT\tBYPASSED")
	for _, zone := range snap.Zones {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", zone.ID, zone.Description, zone.Contact, zone.Bypassed)
	}
	return tw.Flush()
}

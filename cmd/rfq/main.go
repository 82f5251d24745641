package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rfq-tracker/internal/app"
	"rfq-tracker/internal/config"
	"rfq-tracker/internal/query"
	"rfq-tracker/internal/rfq"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file. A missing or broken file falls back to
// the defaults with a warning.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.Load(defaults["config_path"], defaults["base_dir"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v; using defaults\n", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates an RFQApp. The caller must defer app.Close().
func newApp(ctx context.Context, opts app.Options) (*app.RFQApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewRFQApp(ctx, cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// shorten returns at most the first n bytes of s.
func shorten(s string, n int) string {
	return s[:min(len(s), n)]
}

func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pass), nil
}

func parsePartnerType(s string) (*rfq.PartnerType, error) {
	switch strings.ToLower(s) {
	case "":
		return nil, nil
	case "supplier":
		return rfq.PartnerTypePtr(rfq.PartnerSupplier), nil
	case "contractor":
		return rfq.PartnerTypePtr(rfq.PartnerContractor), nil
	default:
		return nil, fmt.Errorf("unknown partner type %q (want supplier or contractor)", s)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rfq",
	Short: "RFQ folder crawler",
}

// crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the project folders and update the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		verbose, _ := cmd.Flags().GetBool("verbose")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		root, _ := cmd.Flags().GetString("root")

		ctx := cmd.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		a, err := newApp(ctx, app.Options{Command: "crawl", DryRun: dryRun, Verbose: verbose, Console: os.Stderr})
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.Crawl(ctx, root)
		if errors.Is(err, rfq.ErrCrawlTimedOut) {
			fmt.Printf("Crawl timed out after %s; %d project(s) saved, earlier data kept\n", timeout, summary.Projects)
			return err
		}
		if err != nil {
			return fmt.Errorf("crawl failed: %w", err)
		}

		if dryRun {
			fmt.Printf("Dry run: %d project(s), %d submission(s) would be reconciled\n",
				summary.Projects, summary.Planned)
			return nil
		}
		fmt.Printf("Crawled %d project(s) (%d failed, %d skipped): %d inserted, %d unchanged, %d failed\n",
			summary.Projects, summary.ProjectsFailed, summary.Skipped,
			summary.Inserted, summary.Touched, summary.Failed)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View crawl history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), app.Options{Command: "history"})
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No crawls recorded.")
			return nil
		}

		for _, r := range runs {
			fmt.Printf("%s  %s  %-9s  %-8s  projects:%d failed:%d  inserted:%d unchanged:%d errors:%d  %s\n",
				shorten(r.ID, 8),
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Status,
				r.Duration().Truncate(time.Millisecond),
				r.Projects, r.ProjectsFailed,
				r.Inserted, r.Touched, r.Failed,
				r.RootPath,
			)
		}
		return nil
	},
}

// report commands
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Query the store",
}

// withReader opens the app and hands its query layer to fn.
func withReader(cmd *cobra.Command, fn func(ctx context.Context, r *query.Reader) error) error {
	a, err := newApp(cmd.Context(), app.Options{Command: "report"})
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := a.Query()
	if err != nil {
		return err
	}
	return fn(cmd.Context(), r)
}

var reportProjectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List crawled projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReader(cmd, func(ctx context.Context, r *query.Reader) error {
			projects, err := r.Projects(ctx)
			if err != nil {
				return err
			}
			for _, p := range projects {
				fmt.Printf("%-10s  %s  %s\n", p.ProjectNumber,
					p.LastScanned.Local().Format("2006-01-02 15:04"), p.Path)
			}
			return nil
		})
	},
}

var reportSuppliersCmd = &cobra.Command{
	Use:   "suppliers",
	Short: "List partners, optionally by partner type",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetString("project")
		typeFlag, _ := cmd.Flags().GetString("type")
		pt, err := parsePartnerType(typeFlag)
		if err != nil {
			return err
		}

		return withReader(cmd, func(ctx context.Context, r *query.Reader) error {
			suppliers, err := r.SuppliersByPartnerType(ctx, project, pt)
			if err != nil {
				return err
			}
			if len(suppliers) == 0 {
				fmt.Println("No partners found.")
				return nil
			}
			for _, s := range suppliers {
				fmt.Printf("%-10s  %-10s  %s\n", s.ProjectNumber, s.EffectivePartnerType(), s.SupplierName)
			}
			return nil
		})
	},
}

var reportVersionsCmd = &cobra.Command{
	Use:   "versions PROJECT PARTNER",
	Short: "Show the version chains of a partner's exchanges",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withReader(cmd, func(ctx context.Context, r *query.Reader) error {
			chains, err := r.VersionChains(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if len(chains) == 0 {
				fmt.Println("No submissions found.")
				return nil
			}
			for _, c := range chains {
				fmt.Printf("%s (%d version(s))\n", c.FolderName, len(c.Versions))
				for _, v := range c.Versions {
					fmt.Printf("  %s  %-8s  %s  %d file(s)\n",
						v.Date.Local().Format("2006-01-02 15:04"), v.Type, shorten(v.ContentHash, 12), len(v.Files))
				}
			}
			return nil
		})
	},
}

var reportStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Sent/received counts per partner (with --project) or per project",
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetString("project")
		typeFlag, _ := cmd.Flags().GetString("type")
		pt, err := parsePartnerType(typeFlag)
		if err != nil {
			return err
		}

		return withReader(cmd, func(ctx context.Context, r *query.Reader) error {
			if project != "" {
				stats, err := r.PartnerStats(ctx, project, pt)
				if err != nil {
					return err
				}
				for _, s := range stats {
					fmt.Printf("%-30s  %-10s  sent:%d received:%d\n", s.SupplierName, s.PartnerType, s.Sent, s.Received)
				}
				return nil
			}

			stats, err := r.ProjectStats(ctx, pt)
			if err != nil {
				return err
			}
			for _, s := range stats {
				fmt.Printf("%-10s  contacted:%d responded:%d\n", s.ProjectNumber, s.Contacted, s.Responded)
			}
			return nil
		})
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if root, _ := cmd.Flags().GetString("root"); root != "" {
			cfg.RootPath = root
		}
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("# Configuration from %s\n\n", path)
		m := &config.Manager{}
		return m.Write(os.Stdout, cfg)
	},
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage store snapshots",
}

var snapshotKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Create the snapshot encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), app.Options{Command: "snapshot", DryRun: true})
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		confirm, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.SetupKeys(pass); err != nil {
			return err
		}
		fmt.Println("Snapshot keys created.")
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), app.Options{Command: "snapshot", DryRun: true})
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.ListSnapshots(cmd.Context())
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No snapshots.")
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore NAME DEST",
	Short: "Download a snapshot into a new database file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), app.Options{Command: "snapshot", DryRun: true})
		if err != nil {
			return err
		}
		defer a.Close()

		prompt := func() (string, error) { return readPassphrase("Passphrase: ") }
		if err := a.RestoreSnapshot(cmd.Context(), args[0], args[1], prompt); err != nil {
			return err
		}
		fmt.Printf("Restored %s to %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	// crawl
	rootCmd.AddCommand(crawlCmd)
	crawlCmd.Flags().Bool("dry-run", false, "Log what would be written without touching the store")
	crawlCmd.Flags().Duration("timeout", 0, "Abort the crawl after this long (0 = no limit)")
	crawlCmd.Flags().BoolP("verbose", "v", false, "Log at debug level")
	crawlCmd.Flags().String("root", "", "Folder holding the project folders (default: root_path from config)")

	// history
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of crawls to show")

	// report subcommands
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportProjectsCmd)
	reportCmd.AddCommand(reportSuppliersCmd)
	reportCmd.AddCommand(reportVersionsCmd)
	reportCmd.AddCommand(reportStatsCmd)
	for _, c := range []*cobra.Command{reportSuppliersCmd, reportStatsCmd} {
		c.Flags().StringP("project", "p", "", "Project number")
		c.Flags().StringP("type", "t", "", "Partner type: supplier or contractor")
	}

	// config subcommands
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("root", "", "Folder holding the project folders")
	configCmd.AddCommand(configListCmd)

	// snapshot subcommands
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotKeygenCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
}

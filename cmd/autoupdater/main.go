// autoupdater: LLM-assisted patch planner for local repositories
//
// Usage:
//
//	autoupdater serve --repo ~/code/myproject
//	autoupdater serve --repo . --port 8787 --model gpt-4o-mini
//	autoupdater run --dir ~/code/myproject
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/acttech/autoupdater/internal/api"
	"github.com/acttech/autoupdater/internal/bootstrap"
	"github.com/acttech/autoupdater/internal/config"
	"github.com/acttech/autoupdater/internal/llm"
	"github.com/acttech/autoupdater/internal/metrics"
	"github.com/acttech/autoupdater/internal/sysinfo"
)

const banner = `
 █████╗ ██╗   ██╗████████╗ ██████╗ ██╗   ██╗██████╗ ██████╗  █████╗ ████████╗███████╗██████╗
██╔══██╗██║   ██║╚══██╔══╝██╔═══██╗██║   ██║██╔══██╗██╔══██╗██╔══██╗╚══██╔══╝██╔════╝██╔══██╗
███████║██║   ██║   ██║   ██║   ██║██║   ██║██████╔╝██║  ██║███████║   ██║   █████╗  ██████╔╝
██╔══██║██║   ██║   ██║   ██║   ██║██║   ██║██╔═══╝ ██║  ██║██╔══██║   ██║   ██╔══╝  ██╔══██╗
██║  ██║╚██████╔╝   ██║   ╚██████╔╝╚██████╔╝██║     ██████╔╝██║  ██║   ██║   ███████╗██║  ██║
╚═╝  ╚═╝ ╚═════╝    ╚═╝    ╚═════╝  ╚═════╝ ╚═╝     ╚═════╝ ╚═╝  ╚═╝   ╚═╝   ╚══════╝╚═╝  ╚═╝

  Plan repo changes with an LLM, preview them, apply them with backups.
`

func main() {
	root := &cobra.Command{
		Use:   "autoupdater",
		Short: "autoupdater: LLM-assisted patch planner for local repos",
		Long:  banner,
	}
	root.AddCommand(serveCommand(), runCommand())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ─────────────────────────────────────────────────────────────────────────
// serve
// ─────────────────────────────────────────────────────────────────────────

func serveCommand() *cobra.Command {
	var (
		repo       string
		host       string
		port       int
		model      string
		adminToken string
		cleanGit   bool
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the autoupdater web UI and API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(repo)
			if err != nil {
				return err
			}
			// Flags beat the yaml file and the environment.
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("model") {
				cfg.Model = model
			}
			if cmd.Flags().Changed("admin-token") {
				cfg.AdminToken = adminToken
			}
			if cmd.Flags().Changed("require-clean-git") {
				cfg.RequireCleanGit = cleanGit
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cfg, debug)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&repo, "repo", "r", ".", "Target repository root")
	f.StringVar(&host, "host", "127.0.0.1", "Bind address")
	f.IntVarP(&port, "port", "p", 8787, "HTTP port")
	f.StringVarP(&model, "model", "m", "", "Planner model name (e.g. gpt-4o-mini)")
	f.StringVar(&adminToken, "admin-token", "", "Require this token on every API request")
	f.BoolVar(&cleanGit, "require-clean-git", false, "Refuse to apply patches on a dirty working tree")
	f.BoolVar(&debug, "debug", false, "Verbose logging")
	return cmd
}

func runServe(cfg *config.Config, debug bool) error {
	fmt.Print(banner)

	logger, err := newLogger(debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	root, err := cfg.AbsRepoRoot()
	if err != nil {
		return err
	}
	fmt.Printf("Repo:  %s\n", root)
	fmt.Printf("Model: %s\n", cfg.Model)
	fmt.Printf("Host:  %s\n\n", sysinfo.Summary())

	client := llm.NewClient(cfg.APIKey)

	// Non-fatal: the key may be added later via config; planning will fail
	// with a clear message until then.
	if err := client.Ping(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: planner API not reachable (%v); /api/plan will fail until fixed\n", err)
	}

	mc := metrics.NewCollector()
	srv, err := api.NewServer(cfg, logger, client, mc)
	if err != nil {
		return err
	}
	return srv.Run(cfg.Addr())
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// ─────────────────────────────────────────────────────────────────────────
// run
// ─────────────────────────────────────────────────────────────────────────

func runCommand() *cobra.Command {
	var (
		dir         string
		host        string
		port        string
		serverCmd   string
		noCache     bool
		skipInstall bool
		pause       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Bootstrap a Python project and launch its dev server",
		Long: `Prepare the target project's virtualenv, install its pinned
dependencies, and launch its server in the foreground. Re-running is safe:
the virtualenv and pip cache are reused.`,
		Run: func(cmd *cobra.Command, args []string) {
			b := bootstrap.New(dir)
			b.Host = host
			b.Port = port
			b.NoCache = noCache
			b.SkipInstall = skipInstall
			if serverCmd != "" {
				b.ServerCmd = serverCmd
			}
			err := b.Run(cmd.Context())
			if code := bootstrap.ExitCode(err); code != 0 {
				if pause {
					b.PauseForAck()
				}
				os.Exit(code)
			}
		},
	}

	f := cmd.Flags()
	f.StringVarP(&dir, "dir", "d", ".", "Project directory to bootstrap")
	f.StringVar(&host, "host", "", "Server bind address (default: HOST env or "+bootstrap.DefaultHost+")")
	f.StringVar(&port, "port", "", "Server port (default: PORT env or "+bootstrap.DefaultPort+")")
	f.StringVar(&serverCmd, "server-cmd", "", `Launch command (default: "`+bootstrap.DefaultServerCmd+`")`)
	f.BoolVar(&noCache, "no-cache", false, "Skip the pip download cache")
	f.BoolVar(&skipInstall, "skip-install", false, "Skip pip upgrade and dependency install")
	f.BoolVar(&pause, "pause", false, "On failure, wait for Enter before exiting (interactive consoles)")
	return cmd
}

// Command tilemerge starts the tile merge puzzle server.
//
// Commands:
//  1. "serve" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "simulate" – plays games with the advisor and prints score statistics
//  4. "variants" – lists the variant files in the config directory
//
// Every flag can also be set through the environment (see --help), and a
// .env file in the working directory is loaded first. Optional ngrok
// tunneling gives easy external access during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/mcp-training/tilemerge/api"
	"github.com/wricardo/mcp-training/tilemerge/game/autoplay"
	"github.com/wricardo/mcp-training/tilemerge/game/config"
	"github.com/wricardo/mcp-training/tilemerge/game/leaderboard"
	"github.com/wricardo/mcp-training/tilemerge/game/service"
	"github.com/wricardo/mcp-training/tilemerge/game/session"
	"github.com/wricardo/mcp-training/tilemerge/notify"
	"github.com/wricardo/mcp-training/tilemerge/transport/mcp"
	"github.com/wricardo/mcp-training/tilemerge/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Tile Merge Server"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("Exited with error")
	}
}

// newApp builds the command tree. Root flags are persistent, so every
// command sees them.
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "tilemerge",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "trace, debug, info, warn or error", Sources: cli.EnvVars("LOG_LEVEL")},
			&cli.BoolFlag{Name: "debug", Usage: "shorthand for --log-level debug", Sources: cli.EnvVars("DEBUG")},
			&cli.BoolFlag{Name: "pretty", Usage: "human-friendly console logs", Sources: cli.EnvVars("LOG_PRETTY")},
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "directory containing variant files", Sources: cli.EnvVars("CONFIG_DIR")},
			&cli.StringFlag{Name: "sessions-dir", Value: "sessions", Usage: "directory for persisted sessions (empty keeps them in memory)", Sources: cli.EnvVars("SESSIONS_DIR")},
			&cli.StringFlag{Name: "leaderboard-db", Value: "leaderboard.db", Usage: "SQLite leaderboard file (empty disables it)", Sources: cli.EnvVars("LEADERBOARD_DB")},
			&cli.StringFlag{Name: "webhook-url", Usage: "chat webhook for site events and finished games", Sources: cli.EnvVars("DISCORD_WEBHOOK_URL")},
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "static-dir", Value: "./static/", Usage: "directory served at / (empty disables it)", Sources: cli.EnvVars("STATIC_DIR")},
			&cli.DurationFlag{Name: "session-ttl", Value: 24 * time.Hour, Usage: "drop sessions idle for longer than this", Sources: cli.EnvVars("SESSION_TTL")},
			&cli.BoolFlag{Name: "ngrok", Usage: "enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, setupLogging(cmd.String("log-level"), cmd.Bool("debug"), cmd.Bool("pretty"))
		},
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run HTTP server with API, WebSocket, and MCP endpoint (default)",
				Action: runServe,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run MCP stdio server, reusing a running API server when there is one",
				Action:  runStdioMCP,
			},
			{
				Name:   "simulate",
				Usage:  "Play games with the advisor and print score statistics",
				Action: runSimulate,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "variant", Usage: "variant to play (default variant when empty)"},
					&cli.IntFlag{Name: "games", Value: 100, Usage: "number of games"},
					&cli.IntFlag{Name: "workers", Usage: "parallel games (defaults to GOMAXPROCS)"},
					&cli.IntFlag{Name: "max-moves", Value: autoplay.DefaultMaxMoves, Usage: "move cap per game"},
					&cli.Int64Flag{Name: "seed", Usage: "random seed for reproducible runs (0 is unseeded)"},
					&cli.BoolFlag{Name: "json", Usage: "print the statistics as JSON"},
				},
			},
			{
				Name:   "variants",
				Usage:  "List the variant files in the config directory",
				Action: runVariants,
			},
		},
	}
}

// setupLogging configures the global zerolog logger
func setupLogging(level string, debug, pretty bool) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if debug {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return nil
}

// serviceOptions selects the backing stores for the game service
type serviceOptions struct {
	ConfigDir     string
	SessionsDir   string
	LeaderboardDB string
	WebhookURL    string
}

func serviceOptionsFrom(cmd *cli.Command) serviceOptions {
	return serviceOptions{
		ConfigDir:     cmd.String("config-dir"),
		SessionsDir:   cmd.String("sessions-dir"),
		LeaderboardDB: cmd.String("leaderboard-db"),
		WebhookURL:    cmd.String("webhook-url"),
	}
}

// services bundles the game service with the stores the background routines need
type services struct {
	game        service.GameService
	sessions    *session.Manager
	persistence *session.FilePersistence
	scores      *leaderboard.Store
}

func (s *services) Close() {
	if s.sessions != nil {
		if err := s.sessions.SaveAllSessions(); err != nil {
			log.Warn().Err(err).Msg("Failed to save sessions on shutdown")
		}
	}
	if s.scores != nil {
		if err := s.scores.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close leaderboard")
		}
	}
}

// initializeServices wires session/config managers, the leaderboard, the
// webhook notifier and the game service.
func initializeServices(ctx context.Context, opts serviceOptions) (*services, error) {
	// Config manager first, persistence needs it
	configManager, err := config.NewManager(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	svc := &services{}
	if opts.SessionsDir != "" {
		svc.persistence, err = session.NewFilePersistence(opts.SessionsDir, configManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create session persistence: %w", err)
		}
		svc.sessions = session.NewManagerWithPersistence(svc.persistence)

		if err := svc.sessions.LoadPersistedSessions(); err != nil {
			log.Warn().Err(err).Msg("Failed to load persisted sessions")
		}
	} else {
		svc.sessions = session.NewManager()
	}

	var serviceOpts []service.Option
	if opts.LeaderboardDB != "" {
		svc.scores, err = leaderboard.Open(ctx, opts.LeaderboardDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open leaderboard: %w", err)
		}
		serviceOpts = append(serviceOpts, service.WithScoreRecorder(svc.scores))
	}
	if opts.WebhookURL != "" {
		serviceOpts = append(serviceOpts, service.WithNotifier(notify.NewWebhookNotifier(opts.WebhookURL)))
	} else {
		log.Debug().Msg("No webhook URL configured, notifications disabled")
	}

	svc.game = service.NewGameService(svc.sessions, configManager, serviceOpts...)
	return svc, nil
}

// newRootHandler mounts the API at / and answers JSON-RPC messages on /mcp
func newRootHandler(apiServer http.Handler, mcpClient *mcp.Client) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", apiServer)

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			log.Warn().Err(err).Msg("Failed to write MCP response")
		}
	})

	return mux
}

// runServe starts the HTTP server with REST API, WebSocket hub, and the /mcp
// endpoint. Background routines and the optional ngrok tunnel share one
// errgroup and stop together on SIGINT/SIGTERM.
func runServe(ctx context.Context, cmd *cli.Command) error {
	svc, err := initializeServices(ctx, serviceOptionsFrom(cmd))
	if err != nil {
		return err
	}
	defer svc.Close()

	hub := websocket.NewHub()
	apiServer := api.NewServer(svc.game, hub, api.WithStaticDir(cmd.String("static-dir")))

	addr := net.JoinHostPort(cmd.String("host"), strconv.Itoa(cmd.Int("port")))
	mcpClient := mcp.NewClient("http://"+addr, Version)
	handler := newRootHandler(apiServer, mcpClient)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ttl := cmd.Duration("session-ttl")
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		log.Info().
			Str("addr", addr).
			Str("api", fmt.Sprintf("http://%s/api", addr)).
			Str("ws", fmt.Sprintf("ws://%s/ws?session=<session_id>", addr)).
			Str("mcp", fmt.Sprintf("http://%s/mcp", addr)).
			Msg("HTTP server listening")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		sessionCleanupRoutine(ctx, svc.sessions, time.Hour, ttl)
		return nil
	})

	if svc.persistence != nil {
		g.Go(func() error {
			filesystemSyncRoutine(ctx, svc.sessions, svc.persistence, 5*time.Second)
			return nil
		})
	}

	if cmd.Bool("ngrok") {
		g.Go(func() error {
			runNgrok(ctx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), handler)
			return nil
		})
	}

	err = g.Wait()
	log.Info().Msg("Server stopped")
	return err
}

// runNgrok serves handler through an ngrok tunnel until ctx is cancelled.
// Tunnel failures are logged; the local server keeps running.
func runNgrok(ctx context.Context, authToken, domain string, handler http.Handler) {
	if authToken == "" {
		log.Warn().Msg("Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Info().Msg("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.Info().Str("domain", domain).Msg("Using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Error().Err(err).Msg("Failed to start ngrok tunnel")
		return
	}

	ngrokURL := tun.URL()
	log.Info().
		Str("url", ngrokURL).
		Str("api", ngrokURL+"/api").
		Str("ws", ngrokURL+"/ws?session=<session_id>").
		Str("mcp", ngrokURL+"/mcp").
		Msg("🚀 Ngrok tunnel established")

	srv := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Ngrok server error")
	}
	log.Info().Msg("Ngrok tunnel closed")
}

// sessionCleanupRoutine periodically removes sessions that have not been
// accessed within maxAge.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, every, maxAge time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(maxAge); removed > 0 {
				log.Info().Int("removed", removed).Msg("Cleaned up expired sessions")
			}
		}
	}
}

// filesystemSyncRoutine drops in-memory sessions whose files were deleted
// from the sessions directory.
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruneOrphans(manager, persistence)
		}
	}
}

func pruneOrphans(manager *session.Manager, persistence session.SessionPersistence) int {
	pruned := 0
	for _, s := range manager.List() {
		if persistence.Exists(s.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(s.ID); err == nil {
			pruned++
			log.Debug().Str("session", s.ID).Msg("Pruned session from memory (file deleted)")
		}
	}

	if pruned > 0 {
		log.Info().Int("pruned", pruned).Msg("Filesystem sync: pruned orphaned sessions")
	}
	return pruned
}

// runStdioMCP runs an MCP stdio server. It reuses an API server already
// listening on host:port; otherwise it starts an internal one on a random
// loopback port.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	externalURL := "http://" + net.JoinHostPort(cmd.String("host"), strconv.Itoa(cmd.Int("port")))
	baseURL := externalURL

	log.Info().Str("url", externalURL).Msg("Checking for external API server")
	if !apiAvailable(ctx, externalURL) {
		svc, err := initializeServices(ctx, serviceOptionsFrom(cmd))
		if err != nil {
			return err
		}
		defer svc.Close()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		hub := websocket.NewHub()
		hubCtx, stopHub := context.WithCancel(ctx)
		defer stopHub()
		go hub.Run(hubCtx)

		httpServer := &http.Server{Handler: api.NewServer(svc.game, hub, api.WithStaticDir(""))}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		log.Info().Str("url", baseURL).Msg("No external API server found, started internal HTTP server")
	} else {
		log.Info().Str("url", externalURL).Msg("External API server found, using it for MCP")
	}

	mcpClient := mcp.NewClient(baseURL, Version)
	log.Info().Msg("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runSimulate plays a batch of games with the advisor
func runSimulate(ctx context.Context, cmd *cli.Command) error {
	configManager, err := config.NewManager(cmd.String("config-dir"))
	if err != nil {
		return fmt.Errorf("failed to create config manager: %w", err)
	}

	v := configManager.GetDefault()
	if name := cmd.String("variant"); name != "" {
		if v, err = configManager.LoadConfig(name); err != nil {
			return err
		}
	}

	start := time.Now()
	stats, err := autoplay.Run(ctx, v, autoplay.Config{
		Games:    cmd.Int("games"),
		Workers:  cmd.Int("workers"),
		MaxMoves: cmd.Int("max-moves"),
		Seed:     cmd.Int64("seed"),
	})
	if err != nil {
		return err
	}
	log.Debug().Dur("elapsed", time.Since(start)).Int("games", stats.Games).Msg("Simulation finished")

	out := cmd.Root().Writer
	if cmd.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Fprintf(out, "Variant:      %s\n", stats.Variant)
	fmt.Fprintf(out, "Games:        %d\n", stats.Games)
	fmt.Fprintf(out, "Mean score:   %.1f\n", stats.MeanScore)
	fmt.Fprintf(out, "Best score:   %d\n", stats.MaxScore)
	fmt.Fprintf(out, "Worst score:  %d\n", stats.MinScore)
	fmt.Fprintf(out, "Mean moves:   %.1f\n", stats.MeanMoves)
	fmt.Fprintf(out, "Target (%d) reached: %.1f%%\n", v.TargetTile, stats.TargetRate*100)
	fmt.Fprintln(out, "Best tile distribution:")
	for _, tile := range stats.TileLevels() {
		fmt.Fprintf(out, "  %6d  %d\n", tile, stats.BestTiles[tile])
	}
	return nil
}

// runVariants prints the variants the server would offer
func runVariants(ctx context.Context, cmd *cli.Command) error {
	configManager, err := config.NewManager(cmd.String("config-dir"))
	if err != nil {
		return fmt.Errorf("failed to create config manager: %w", err)
	}

	configs, err := configManager.ListConfigs()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tGRID\tTARGET\tDESCRIPTION")
	for _, c := range configs {
		fmt.Fprintf(tw, "%s\t%s\t%dx%d\t%d\t%s\n", c.ConfigID, c.Name, c.GridSize, c.GridSize, c.TargetTile, c.Description)
	}
	fmt.Fprintf(tw, "\nDefault: %s\n", configManager.GetDefault().Name)
	return tw.Flush()
}

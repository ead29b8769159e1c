package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/objectmodel/internal/cli/config"
	"github.com/conduit-lang/objectmodel/internal/web/feed"
	"github.com/conduit-lang/objectmodel/runtime/settings"
)

const (
	tokenTTL     = 24 * time.Hour
	syncInterval = 5 * time.Second
)

type serveOptions struct {
	host         string
	port         int
	count        int
	persist      bool
	category     string
	tokenSubject string
}

// feedRuntime is a sample list published by the websocket feed, with its
// item properties optionally persisted in the settings store.
type feedRuntime struct {
	model    *sampleModel
	server   *feed.Server
	auth     *feed.Authenticator
	settings *settings.Settings
}

func newFeedRuntime(ctx context.Context, cfg *config.Config, opts serveOptions, logger *zap.Logger) (*feedRuntime, error) {
	m, err := newSampleModel(cfg, opts.count, logger)
	if err != nil {
		return nil, err
	}
	rt := &feedRuntime{model: m}

	feedOpts := []feed.Option{feed.WithLogger(logger), feed.WithProxy(m.proxy)}
	if cfg.Server.JWTSecret != "" {
		rt.auth = feed.NewAuthenticator(cfg.Server.JWTSecret, tokenTTL)
		feedOpts = append(feedOpts, feed.WithAuth(rt.auth))
	}
	rt.server = feed.New(m.list, feedOpts...)

	if opts.persist {
		store, err := settings.Open(ctx, cfg.Settings)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("failed to open settings: %w", err)
		}
		s := settings.New(store,
			settings.WithLoop(m.loop),
			settings.WithLogger(logger),
			settings.WithCategory(opts.category))
		rt.settings = s
		for _, item := range m.items {
			l, err := settings.NewListener(m.loop, item, item.GetObjectName())
			if err != nil {
				rt.close()
				return nil, fmt.Errorf("failed to watch %s: %w", item.GetObjectName(), err)
			}
			s.AddListener(l)
		}
	}
	return rt, nil
}

// run serves addr until ctx is done.
func (rt *feedRuntime) run(ctx context.Context, addr string, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		rt.model.loop.Run(ctx)
	}()
	defer func() {
		cancel()
		<-loopDone
	}()

	if rt.settings != nil {
		if err := rt.settings.Watch(ctx); err != nil {
			return err
		}
		go rt.syncSettings(ctx, logger)
	}

	return rt.server.ListenAndServe(ctx, addr)
}

func (rt *feedRuntime) syncSettings(ctx context.Context, logger *zap.Logger) {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rt.settings.Sync(ctx); err != nil {
				logger.Warn("Failed to sync settings", zap.Error(err))
			}
		}
	}
}

func (rt *feedRuntime) close() error {
	var err error
	if rt.server != nil {
		rt.server.Close()
	}
	if rt.settings != nil {
		err = rt.settings.Close()
	}
	rt.model.close()
	return err
}

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a live sample list over HTTP and websocket",
		Long: `Start the feed server over a list of sample items.

Routes:
  GET /roles      role catalog of the item type
  GET /rows       snapshot of the sorted and filtered rows
  GET /rows/{row} one row
  GET /ws         websocket with change notifications and set, sort and
                  filter requests

With server.jwt_secret configured every route requires a bearer token.
With --persist item properties are loaded from and saved to the configured
settings backend.`,
		Example: `  omctl serve
  omctl serve --port 9000 --count 20
  omctl serve --persist --token-subject alice`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = opts.host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = opts.port
			}

			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newFeedRuntime(ctx, cfg, opts, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.close(); err != nil {
					logger.Warn("Failed to close settings", zap.Error(err))
				}
			}()

			out := cmd.OutOrStdout()
			successColor := color.New(color.FgGreen, color.Bold)
			successColor.Fprintf(out, "Serving %d items on http://%s\n", opts.count, cfg.Server.Addr())
			if rt.auth != nil && opts.tokenSubject != "" {
				token, err := rt.auth.Issue(opts.tokenSubject)
				if err != nil {
					return fmt.Errorf("failed to issue token: %w", err)
				}
				fmt.Fprintf(out, "Token for %s: %s\n", opts.tokenSubject, token)
			}

			return rt.run(ctx, cfg.Server.Addr(), logger)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "localhost", "Listen host (overrides server.host)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 8080, "Listen port (overrides server.port)")
	cmd.Flags().IntVarP(&opts.count, "count", "n", 5, "Number of sample items")
	cmd.Flags().BoolVar(&opts.persist, "persist", false, "Persist item properties in the settings backend")
	cmd.Flags().StringVar(&opts.category, "category", "items", "Settings group of persisted items")
	cmd.Flags().StringVar(&opts.tokenSubject, "token-subject", "", "Print a bearer token for this subject at startup")

	return cmd
}

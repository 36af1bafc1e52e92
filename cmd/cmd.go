package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phoenixd-dashboard/dashboard/config"
	"github.com/phoenixd-dashboard/dashboard/infra/logger"
	"github.com/phoenixd-dashboard/dashboard/internal/listener"
	"github.com/phoenixd-dashboard/dashboard/internal/ui"
	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const (
	ServiceName = "phoenixd-dashboard"

	stopTimeout = 5 * time.Second
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Real-time payment notification relay for a phoenixd dashboard",
		Version: fmt.Sprintf("%s (%s, %s, %s) %s", version, commit, branch, commitDate, buildTimestamp),
		Commands: []*cli.Command{
			serverCmd(),
			watchCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the relay and the dashboard HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config_file",
				Usage:   "Path to the configuration file",
				EnvVars: []string{config.EnvPrefix + "_CONFIG_FILE"},
			},
			&cli.StringFlag{Name: config.FlagServerAddr, Usage: "listen address, e.g. :3000"},
			&cli.StringFlag{Name: config.FlagPhoenixdURL, Usage: "phoenixd REST base URL"},
			&cli.StringFlag{Name: config.FlagLogLevel, Usage: "debug, info, warn or error"},
		},
		Action: func(c *cli.Context) error {
			flags, err := overrides(c)
			if err != nil {
				return err
			}
			loader, err := config.NewLoader(c.String("config_file"), flags)
			if err != nil {
				return err
			}
			cfg, err := loader.Load()
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Log)
			if err != nil {
				return err
			}
			defer log.Close()
			slog.SetDefault(log.Logger)

			// [HOT_RELOAD] only the log level is applied without a restart
			loader.Watch(func(next *config.Config, err error) {
				if err != nil {
					log.Warn("[CONFIG] reload rejected", slog.Any("err", err))
					return
				}
				if err := logger.SetLevel(log.Level, next.Log.Level); err != nil {
					log.Warn("[CONFIG] bad log level", slog.Any("err", err))
					return
				}
				log.Info("[CONFIG] reloaded", slog.String("log_level", log.Level.Level().String()))
			})

			app := NewApp(cfg, log.Logger)
			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			log.Info("Shutting down...")
			return app.Stop(context.Background())
		},
	}
}

// overrides copies the explicitly set CLI flags into the pflag set the
// config loader binds, so they win over file and environment.
func overrides(c *cli.Context) (*pflag.FlagSet, error) {
	fs := config.FlagSet()
	for _, name := range []string{config.FlagServerAddr, config.FlagPhoenixdURL, config.FlagLogLevel} {
		if !c.IsSet(name) {
			continue
		}
		if err := fs.Set(name, c.String(name)); err != nil {
			return nil, fmt.Errorf("flag %s: %w", name, err)
		}
	}
	return fs, nil
}

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:    "watch",
		Aliases: []string{"w"},
		Usage:   "Follow the relay's live events in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "url",
				Value: "ws://127.0.0.1:3000/ws",
				Usage: "relay websocket endpoint",
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "bearer token when the relay requires one",
				EnvVars: []string{config.EnvPrefix + "_SERVER_WS_TOKEN"},
			},
			&cli.BoolFlag{
				Name:  "plain",
				Usage: "print one line per event instead of the full-screen view",
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			type view interface {
				Run(ctx context.Context, feed *ui.Feed) error
			}
			var (
				v   view
				out io.Writer = io.Discard
			)
			if c.Bool("plain") {
				v = ui.NewPlain(os.Stdout)
				out = os.Stderr
			} else {
				v = ui.NewDashboard()
			}
			log := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelWarn}))

			feed := ui.NewFeed()
			l := listener.New(c.String("url"), listener.Handlers{
				OnConnect:    feed.Connected,
				OnDisconnect: feed.Disconnected,
				OnEvent:      feed.Event,
			}, listener.WithToken(c.String("token")), listener.WithLogger(log))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := l.Start(gctx); err != nil {
					return err
				}
				<-gctx.Done()
				stopCtx, stop := context.WithTimeout(context.Background(), stopTimeout)
				defer stop()
				return l.Stop(stopCtx)
			})
			g.Go(func() error {
				err := v.Run(gctx, feed)
				// the view returning means the user is done watching
				cancel()
				return err
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

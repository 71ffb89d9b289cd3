package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/programme-lv/judgehost/internal/cache"
	"github.com/programme-lv/judgehost/internal/environment"
	"github.com/programme-lv/judgehost/internal/judge"
	"github.com/programme-lv/judgehost/internal/keylock"
	"github.com/programme-lv/judgehost/internal/report"
	"github.com/programme-lv/judgehost/internal/server"
	"github.com/programme-lv/judgehost/internal/session"
	"github.com/programme-lv/judgehost/internal/syncer"
)

func main() {
	cmd := &cli.Command{
		Name:  "judged",
		Usage: "judge host daemon: syncs problem test data and serves judge tasks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "hosts",
				Usage: "path to the hosts TOML file",
			},
			&cli.StringFlag{
				Name:  "cache-dir",
				Usage: "test-data cache root directory",
			},
			&cli.BoolFlag{
				Name:  "performance",
				Usage: "batch per-case results into the terminal message",
			},
			&cli.BoolFlag{
				Name:  "echo",
				Usage: "pretty-print outgoing results to the terminal",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "debug, info, warn or error",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "judged: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel(cmd.String("log-level")),
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	env := environment.ReadEnvConfig()
	if v := cmd.String("cache-dir"); v != "" {
		env.CacheDir = v
	}
	if v := cmd.String("hosts"); v != "" {
		env.HostsFile = v
	}
	if cmd.Bool("performance") {
		env.Performance = true
	}

	hosts, err := environment.ReadHostsFile(env.HostsFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := cache.New(env.CacheDir)
	locks := keylock.New()

	logger.Info("starting judge host",
		slog.String("cache_dir", env.CacheDir),
		slog.Int("hosts", len(hosts.Hosts)),
		slog.Bool("performance", env.Performance))

	errs, ctx := errgroup.WithContext(ctx)
	for name, hc := range hosts.Hosts {
		client, err := server.NewClient(hc.Server, hc.Uname, hc.Password, logger)
		if err != nil {
			return fmt.Errorf("host %s: %w", name, err)
		}

		sy := syncer.New(store, client, locks, logger)
		j := judge.New(name, sy, runner(), hc.Langs, logger)

		s := session.New(session.Config{
			HostName:      name,
			Prio:          hc.Prio,
			Concurrency:   hc.Concurrency,
			Langs:         hc.Langs,
			Performance:   env.Performance,
			DisableStatus: hc.DisableStatus,
			ScrubPrefixes: []string{env.CacheDir + string(os.PathSeparator), env.CacheDir},
			Probe:         probeCompilers,
		}, session.TCPDialer(hc.Conn), j, logger)
		if cmd.Bool("echo") {
			s.SetEcho(report.NewTerminalSender())
		}

		errs.Go(func() error {
			return s.Run(ctx)
		})
	}

	err = errs.Wait()
	if ctx.Err() != nil {
		logger.Info("judge host stopped")
		return nil
	}
	return err
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

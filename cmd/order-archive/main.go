package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/xenking/order-relay/internal/archive"
)

func main() {
	var (
		dir       string
		out       string
		olderThan time.Duration
		list      string
	)

	flag.StringVar(&dir, "dir", "pedidos", "orders directory")
	flag.StringVar(&out, "out", archive.DefaultName(time.Now()), "archive file to write")
	flag.DurationVar(&olderThan, "older-than", 0, "only archive documents older than this (e.g. 720h)")
	flag.StringVar(&list, "list", "", "print the contents of an existing archive and exit")
	flag.Parse()

	if list != "" {
		entries, err := archive.List(list)
		if err != nil {
			slog.Error("list failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		for _, e := range entries {
			slog.Info("document",
				slog.String("name", e.Name),
				slog.Int64("size", e.Size),
				slog.Time("modified", e.ModTime),
			)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	entries, err := archive.Create(ctx, archive.Options{
		Dir:       dir,
		Out:       out,
		OlderThan: olderThan,
	})
	if err != nil {
		slog.Error("archive failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("archive written",
		slog.String("out", out),
		slog.Int("documents", len(entries)),
	)
}

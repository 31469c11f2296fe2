/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"mockupstudio/internal/backend"
	"mockupstudio/internal/config"
	applog "mockupstudio/internal/log"
	"mockupstudio/internal/storage"
	"mockupstudio/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	envLoaded := godotenv.Load() == nil

	fs := flag.NewFlagSet("mockupd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	listen := fs.String("listen", "", "address to listen on (overrides server.addr)")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		_, _ = fmt.Fprintln(stderr, version.String())
		return 0
	}

	cfg, _, cfgErr := config.Load()
	applog.Init(cfg.LogOptions())
	l := applog.WithComponent("mockupd")
	if !envLoaded {
		l.Debug("no .env file found")
	}
	if cfgErr != nil {
		l.Warn("config file ignored", slog.Any("err", cfgErr))
	}
	if *listen != "" {
		cfg.Server.Addr = *listen
	}

	store, err := storage.Open(ctx, cfg.StorageOptions(), applog.WithComponent("storage"))
	if err != nil {
		l.Error("open storage", slog.Any("err", err))
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			l.Warn("close storage", slog.Any("err", err))
		}
	}()

	l.Info("starting", slog.String("version", version.String()), slog.String("storage", cfg.Storage.Kind))
	srv := backend.NewServer(store, cfg.ServerConfig(), applog.WithComponent("backend"))
	if err := srv.Run(ctx); err != nil {
		l.Error("server stopped", slog.Any("err", err))
		return 1
	}
	l.Info("stopped")
	return 0
}

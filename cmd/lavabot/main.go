package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sonroyaalmerol/lavabot/internal/audionode"
	"github.com/sonroyaalmerol/lavabot/internal/autocomplete"
	"github.com/sonroyaalmerol/lavabot/internal/config"
	"github.com/sonroyaalmerol/lavabot/internal/handlers"
	"github.com/sonroyaalmerol/lavabot/internal/logging"
	"github.com/sonroyaalmerol/lavabot/internal/repository"
	"github.com/sonroyaalmerol/lavabot/internal/resolve"
	"github.com/sonroyaalmerol/lavabot/internal/sponsorblock"
	"github.com/sonroyaalmerol/lavabot/internal/spotify"
)

func main() {
	logging.Init(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	db, err := repository.OpenDB(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	repo := repository.NewRepo(db)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	node := audionode.New(audionode.Config{
		Name:     cfg.Lavalink.Name,
		Host:     cfg.Lavalink.Host,
		Port:     cfg.Lavalink.Port,
		Password: cfg.Lavalink.Password,
		Secure:   cfg.Lavalink.Secure,
	})

	var (
		source   resolve.SpotifySource
		searcher autocomplete.SpotifySearcher
		trimmer  resolve.Trimmer
	)
	if cfg.SpotifyEnabled() {
		sp := spotify.NewClientCredentials(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret)
		source, searcher = sp, sp
	} else {
		slog.Info("spotify credentials not set, spotify links disabled")
	}
	if cfg.EnableSponsorBlock {
		trimmer = sponsorblock.NewApplier(sponsorblock.NewClient(""), cfg.SponsorBlockTimeoutMin)
	}

	bot, err := handlers.NewBot(cfg, handlers.Options{
		Node:      node,
		Resolver:  resolve.New(node, source, trimmer),
		Settings:  repo,
		Playlists: repository.NewPlaylistService(repo),
		Suggester: autocomplete.New("", searcher),
	})
	if err != nil {
		log.Fatal(err)
	}

	if err := bot.Run(ctx); err != nil {
		log.Fatal(err)
	}
	slog.Info("shut down cleanly")
}

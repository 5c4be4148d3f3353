package main

import (
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/uplynxed/archivemux/archive"
	"github.com/uplynxed/archivemux/config"
	"github.com/uplynxed/archivemux/favorites"
	"github.com/uplynxed/archivemux/media"
	"github.com/uplynxed/archivemux/normalizer"
	"github.com/uplynxed/archivemux/server"
	"github.com/uplynxed/archivemux/server/middlewares"
	"github.com/uplynxed/archivemux/store"
	"github.com/uplynxed/archivemux/utils/dotenv"
	. "github.com/uplynxed/archivemux/utils/flag"
	. "github.com/uplynxed/archivemux/utils/log"
	"github.com/uplynxed/archivemux/view"
)

func main() {
	ParseFlags()

	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}

	cfg, err := config.Load(ConfigPath)
	if err != nil {
		Log.Fatal("fail to load config: ", err)
	}

	snapshot, err := os.ReadFile(SnapshotPath)
	if err != nil {
		Log.Fatal("fail to read snapshot file: ", err)
	}

	n := normalizer.New()
	// A snapshot that fails to parse is the one unrecoverable input.
	if err := n.AddSnapshot(snapshot); err != nil {
		Log.Fatal("fail to parse snapshot: ", err)
	}

	built := archive.Build(n, cfg)
	kv := store.FromEnv()

	favs := favorites.New(kv, built)
	if err := favs.Load(); err != nil {
		Log.Error("fail to load favorites, starting empty: ", err)
	}
	if err := favs.Seed(n.SeedFavorites); err != nil {
		Log.Error("fail to seed favorites from snapshot: ", err)
	}

	resolver := media.NewResolver(kv)
	if err := resolver.Load(); err != nil {
		Log.Error("fail to load media replacements, starting empty: ", err)
	}

	handler := &server.Handler{
		Archive:   built,
		Engine:    view.NewEngine(built, cfg),
		Favorites: favs,
		Resolver:  resolver,
	}

	// Default with the Logger and Recovery middleware already attached
	router := gin.Default()
	router.Use(cors.Default())
	router.Use(middlewares.RequestID())
	handler.RegisterRoutes(router)

	Log.Info("archive server starts up")
	router.Run(":8080")
}

package main

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
)

func makeId(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// Reloads the catalog on SIGHUP, exits on SIGINT / SIGTERM.
// A failed reload keeps the previous snapshot in place.
func handleSignals(store *CatalogStore) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	for sig := range signals {
		if sig == syscall.SIGHUP {
			if err := store.Load(); err != nil {
				LogWarning("Catalog reload failed, keeping the previous catalog: " + err.Error())
			} else {
				LogInfo("Catalog reloaded")
				metricCatalogReloads.Inc()
			}
			continue
		}

		LogInfo("Interrupted")
		os.Exit(0)
	}
}

func main() {
	godotenv.Load()

	InitLog()

	LogInfo("Classroom Media Gateway (Version 1.0.0)")

	videoPath := os.Getenv("VIDEO_PATH")
	if videoPath == "" {
		videoPath = "./public/videos"
	}

	catalogFile := os.Getenv("CATALOG_FILE")
	if catalogFile == "" {
		catalogFile = filepath.Join(videoPath, "index.json")
	}

	// The catalog is a startup invariant: refuse to serve without it
	store := NewCatalogStore(catalogFile)
	if err := store.Load(); err != nil {
		LogFatal(err)
	}

	LogInfo("Loaded catalog from " + catalogFile + " (" + strconv.Itoa(len(store.Snapshot().Classrooms)) + " classrooms)")

	gateway := MediaGateway{
		catalog:   store,
		sessions:  NewSessionStore(),
		oauth:     loadOAuthConfig(),
		videoPath: videoPath,
	}

	gateway.init()

	go handleSignals(store)

	// Run
	gateway.run()
}

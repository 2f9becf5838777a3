// Command seed imports blogs, services and jobs from a JSON file through the
// same write path the API uses.
package main

import (
	"context"
	"os"
	"time"

	"github.com/alien2112/safelines-sub000/internal/config"
	"github.com/alien2112/safelines-sub000/internal/content/service"
	"github.com/alien2112/safelines-sub000/internal/database"
	"github.com/alien2112/safelines-sub000/pkg/logger"
	flag "github.com/spf13/pflag"
)

func main() {
	file := flag.StringP("file", "f", "seed.json", "seed file with blogs, services and jobs arrays")
	dryRun := flag.Bool("dry-run", false, "parse and validate without writing")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	f, err := os.Open(*file)
	if err != nil {
		logger.Fatalf("open seed file: %v", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn := database.NewConnector(cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	db, err := conn.Database(ctx, cfg.MongoDB.Database)
	if err != nil {
		logger.Fatalf("connect to MongoDB: %v", err)
	}
	defer func() { _ = conn.Disconnect(context.Background()) }()

	result, err := seed(ctx, service.NewMongoService(db), f, *dryRun)
	for name, s := range result {
		logger.Infof("%s: %d created, %d updated", name, s.Created, s.Updated)
	}
	if err != nil {
		logger.Errorf("seed failed: %v", err)
		os.Exit(1)
	}
}

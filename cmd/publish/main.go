// Command publish runs the scheduled-publish path for one post and exits.
// It is meant to be invoked by an external scheduler; a non-zero exit
// means "did not publish" and the post is left scheduled for manual retry.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/queue"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/service"
)

func main() {
	postID := flag.String("post", "", "id of the scheduled post to publish")
	flag.Parse()

	if *postID == "" {
		fmt.Fprintln(os.Stderr, "Usage: publish -post <post-id>")
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)

	storageService := service.NewStorageService(*cfg)
	graphClient := service.NewGraphClient(cfg.GraphAPIBaseURL, nil)
	scheduler := queue.NewAsynqScheduler(client, asynq.NewInspector(redisConn))
	publishService := service.NewPublishService(graphClient, storageService)
	driver := service.NewPublishDriver(postRepo, socialAccountRepo, publishService, graphClient, scheduler, cfg.SecretKey)

	if err := driver.PublishScheduled(context.Background(), *postID); err != nil {
		log.Printf("Failed to publish post %s: %v", *postID, err)
		os.Exit(1)
	}

	log.Printf("Post %s published", *postID)
}

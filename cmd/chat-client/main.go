package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iamnishu22/chatapp/internal/config"
	"github.com/iamnishu22/chatapp/internal/media"
	"github.com/iamnishu22/chatapp/internal/session"
	"github.com/iamnishu22/chatapp/internal/store"
	"github.com/iamnishu22/chatapp/internal/store/firestoredoc"
	"github.com/iamnishu22/chatapp/internal/store/memstore"
	"github.com/iamnishu22/chatapp/internal/store/redisstore"
	"github.com/iamnishu22/chatapp/pkg/logger"
)

func main() {
	// 1. Load configuration and logging
	cfg := config.LoadConfig()
	logger.InitDefault()
	defer logger.Sync()

	userID := os.Getenv("CHAT_USER_ID")
	if userID == "" {
		log.Fatal("CHAT_USER_ID environment variable is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Select the document store backend
	docStore, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}
	defer cleanup()

	logger.Info("Connected to document store", zap.String("backend", cfg.StoreBackend))

	// 3. Media uploader (optional; sends without attachments work without it)
	uploader, err := media.NewMinioUploader(
		cfg.MinIOEndpoint,
		cfg.MinIOAccessKey,
		cfg.MinIOSecretKey,
		cfg.MinIOBucket,
		cfg.Env != "development",
	)
	if err != nil {
		logger.Warn("Media uploads disabled", zap.Error(err))
	} else if err := uploader.EnsureBucket(ctx); err != nil {
		logger.Warn("Media bucket unavailable", zap.Error(err))
	}

	// 4. Start the session
	sess := session.New(docStore)
	if err := sess.Start(ctx, userID); err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	defer sess.Close()

	go func() {
		for snapshot := range sess.IndexEvents() {
			logger.Info("Chat list updated", zap.Int("visible_chats", len(snapshot.Entries)))
		}
	}()

	go func() {
		for notices := range sess.Notices.Watch() {
			for _, n := range notices {
				logger.Info("Notice", zap.String("level", string(n.Level)), zap.String("text", n.Text))
			}
		}
	}()

	// 5. Run until interrupted
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
}

func openStore(ctx context.Context, cfg *config.Config) (store.DocStore, func(), error) {
	switch cfg.StoreBackend {
	case "memory":
		return memstore.New(), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.GetRedisAddr()})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, err
		}
		return redisstore.New(client), func() { client.Close() }, nil
	default:
		fs, err := firestoredoc.New(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentials)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() { fs.Close() }, nil
	}
}

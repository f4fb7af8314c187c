// Command draftctl inspects and maintains persisted form drafts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brushworks-app/brushworks/internal/app"
	"github.com/brushworks-app/brushworks/internal/draft"
	"github.com/brushworks-app/brushworks/internal/platform/kv"
	"github.com/brushworks-app/brushworks/internal/shared"
	"github.com/brushworks-app/brushworks/jobs"
)

func main() {
	action := flag.String("action", "show", "show|discard|prune")
	form := flag.String("form", "quotation", "quotation|project|invoice")
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		_ = redisClient.Close()
	}()

	formType := shared.FormType(*form)
	if !formType.Valid() {
		logger.Error("unknown form type", slog.String("form", *form))
		os.Exit(1)
	}
	store := draft.NewStore(logger, kv.NewRedisFromClient(redisClient), cfg.DraftKeyPrefix, formType, cfg.DraftDebounce)

	switch *action {
	case "show":
		rec, err := store.LoadIfPresent(ctx)
		if err != nil {
			logger.Error("load draft", slog.Any("error", err))
			os.Exit(1)
		}
		if rec == nil {
			fmt.Printf("no draft for %s\n", formType)
			return
		}
		fmt.Printf("draft for %s saved at %s\n%s\n", formType, rec.SavedAt.Format(time.RFC3339), rec.Form)
	case "discard":
		if err := store.Discard(ctx); err != nil {
			logger.Error("discard draft", slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Printf("draft for %s discarded\n", formType)
	case "prune":
		pruner := jobs.NewDraftPruner(redisClient, logger)
		removed, err := pruner.Prune(ctx, cfg.DraftKeyPrefix, cfg.DraftRetention)
		if err != nil {
			logger.Error("prune drafts", slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Printf("removed %d stale draft(s)\n", removed)
	default:
		fmt.Fprintf(os.Stderr, "unknown action %q\n", *action)
		os.Exit(2)
	}
}

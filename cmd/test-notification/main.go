package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/cost-approval/internal/config"
	"github.com/garyjia/cost-approval/internal/container"
	"github.com/garyjia/cost-approval/internal/infrastructure/external/lark"
)

// Sends a Lark IM message without running the server. With -approval it
// renders the real reminder for that record from the configured database.

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	openID := flag.String("open-id", "", "recipient open_id (ou_...)")
	approvalID := flag.Int64("approval", 0, "send the reminder of this approval record instead")
	text := flag.String("text", "Test message from the cost approval service", "message text for -open-id")
	flag.Parse()

	cfg, err := config.Load(*configPath, ".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Lark.AppID == "" || cfg.Lark.AppSecret == "" {
		log.Fatal("lark.app_id and lark.app_secret must be set (LARK_APP_ID / LARK_APP_SECRET)")
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch {
	case *approvalID > 0:
		if err := sendReminder(ctx, cfg, *approvalID, logger); err != nil {
			log.Fatalf("Failed to send reminder: %v", err)
		}
		fmt.Printf("Reminder for approval %d sent\n", *approvalID)
	case *openID != "":
		client := lark.NewClient(lark.Config{
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
			Timeout:   cfg.Lark.APITimeout,
		}, logger)
		if err := lark.NewMessenger(client, logger).SendMessage(ctx, *openID, *text); err != nil {
			log.Fatalf("Failed to send message: %v", err)
		}
		fmt.Printf("Message sent to %s\n", *openID)
	default:
		fmt.Fprintln(os.Stderr, "usage: test-notification -open-id ou_xxx [-text ...] | -approval ID")
		os.Exit(2)
	}
}

func sendReminder(ctx context.Context, cfg *config.Config, approvalID int64, logger *zap.Logger) error {
	cc := cfg.ToContainerConfig()
	cc.Lark.Enabled = true
	cc.Worker.ReminderEnabled = false

	app, err := container.NewContainer(cc, logger)
	if err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer app.Close()

	return app.Services().Notification.SendReminder(ctx, approvalID)
}

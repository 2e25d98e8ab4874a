// The userbot command is the long-running listener: it connects to
// Telegram with the persisted session, watches incoming conversations and
// auto-replies when the operator stays silent past the response window.
// It is normally spawned by the control plane but also runs standalone.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/danhigham/autoresponder/internal/config"
	"github.com/danhigham/autoresponder/internal/domain"
	"github.com/danhigham/autoresponder/internal/responder"
	"github.com/danhigham/autoresponder/internal/telegram"
)

func main() {
	env := config.LoadListenerEnv()

	recordPath := os.Getenv("RECORD_PATH")
	if recordPath == "" {
		recordPath = "config.json"
	}
	records := config.NewRecordStore(recordPath)

	rec, err := records.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if !rec.Authenticated() && env.BotToken == "" {
		fmt.Fprintln(os.Stderr, "No session token persisted, authenticate first")
		os.Exit(1)
	}

	apiID, err := strconv.Atoi(firstNonEmpty(os.Getenv("T_API_ID"), rec.APIID))
	if err != nil {
		fmt.Fprintln(os.Stderr, "Invalid API ID")
		os.Exit(1)
	}
	apiHash := firstNonEmpty(os.Getenv("T_API_HASH"), rec.APIHash)

	logger := buildLogger(os.Getenv("USERBOT_LOG"))
	defer logger.Sync()

	// The client is assembled in two steps because the dispatcher needs
	// the client for delivery and the client needs the intake handler for
	// events.
	wiring := &lateHandler{}
	client := telegram.NewGotdClient(apiID, apiHash,
		telegram.NewRecordSession(records), wiring, nil, logger.Named("telegram"))
	if env.BotToken != "" {
		client.SetBotToken(env.BotToken)
	}

	dispatcher := responder.NewDispatcher(client, responder.DefaultReplyTexts(), logger.Named("dispatcher"))
	registry := responder.NewRegistry(env.ResponseWindow, func(chatID int64, kind domain.ChatKind) {
		dispatcher.Dispatch(context.Background(), chatID, kind)
	}, logger.Named("registry"))
	wiring.Intake = responder.NewIntake(registry, dispatcher, client, env.AdminChatID, logger.Named("intake"))

	client.SetOnReady(func() {
		logger.Info("userbot ready for work",
			zap.Duration("response_window", env.ResponseWindow),
			zap.Int64("admin_chat_id", env.AdminChatID),
			zap.Int64("test_group_id", env.TestGroupID))
		logger.Info("when a message arrives, the response timer is armed")
		logger.Info("if you don't respond within the window, the userbot auto-replies")
		logger.Info("if you respond manually, the timer is cancelled")
		logger.Info("all responses are sent from your personal account")
		logger.Info("users are added to contacts automatically when needed")
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("userbot stopped", zap.Error(err))
		os.Exit(1)
	}
}

// lateHandler defers event delivery until the intake handler exists.
type lateHandler struct {
	Intake *responder.Intake
}

func (h *lateHandler) OnNewMessage(msg domain.Message) {
	if h.Intake != nil {
		h.Intake.OnNewMessage(msg)
	}
}

// buildLogger logs to stdout (captured by the control plane) and, when a
// path is given, to a rotated file as well.
func buildLogger(logPath string) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), zapcore.InfoLevel),
	}
	if logPath != "" {
		rotated := &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     10, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(rotated), zapcore.InfoLevel))
	}
	return zap.New(zapcore.NewTee(cores...))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

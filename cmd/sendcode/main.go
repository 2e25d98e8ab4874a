// The sendcode command performs one interactive authentication attempt
// against Telegram. It is spawned by the control plane with the phone
// number in its environment; it announces WAITING_FOR_CODE and 2FA_NEEDED
// on stdout, reads the secrets from stdin, and reports failures on stderr
// with an AUTH_ERROR: prefix. On success the session token has been
// persisted to the credential record before AUTH_SUCCESS is printed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/gotd/td/session"
	tgclient "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/danhigham/autoresponder/internal/config"
	"github.com/danhigham/autoresponder/internal/handshake"
	"github.com/danhigham/autoresponder/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	recordPath := os.Getenv("RECORD_PATH")
	if recordPath == "" {
		recordPath = "config.json"
	}
	records := config.NewRecordStore(recordPath)

	rec, err := records.Load()
	if err != nil {
		fail("load credential record: %v", err)
	}

	apiID, err := strconv.Atoi(firstNonEmpty(os.Getenv("T_API_ID"), rec.APIID))
	if err != nil {
		fail("invalid api id")
	}
	apiHash := firstNonEmpty(os.Getenv("T_API_HASH"), rec.APIHash)
	phone := os.Getenv("PHONE_NUMBER")

	// The protocol stream is stdout; diagnostics go to a file logger so
	// they never interleave with the tokens.
	logger := zap.NewNop()
	if logPath := os.Getenv("SENDCODE_LOG"); logPath != "" {
		logCfg := zap.NewDevelopmentConfig()
		logCfg.OutputPaths = []string{logPath}
		logCfg.ErrorOutputPaths = []string{logPath}
		if l, err := logCfg.Build(); err == nil {
			logger = l
		}
	}
	defer logger.Sync()

	flow := telegram.NewStreamAuth(phone, os.Stdin, os.Stdout)
	flow.CodeToken = handshake.TokenWaitingForCode
	flow.PasswordToken = handshake.Token2FANeeded

	// The session is held in memory during the flow and only copied into
	// the credential record once authentication has completed, so a
	// failed handshake never clobbers a working session.
	mem := new(session.StorageMemory)
	if rec.Authenticated() {
		if err := mem.StoreSession(context.Background(), []byte(rec.Session)); err != nil {
			fail("prime session: %v", err)
		}
	}

	client := tgclient.NewClient(apiID, apiHash, tgclient.Options{
		Logger:         logger,
		SessionStorage: mem,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err = client.Run(ctx, func(ctx context.Context) error {
		if err := client.Auth().IfNecessary(ctx, auth.NewFlow(flow, auth.SendCodeOptions{})); err != nil {
			return err
		}

		data, err := mem.LoadSession(ctx)
		if err != nil {
			return fmt.Errorf("export session: %w", err)
		}
		if err := records.SetSession(string(data)); err != nil {
			return fmt.Errorf("persist session: %w", err)
		}

		fmt.Println(handshake.TokenAuthSuccess)
		return nil
	})
	if err != nil {
		fail("%v", err)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, handshake.ErrorPrefix+" "+format+"\n", args...)
	os.Exit(1)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

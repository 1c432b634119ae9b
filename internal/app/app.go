package app

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	httpapp "github.com/14kear/voteGateBot/internal/app/http"
	"github.com/14kear/voteGateBot/internal/bot"
	"github.com/14kear/voteGateBot/internal/config"
	"github.com/14kear/voteGateBot/internal/handlers"
	"github.com/14kear/voteGateBot/internal/kv"
	"github.com/14kear/voteGateBot/internal/kv/memstore"
	"github.com/14kear/voteGateBot/internal/kv/redisstore"
	"github.com/14kear/voteGateBot/internal/lib/crypto"
	"github.com/14kear/voteGateBot/internal/middleware"
	"github.com/14kear/voteGateBot/internal/services/admission"
	"github.com/14kear/voteGateBot/internal/services/broadcast"
	"github.com/14kear/voteGateBot/internal/services/captcha"
	"github.com/14kear/voteGateBot/internal/services/gate"
	"github.com/14kear/voteGateBot/internal/services/voting"
	"github.com/14kear/voteGateBot/internal/storage/postgres"
	"github.com/14kear/voteGateBot/internal/transport/telegram"
)

type App struct {
	HTTPServer *httpapp.App
	Bot        *bot.Bot
	Machine    *admission.Machine
	Ledger     *voting.Ledger
	storage    *postgres.Storage
}

// NewApp wires the whole system. ctx is the process lifecycle context; work
// detached from a request (broadcast runs) is bound to it.
func NewApp(ctx context.Context, log *slog.Logger, cfg *config.Config) *App {
	storage, err := postgres.New(cfg.StoragePath)
	if err != nil {
		panic(err)
	}

	store := newKVStore(ctx, log, cfg)

	sealer, err := crypto.New(cfg.EncryptionKey)
	if err != nil {
		panic(err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		panic(err)
	}
	tgClient := telegram.NewClient(api)

	gateService := gate.New(log, tgClient, cfg.Gate.RequiredChannels)
	captchaService := captcha.New(log, store, cfg.Captcha.Timeout, cfg.Captcha.MaxAttempts, cfg.Captcha.BlockDuration)
	ledger := voting.NewLedger(log, storage, storage)
	machine := admission.NewMachine(log, gateService, captchaService, ledger, storage, sealer, store, cfg.Admission.SessionTTL)
	dispatcher := broadcast.NewDispatcher(log, tgClient, cfg.Broadcast.SendPause)

	tgBot := bot.New(log, api, machine)

	authHandler := handlers.NewAuthHandler(cfg.Admin.PasswordHash, cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	pollHandler := handlers.NewPollHandler(ledger, api.Self.UserName)
	broadcastHandler := handlers.NewBroadcastHandler(ctx, log, dispatcher, storage)
	authMiddleware := middleware.NewAuthMiddleware(cfg.Admin.JWTSecret)

	httpApp := httpapp.NewApp(log, cfg.HTTP.Port, authHandler, pollHandler, broadcastHandler, authMiddleware.Middleware())

	return &App{
		HTTPServer: httpApp,
		Bot:        tgBot,
		Machine:    machine,
		Ledger:     ledger,
		storage:    storage,
	}
}

func (a *App) Stop(ctx context.Context) error {
	if err := a.HTTPServer.Stop(ctx); err != nil {
		return err
	}
	return a.storage.Close()
}

// newKVStore picks redis when an address is configured, otherwise the
// in-process store. Both back the captcha and session state.
func newKVStore(ctx context.Context, log *slog.Logger, cfg *config.Config) kv.Store {
	if cfg.Redis.Addr == "" {
		log.Warn("redis address is empty, using in-process kv store")
		return memstore.New()
	}
	store, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		panic(err)
	}
	return store
}

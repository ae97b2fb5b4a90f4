package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"onebridge/pkg/bus"
	"onebridge/pkg/channels"
	"onebridge/pkg/config"
	"onebridge/pkg/logger"
	"onebridge/pkg/sentinel"
	"onebridge/pkg/server"
	"onebridge/pkg/session"
)

func gatewayCmd() {
	cfg := loadConfigOrExit()

	if cfg.Logging.Enabled {
		if err := logger.EnableFileLogging(cfg.LogFilePath(), cfg.Logging.MaxSizeMB, cfg.Logging.RetentionDays); err != nil {
			logger.WarnCF("gateway", "file logging unavailable", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
		}
		defer logger.DisableFileLogging()
	}

	messageBus := bus.NewMessageBus()
	sessions := session.NewManager(cfg.SessionDir())

	manager, err := channels.NewManager(cfg, messageBus, sessions)
	if err != nil {
		logger.FatalC("gateway", "channel manager init failed: "+err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.StartAll(ctx); err != nil {
		logger.FatalC("gateway", "channel start failed: "+err.Error())
	}

	srv := server.NewServer(cfg.Gateway.Host, cfg.Gateway.Port)
	mountWebhook(srv, cfg, manager)

	go consumeInbound(ctx, messageBus)

	var watchdog *sentinel.Service
	if cfg.Sentinel.Enabled {
		watchdog = sentinel.NewService(configPath(), cfg.Sentinel.IntervalSec, cfg.Sentinel.AutoHeal, nil)
		watchdog.SetProbe(
			func() error {
				probeCtx, probeCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer probeCancel()
				for _, err := range manager.CheckHealth(probeCtx) {
					if err != nil {
						return err
					}
				}
				return nil
			},
			func() error {
				return manager.RestartChannel(context.Background(), "onebot")
			},
		)
		watchdog.Start()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.InfoCF("gateway", "shutting down", map[string]interface{}{"signal": sig.String()})
	case err := <-errCh:
		if err != nil {
			logger.ErrorCF("gateway", "server error", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
		}
	}

	if watchdog != nil {
		watchdog.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = manager.StopAll(shutdownCtx)
	cancel()
	messageBus.Close()
	logger.InfoC("gateway", "shutdown complete")
}

// mountWebhook exposes the OneBot push endpoint on the shared HTTP server.
func mountWebhook(srv *server.Server, cfg *config.Config, manager *channels.Manager) {
	if cfg.OneBot.Transport == "ws" {
		return
	}
	ch, ok := manager.GetChannel("onebot")
	if !ok {
		return
	}
	ob, ok := ch.(*channels.OneBotChannel)
	if !ok {
		return
	}
	path := cfg.OneBot.WebhookPath
	if path == "" {
		path = "/onebot"
	}
	srv.Handle(path, ob.WebhookHandler())
	logger.InfoCF("gateway", "webhook mounted", map[string]interface{}{
		"path": path, "addr": srv.Addr(),
	})
}

// consumeInbound drains the bus toward whatever handler the embedding host
// registered. Running standalone, messages are logged and dropped.
func consumeInbound(ctx context.Context, messageBus *bus.MessageBus) {
	for {
		msg, ok := messageBus.ConsumeInbound(ctx)
		if !ok {
			return
		}
		handler, registered := messageBus.GetHandler(msg.Channel)
		if !registered {
			logger.DebugCF("gateway", "inbound message with no host handler", map[string]interface{}{
				logger.FieldChannel: msg.Channel,
				logger.FieldChatID:  msg.ChatID,
			})
			continue
		}
		if err := handler(msg); err != nil {
			logger.ErrorCF("gateway", "host handler failed", map[string]interface{}{
				logger.FieldChannel: msg.Channel,
				logger.FieldError:   err.Error(),
			})
		}
	}
}

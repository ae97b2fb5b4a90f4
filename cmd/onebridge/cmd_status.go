package main

import (
	"context"
	"fmt"
	"time"

	"onebridge/pkg/onebot"
)

func statusCmd() {
	cfg := loadConfigOrExit()

	fmt.Printf("config:    %s\n", configPath())
	fmt.Printf("gateway:   %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Printf("transport: %s\n", transportLabel(cfg.OneBot.Transport))

	if !cfg.OneBot.Enabled {
		fmt.Println("onebot:    disabled")
		return
	}

	client := onebot.NewClient(cfg.OneBot.Endpoint, cfg.OneBot.AccessToken)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := client.GetLoginInfo(ctx)
	if err != nil {
		fmt.Printf("onebot:    unreachable (%v)\n", err)
		return
	}
	fmt.Printf("onebot:    ok, logged in as %s (%d)\n", info.Nickname, info.UserID)

	if groups, err := client.GetGroupList(ctx); err == nil {
		fmt.Printf("groups:    %d\n", len(groups))
	}
	if friends, err := client.GetFriendList(ctx); err == nil {
		fmt.Printf("friends:   %d\n", len(friends))
	}
}

func transportLabel(t string) string {
	if t == "" {
		return "webhook"
	}
	return t
}

package main

import (
	"sponsor-dock/internal/app"
	"sponsor-dock/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel)
	app.Run(cfg)
}

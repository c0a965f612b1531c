package main

import (
	"github.com/mcdev12/pairtalk/go/internal/config"
	"github.com/mcdev12/pairtalk/go/internal/gems"
	"github.com/mcdev12/pairtalk/go/internal/realtime/matchmaking"
)

func engineConfig(cfg config.MatchConfig) matchmaking.Config {
	return matchmaking.Config{
		InitialDuration:   cfg.InitialDuration,
		ExtensionDuration: cfg.ExtensionDuration,
		DecisionWindow:    cfg.DecisionWindow,
		DisconnectGrace:   cfg.DisconnectGrace,
		PairCooldown:      cfg.PairCooldown,
		ChatMaxLength:     cfg.ChatMaxLength,
		PurgeInterval:     cfg.PurgeInterval,
	}
}

func ledgerConfig(cfg config.GemsConfig) gems.Config {
	return gems.Config{
		StartingBalance: cfg.StartingBalance,
		ExtendCost:      cfg.ExtendCost,
	}
}

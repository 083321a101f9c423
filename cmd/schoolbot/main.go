package main

import (
	"fmt"
	"log"
	_ "time/tzdata"

	"github.com/m3rciful/schoolbot/app/bot"
	corecmd "github.com/m3rciful/schoolbot/core/cmd"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		EnvFiles:          []string{".env"},
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return bot.LoadConfig(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			c, ok := cfg.(*bot.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cfg)
			}
			return bot.Bootstrap(c)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"log"
	"os"

	"github.com/m3rciful/todobot/core/cmd"
	"github.com/m3rciful/todobot/internal/app"
)

func main() {
	err := cmd.Run(cmd.Options{
		Args:              os.Args[1:],
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			cfg, err := app.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: app.Bootstrap,
	})
	if err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/yungbote/rewardcore-backend/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}

	a.Start()

	err = a.Run(a.Cfg.HTTPAddr)
	a.Close()
	if err != nil {
		fmt.Printf("Server failed: %v\n", err)
		os.Exit(1)
	}
}

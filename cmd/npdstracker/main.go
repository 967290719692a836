package main

import (
	"errors"
	"log"
	"os"

	"github.com/MrSnakeDoc/npdstracker/internal/app"
	"github.com/MrSnakeDoc/npdstracker/internal/config"
)

func main() {
	a, err := app.New(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("❌ npdstracker failed to start: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("❌ npdstracker stopped with an error: %v", err)
	}
}

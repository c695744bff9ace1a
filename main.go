package main

import (
	"log"

	"github.com/thiagokokada/gitk-explorer/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		log.Fatalf("gitk-explorer: %v", err)
	}
}

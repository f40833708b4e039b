// cmd/server/main.go
package main

import (
	"log"

	"github.com/okhotin/FrontlineMuse/internal/app"
)

func main() {
	application, err := app.Bootstrap()
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}
	if err := application.Run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

// Command focushub serves the FocusHub mini-app API, its bot webhook and
// the digest and deadline notification cycles.
package main

import (
	"context"
	"log"

	"github.com/dalemusser/focushub/internal/app/bootstrap"
	"github.com/dalemusser/waffle/app"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		log.Fatalf("focushub: %v", err)
	}
}

// Command whiskers serves the login view and the cat facts home page.
package main

import (
	"context"
	"log"

	"github.com/dalemusser/whiskers/app"
	"github.com/dalemusser/whiskers/internal/app/bootstrap"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/buddyinbox/internal/app"
	"github.com/dmitrijs2005/buddyinbox/internal/buildinfo"
	"github.com/dmitrijs2005/buddyinbox/internal/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	a, err := app.NewApp(ctx, cfg, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := a.Run(ctx); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/ledgerkeeper/internal/cli"
	"github.com/dmitrijs2005/ledgerkeeper/internal/config"
	"github.com/google/subcommands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadBase(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	// global flags precede the command name and override the config file
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	cfg.RegisterFlags(flag.CommandLine)
	flag.String("c", "", "path to JSON config file (short)")
	flag.String("config", "", "path to JSON config file")
	prompt := flag.Bool("p", false, "prompt for the encryption passphrase")

	commander := subcommands.NewCommander(flag.CommandLine, "ledgerctl")
	flag.Parse()

	app, err := cli.NewApp(cfg, os.Stdout, os.Stderr)
	if err != nil {
		log.Fatalf("%v", err)
	}
	app.PromptPassphrase = *prompt
	app.Register(commander)

	os.Exit(int(commander.Execute(ctx)))
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/edvin/licensegate/internal/config"
	"github.com/edvin/licensegate/internal/keyadmin"
	"github.com/edvin/licensegate/internal/keystore"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "create":
		fs := flag.NewFlagSet("create", flag.ExitOnError)
		customer := fs.String("customer", "", "Customer the key is issued to (required)")
		fs.Parse(os.Args[2:])

		if *customer == "" {
			fmt.Fprintln(os.Stderr, "Error: -customer flag is required")
			fs.Usage()
			os.Exit(1)
		}
		run(func(ctx context.Context, store *keystore.Store) error {
			return keyadmin.Create(ctx, store, *customer, os.Stdout)
		})

	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		format := fs.String("format", keyadmin.FormatTable, "Output format: table or yaml")
		fs.Parse(os.Args[2:])

		run(func(ctx context.Context, store *keystore.Store) error {
			return keyadmin.List(ctx, store, *format, os.Stdout)
		})

	case "revoke":
		fs := flag.NewFlagSet("revoke", flag.ExitOnError)
		key := fs.String("key", "", "Full API key to revoke (required)")
		fs.Parse(os.Args[2:])

		if *key == "" {
			fmt.Fprintln(os.Stderr, "Error: -key flag is required")
			fs.Usage()
			os.Exit(1)
		}
		run(func(ctx context.Context, store *keystore.Store) error {
			return keyadmin.Revoke(ctx, store, *key, os.Stdout)
		})

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run(cmd func(ctx context.Context, store *keystore.Store) error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.APIKeysTable == "" {
		fmt.Fprintln(os.Stderr, "Error: API_KEYS_TABLE is not set")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	awsCfg, err := cfg.AWS(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := cmd(ctx, keystore.New(awsCfg, cfg.APIKeysTable)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: keyadmin <command> [flags]

Commands:
  create -customer <name>        Issue a new API key (printed once)
  list [-format table|yaml]      List keys by prefix, never the full key
  revoke -key <key>              Deactivate a key

Environment:
  API_KEYS_TABLE    DynamoDB table holding the keys
  AWS_REGION        AWS region
  AWS_ENDPOINT_URL  Optional endpoint override (DynamoDB Local)`)
}

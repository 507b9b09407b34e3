// Command brokerlink-quote resolves prices for symbols from the
// command line, using the same cache and provider chain as the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"brokerlink/internal/config"
	"brokerlink/internal/quote"
	"brokerlink/internal/util"
)

func main() {
	cfgPath := flag.String("config", "config/brokerlink.yaml", "path to config file")
	refresh := flag.Bool("refresh", false, "bypass the quote cache")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: brokerlink-quote [options] SYMBOL [SYMBOL...]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger := util.NewLogger("warn", "text")

	cache, err := quote.NewCache(cfg.Storage.DataDir, logger)
	if err != nil {
		log.Fatalf("opening quote cache: %v", err)
	}
	resolver := quote.NewResolverFromConfig(cfg.Providers, cache, logger)

	ctx := context.Background()
	failed := false
	for _, symbol := range flag.Args() {
		res, ok := resolver.Resolve(ctx, symbol, *refresh)
		if !ok {
			fmt.Fprintf(os.Stderr, "%s: no price available\n", symbol)
			failed = true
			continue
		}
		cached := ""
		if res.Cached {
			cached = " (cached)"
		}
		fmt.Printf("%-8s %10.2f  %s%s\n", symbol, res.Price, res.Source, cached)
	}
	if failed {
		os.Exit(1)
	}
}

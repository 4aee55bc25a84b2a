// Command webcrawler runs the crawler, PageRank daemon, and an interactive
// search prompt against one SQLite-backed store, mirroring the teacher
// repository's single-binary design (crawler/crawler.go's WebCrawler) with
// config loading, graceful shutdown on signal, and a bufio-driven REPL
// grounded in original_source websearch.py's search_loop.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fernglade/rankcrawl/internal/config"
	"github.com/fernglade/rankcrawl/internal/dispatcher"
	"github.com/fernglade/rankcrawl/internal/envflag"
	"github.com/fernglade/rankcrawl/internal/events"
	"github.com/fernglade/rankcrawl/internal/messaging"
	"github.com/fernglade/rankcrawl/internal/pagerank"
	"github.com/fernglade/rankcrawl/internal/querysvc"
	"github.com/fernglade/rankcrawl/internal/store"
)

func main() {
	logger := log.New(os.Stderr, "webcrawler: ", log.LstdFlags)

	configPath := envflag.GetEnv("CONFIG_PATH", "config.yml")
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("loading config: %v", err)
	}

	st, err := store.Open(cfg.DatabaseName, cfg.AutoResetOnDBInitChanges)
	if err != nil {
		logger.Fatalf("opening store: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Println("shutting down")
		cancel()
	}()

	eventQueue := messaging.NewChannelQueue()
	publisher := events.NewPublisher(eventQueue, logger)
	go events.LogConsumer(eventQueue, logger)

	d := dispatcher.New(cfg, st, publisher)
	d.Start(ctx)

	ranker := pagerank.New(cfg, st)
	go ranker.RunDaemon(ctx)

	svc := querysvc.New(cfg, st)
	runSearchREPL(ctx, svc, logger)
}

func runSearchREPL(ctx context.Context, svc *querysvc.Service, logger *log.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("search> ")
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		query := scanner.Text()
		if query == "" {
			fmt.Print("search> ")
			continue
		}

		results, err := svc.Search(ctx, query)
		if err != nil {
			logger.Printf("search failed: %v", err)
			fmt.Print("search> ")
			continue
		}
		if len(results) == 0 {
			fmt.Println("no results")
		}
		for i, r := range results {
			fmt.Printf("%2d. %s  (score %.4f)\n", i+1, r.URL, r.Score)
		}
		fmt.Print("search> ")
	}
}

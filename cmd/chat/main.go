package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/christopherjohns/chatsphere-client/internal/config"
	"github.com/christopherjohns/chatsphere-client/internal/dedup"
	"github.com/christopherjohns/chatsphere-client/internal/observability"
	"github.com/christopherjohns/chatsphere-client/internal/session"
	"github.com/christopherjohns/chatsphere-client/internal/upload"
	"github.com/christopherjohns/chatsphere-client/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialer := ws.Dialer{}
	opts := []session.Option{
		session.WithUploader(upload.NewClient(cfg.UploadURL, nil)),
	}

	if cfg.RedisAddr != "" {
		rdb := dedup.NewRedisClient(cfg.RedisAddr)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to Redis at %s: %v", cfg.RedisAddr, err)
		}
		log.Printf("Connected to Redis at %s", cfg.RedisAddr)
		defer rdb.Close()

		// Each client instance gets its own seen-id set so two terminals
		// logged in as the same user do not suppress each other's frames.
		instance := uuid.NewString()
		opts = append(opts, session.WithSeenStore(func(username string) dedup.Store {
			return dedup.NewRedisSet(rdb, username+":"+instance, cfg.SeenTTL)
		}))
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("metrics: %v", err)
			}
		}()
		defer srv.Close()
		log.Printf("Serving metrics on %s", cfg.MetricsAddr)
	}

	engine := session.New(session.DialerFunc(func(ctx context.Context, url string) (session.Conn, error) {
		conn, err := dialer.Dial(ctx, url)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}), cfg.ServerURL, opts...)
	defer engine.Disconnect()

	go render(ctx, engine.Snapshots(), os.Stdout)

	if cfg.Username != "" {
		if err := engine.Login(cfg.Username); err != nil {
			log.Printf("Login failed: %v", err)
		}
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	log.Printf("Connecting to %s (type /help for commands)", cfg.ServerURL)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := run(ctx, engine, parseCommand(line), os.Stdout); quit {
				return
			}
		}
	}
}

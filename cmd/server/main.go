package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nestdb/nestdb"
	"github.com/nestdb/nestdb/engine/duckdb"
	"github.com/nestdb/nestdb/ps"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	port := flag.Int("port", 3306, "TCP port to listen on")
	dsn := flag.String("dsn", "", "Engine DSN (in-memory if empty)")
	snapshot := flag.String("snapshot", "", "Snapshot file path (memory store if empty)")
	gitDir := flag.String("gitDir", "", "Git repository directory for versioned snapshots")
	jwtSecret := flag.String("jwtSecret", "", "Enable JWT auth with this HS256 secret")
	issuer := flag.String("issuer", "", "Expected JWT issuer")
	safeMode := flag.Bool("safeMode", false, "Block destructive statements")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("NestDB SQL Server v%s\n", Version)
		return
	}

	eng, err := duckdb.Open(*dsn)
	if err != nil {
		log.Fatalf("Failed to open engine: %v", err)
	}

	var store ps.Store
	switch {
	case *gitDir != "":
		log.Printf("Using git snapshot store: %s", *gitDir)
		store, err = ps.NewGitStore(*gitDir)
		if err != nil {
			log.Fatalf("Failed to open git store: %v", err)
		}
	case *snapshot != "":
		log.Printf("Using file snapshot store: %s", *snapshot)
		store = ps.NewFileStore(*snapshot)
	default:
		log.Println("Using memory snapshot store")
		store = ps.NewMemoryStore()
	}

	instance, err := nestdb.Open(context.Background(), eng, store, ps.Options{})
	if err != nil {
		log.Fatalf("Failed to open instance: %v", err)
	}
	defer instance.Close()

	var auth *AuthConfig
	if *jwtSecret != "" {
		auth = &AuthConfig{Enabled: true, JWTSecret: *jwtSecret, Issuer: *issuer}
	}

	server := NewServer(instance, auth)
	server.SetSafeMode(*safeMode)
	addr := fmt.Sprintf(":%d", *port)

	if err := server.Start(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Printf("║   NestDB SQL Server v%-16s ║\n", Version)
	fmt.Println("║   Virtual databases, one engine       ║")
	fmt.Println("╚═══════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Listening on port %d\n", *port)
	fmt.Println("Send SQL queries (one per line), 'quit' to disconnect")
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	server.Stop()
	log.Println("Server stopped")
}

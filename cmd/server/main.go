// Command server is the main entry point for the MCP pod server
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/mcp-pod/pkg/config"
	"github.com/theapemachine/mcp-pod/pkg/logger"
	"github.com/theapemachine/mcp-pod/pkg/memory"
	"github.com/theapemachine/mcp-pod/pkg/pod"
	"github.com/theapemachine/mcp-pod/pkg/tools/builtin"
)

// shutdownGrace bounds how long Shutdown waits for the transport to close.
const shutdownGrace = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// stdout carries the protocol
	logs := logger.New(cfg, os.Stderr)
	logs.Info("Starting MCP pod server...")

	if err := cfg.Validate(); err != nil {
		logs.Warn("Configuration warning", "err", err)
	}

	opts := builtin.Options{
		Names:   cfg.Tools.Builtin,
		Allowed: cfg.Tools.System.Allowed,
	}

	if slices.Contains(cfg.Tools.Builtin, "memory") {
		opts.VectorStore, opts.GraphStore = stores(cfg, logs)
	}

	tools, err := builtin.Tools(opts)
	if err != nil {
		logs.Fatal("Failed to build tools", "err", err)
	}

	mcpPod, err := pod.New(pod.Options{
		Name:    cfg.Server.Name,
		Version: cfg.Server.Version,
		Tools:   tools,
		Logger:  logs,
	})
	if err != nil {
		logs.Fatal("Failed to create pod", "err", err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-signals
		logs.Info("Received signal, shutting down", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		if err := mcpPod.Shutdown(ctx); err != nil {
			logs.Error("Shutdown did not complete", "err", err)
			os.Exit(1)
		}
	}()

	if err := mcpPod.Connect(context.Background(), os.Stdin, os.Stdout); err != nil {
		logs.Fatal("Server error", "err", err)
	}

	logs.Info("Server shutdown complete")
}

// stores connects the memory backends. A backend that cannot be reached is
// left nil so the memory tool reports it per call instead of failing startup.
func stores(cfg *config.Config, logs *log.Logger) (memory.VectorStore, memory.GraphStore) {
	var (
		vectorStore memory.VectorStore
		graphStore  memory.GraphStore
	)

	if cfg.Memory.Qdrant.Host != "" {
		store, err := memory.NewQdrantStore(memory.QdrantConfig{
			Host:       cfg.Memory.Qdrant.Host,
			Port:       cfg.Memory.Qdrant.Port,
			APIKey:     cfg.Memory.Qdrant.APIKey,
			UseTLS:     cfg.Memory.Qdrant.UseTLS,
			Collection: cfg.Memory.Qdrant.Collection,
		}, embedder(cfg))

		if err != nil {
			logs.Warn("Vector store unavailable", "err", err)
		} else {
			vectorStore = store
		}
	}

	if cfg.Memory.Neo4j.URL != "" {
		store, err := memory.NewNeo4jStore(memory.Neo4jConfig{
			URL:      cfg.Memory.Neo4j.URL,
			Username: cfg.Memory.Neo4j.Username,
			Password: cfg.Memory.Neo4j.Password,
			Database: cfg.Memory.Neo4j.Database,
		})

		if err != nil {
			logs.Warn("Graph store unavailable", "err", err)
		} else {
			graphStore = store
		}
	}

	return vectorStore, graphStore
}

func embedder(cfg *config.Config) memory.Embedder {
	if cfg.Memory.Embedder == "openai" {
		return memory.NewOpenAIEmbedder(cfg.Memory.OpenAI.APIKey, cfg.Memory.OpenAI.Model, cfg.Memory.Dimensions)
	}

	return memory.NewHashEmbedder(cfg.Memory.Dimensions)
}

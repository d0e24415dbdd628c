// Package main runs Mimi, a personal terminal assistant with long-term
// memory. It wires the memory subsystem to an OpenAI-compatible provider and
// reads conversation turns from stdin.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kuumin/mimi/pkg/agent"
	"github.com/kuumin/mimi/pkg/config"
	"github.com/kuumin/mimi/pkg/llm"
	"github.com/kuumin/mimi/pkg/llm/openai"
	"github.com/kuumin/mimi/pkg/llm/tokenizer"
	"github.com/kuumin/mimi/pkg/logging"
	"github.com/kuumin/mimi/pkg/memory"
	"github.com/kuumin/mimi/pkg/memory/notes"
	"github.com/kuumin/mimi/pkg/vault"
)

func main() {
	// .env is optional; real config comes from the YAML file + environment.
	_ = godotenv.Load()

	cfgPath, err := config.DefaultPath()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Provider.APIKey == "" {
		log.Fatal("no API key configured: set MIMI_API_KEY or provider.api_key in config.yaml")
	}

	logger, err := logging.NewLogger("mimi")
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	assistant, vaultIndexer, err := buildAssistant(cfg, logger)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	go assistant.RunMaintenance(ctx)
	if vaultIndexer != nil {
		vaultIndexer.Trigger(ctx, false)
	}

	fmt.Printf("%s is listening. Type your message, or 'exit' to quit.\n\n", cfg.AssistantName)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Printf("[%s] ", cfg.UserName)
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		reply, err := assistant.Chat(ctx, input)
		if err != nil {
			fmt.Printf("\n[error] %v\n\n", err)
			continue
		}
		fmt.Printf("\n[%s] %s\n\n", cfg.AssistantName, reply)
	}
}

// buildAssistant opens every persisted store and wires the providers and
// background engines together.
func buildAssistant(cfg *config.Config, logger *logging.Logger) (*agent.Assistant, *vault.Indexer, error) {
	provider, err := openai.NewProvider(cfg.Provider.APIKey,
		openai.WithBaseURL(cfg.Provider.BaseURL),
		openai.WithModel(cfg.Provider.ChatModel),
		openai.WithEmbeddingModel(cfg.Provider.EmbeddingModel),
		openai.WithTimeouts(cfg.Provider.ChatTimeout, cfg.Provider.EmbedTimeout),
	)
	if err != nil {
		return nil, nil, err
	}
	reasoner := llm.WithModel(provider, cfg.Provider.ReasonerModel)

	store, err := memory.OpenStore(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	index, err := memory.OpenVectorIndex(filepath.Join(cfg.DataDir, "memory.vectors.json"), provider)
	if err != nil {
		return nil, nil, err
	}
	noteMgr, err := notes.NewManager(filepath.Join(cfg.DataDir, "notes.json"))
	if err != nil {
		return nil, nil, err
	}
	persona, err := memory.OpenPersonaStore(filepath.Join(cfg.DataDir, "persona.json"))
	if err != nil {
		return nil, nil, err
	}
	diary, err := memory.OpenDiaryStore(filepath.Join(cfg.DataDir, "diary.json"))
	if err != nil {
		return nil, nil, err
	}

	// New commits get embedded in the background; failures are backfilled by
	// the reindex sweep below.
	store.SetCommitHook(func(it memory.Item) {
		if err := index.Add(context.Background(), memory.VectorID(it.ID), it.Content); err != nil {
			logger.Warnf("embedding for %d failed: %v", it.ID, err)
		}
	})

	var vaultIndexer *vault.Indexer
	if cfg.Vault.Path != "" {
		vaultIndexer, err = vault.NewIndexer(cfg.DataDir, provider, vault.Config{
			Path:              cfg.Vault.Path,
			Include:           cfg.Vault.Include,
			SessionDir:        cfg.Vault.SessionDir,
			SemanticThreshold: cfg.Vault.SemanticThreshold,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
	}

	retriever := memory.NewRetriever(store, index, vaultIndexer.SearchFunc(), memory.RetrieverConfig{
		SemanticThreshold: cfg.Memory.SemanticThreshold,
		AssistantName:     cfg.AssistantName,
		UserName:          cfg.UserName,
	}, logger)

	session := memory.NewSession()
	consolidator := memory.NewConsolidator(store, provider, memory.ConsolidatorConfig{
		Threshold:       cfg.Memory.CompressionThreshold,
		MinCategorySize: cfg.Memory.MinCategorySize,
	}, logger)

	tok, err := tokenizer.New()
	if err != nil {
		logger.Warnf("tokenizer unavailable, using character fallback: %v", err)
		tok = nil
	}
	synthesizer := memory.NewSynthesizer(session, store, persona, diary, reasoner, tok, memory.SynthesizerConfig{
		InactivityWindow: cfg.Memory.InactivityWindow,
		AssistantName:    cfg.AssistantName,
		UserName:         cfg.UserName,
	}, logger)

	assistant := agent.New(provider, store, retriever, noteMgr, persona, session, consolidator, synthesizer, agent.Options{
		UserName:      cfg.UserName,
		AssistantName: cfg.AssistantName,
		Vault:         vaultIndexer,
	}, logger)

	// Backfill vectors for facts whose embedding failed at commit time, and
	// classify any legacy uncategorized items.
	go func() {
		ctx := context.Background()
		if added, err := index.ReindexMissing(ctx, store.Archive()); err != nil {
			logger.Warnf("reindex sweep failed: %v", err)
		} else if added > 0 {
			logger.Infof("backfilled %d missing embeddings", added)
		}
		if updated, err := assistant.ClassifyLegacyMemories(ctx); err != nil {
			logger.Warnf("legacy classification failed: %v", err)
		} else if updated > 0 {
			logger.Infof("reclassified %d legacy memories", updated)
		}
	}()

	return assistant, vaultIndexer, nil
}

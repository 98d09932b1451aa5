// Package main is the acervo CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/acervolegal/acervo/internal/chunker"
	"github.com/acervolegal/acervo/internal/config"
	"github.com/acervolegal/acervo/internal/embedding"
	"github.com/acervolegal/acervo/internal/extract"
	"github.com/acervolegal/acervo/internal/indexer"
	"github.com/acervolegal/acervo/internal/keyword"
	"github.com/acervolegal/acervo/internal/models"
	"github.com/acervolegal/acervo/internal/search"
	"github.com/acervolegal/acervo/internal/server"
	"github.com/acervolegal/acervo/internal/vectorstore"
	"github.com/acervolegal/acervo/internal/watcher"
	"github.com/acervolegal/acervo/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/acervo/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so development runs pick up the
// project config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "index":
		runIndex()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("acervo version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// components bundles everything the server and index commands need.
type components struct {
	Embedder embedding.Embedder
	Store    vectorstore.VectorStore
	Keyword  *keyword.Index
	Indexer  *indexer.Indexer
}

func (c *components) Close() {
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// save flushes local persistence for backends that support it.
func (c *components) save(logger *zap.Logger) {
	if saver, ok := c.Store.(vectorstore.Saver); ok {
		if err := saver.Save(); err != nil {
			logger.Warn("vector store save failed", zap.Error(err))
		}
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	normalize := cfg.Embedding.NormalizeOrDefault()

	var embedder embedding.Embedder
	switch cfg.Embedding.Provider {
	case "onnx":
		e, err := embedding.NewONNXEmbedder(
			cfg.Embedding.ModelPath,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxTokens,
			cfg.Embedding.CacheSize,
			normalize,
		)
		if err != nil {
			return nil, fmt.Errorf("initialize onnx embedder: %w", err)
		}
		embedder = e
	case "ollama", "":
		embedder = embedding.NewOllamaEmbedder(
			cfg.Embedding.OllamaURL,
			cfg.Embedding.Model,
			cfg.Embedding.Dimensions,
			cfg.Embedding.CacheSize,
			normalize,
		)
	case "mock":
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}

	store, err := vectorstore.New(vectorstore.Options{
		Backend:      cfg.Store.Backend,
		IndexPath:    cfg.Store.IndexPath,
		MetadataPath: cfg.Store.MetadataPath,
		Normalized:   normalize,
		GPU: vectorstore.GPUOptions{
			Enabled: cfg.GPU.Enabled,
			Device:  cfg.GPU.Device,
		},
		OpenSearch: vectorstore.OpenSearchOptions{
			Host:        cfg.Store.OpenSearch.Host,
			Port:        cfg.Store.OpenSearch.Port,
			Index:       cfg.Store.OpenSearch.Index,
			Username:    cfg.Store.OpenSearch.Username,
			Password:    cfg.Store.OpenSearch.Password,
			UseTLS:      cfg.Store.OpenSearch.UseTLS,
			InsecureTLS: cfg.Store.OpenSearch.InsecureTLS,
		},
	}, logger)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("initialize vector store: %w", err)
	}
	logger.Info("vector store initialized",
		zap.String("backend", cfg.Store.Backend),
		zap.Int("documents", store.DocCount()))

	kw, err := keyword.New(cfg.Store.KeywordIndexPath)
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("initialize keyword index: %w", err)
	}

	chunkCfg := chunker.Config{
		TargetTokens:  cfg.Chunking.TargetTokens,
		MinTokens:     cfg.Chunking.MinTokens,
		MaxTokens:     cfg.Chunking.MaxTokens,
		OverlapTokens: cfg.Chunking.OverlapTokens,
		Separators:    cfg.Chunking.Separators,
	}
	idx := indexer.New(store, embedder, kw, chunkCfg, extract.NewExtractor(), logger)

	return &components{
		Embedder: embedder,
		Store:    store,
		Keyword:  kw,
		Indexer:  idx,
	}, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolvedPath), zap.Bool("debug", debugMode))

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	idx := comps.Indexer
	exts := cfg.Watch.Extensions
	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 {
		watchSvc = watcher.New(
			cfg.Watch.Directories,
			exts,
			func(path string) {
				if err := idx.IndexFile(context.Background(), path, exts); err != nil {
					logger.Warn("watch index file failed", zap.String("path", path), zap.Error(err))
				}
			},
			func(path string) {
				if err := idx.DeleteFile(context.Background(), path); err != nil {
					logger.Warn("watch delete by path failed", zap.String("path", path), zap.Error(err))
				}
			},
			logger,
		)
		watchCtx, watchCancel := context.WithCancel(context.Background())
		defer watchCancel()
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
		watchSvc.SyncExistingFiles()
	}

	retriever := search.NewRetriever(comps.Store, comps.Embedder, comps.Keyword, logger)
	srv := server.NewServer(retriever, idx, comps.Store, &cfg.Server, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	comps.save(logger)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	title := fs.String("title", "", "document title (single file only)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: acervo index [flags] <file-or-directory>")
		os.Exit(1)
	}
	target := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	ctx := context.Background()
	info, err := os.Stat(target)
	if err != nil {
		logger.Fatal("Cannot stat target", zap.String("path", target), zap.Error(err))
	}
	if info.IsDir() {
		n, err := comps.Indexer.IndexDirectory(ctx, target, cfg.Watch.Extensions)
		if err != nil {
			logger.Fatal("Directory indexing failed", zap.Error(err))
		}
		fmt.Printf("Indexed %d files from %s\n", n, target)
	} else {
		if *title != "" {
			text, err := extract.NewExtractor().Extract(target)
			if err != nil {
				logger.Fatal("Extraction failed", zap.Error(err))
			}
			doc := &models.Document{Title: *title, Text: text}
			if _, err := comps.Indexer.IndexDocument(ctx, doc); err != nil {
				logger.Fatal("Indexing failed", zap.Error(err))
			}
			fmt.Printf("Indexed %s as %s\n", target, doc.ID)
		} else {
			if err := comps.Indexer.IndexFile(ctx, target, nil); err != nil {
				logger.Fatal("Indexing failed", zap.Error(err))
			}
			fmt.Printf("Indexed %s\n", target)
		}
	}
	comps.save(logger)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	k := fs.Int("k", 10, "number of results")
	mode := fs.String("mode", "semantic", "search mode: semantic or keyword")
	outputJSON := fs.Bool("json", false, "print raw JSON response")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: acervo search [flags] <query>")
		os.Exit(1)
	}
	queryStr := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if queryStr == "" {
		fmt.Println("Usage: acervo search [flags] <query>")
		os.Exit(1)
	}

	query := &models.SearchQuery{Query: queryStr, K: *k, Mode: *mode}
	response, err := searchViaHTTP(*serverURL, query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(response)
		return
	}
	fmt.Printf("%d results for %q (%dms)\n\n", response.Total, response.Query, response.QueryTime)
	for i, res := range response.Results {
		doc := res.Document
		title := doc.Title
		if title == "" {
			title = doc.ID
		}
		fmt.Printf("%2d. [%.4f] %s\n", i+1, res.Score, title)
		if doc.Court != "" || doc.Code != "" || doc.Article != "" {
			fmt.Printf("     %s %s art. %s\n", doc.Court, doc.Code, doc.Article)
		}
		fmt.Printf("     %s\n\n", utils.Truncate(doc.Text, 200))
	}
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(
		strings.TrimSuffix(serverURL, "/")+"/api/v1/search",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}
	return &response, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(strings.TrimSuffix(*serverURL, "/") + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status read failed: %v\n", err)
		os.Exit(1)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(pretty.String())
}

func printUsage() {
	fmt.Println(`acervo - legal document semantic index

Usage:
  acervo server [flags]                Start the HTTP server
  acervo index [flags] <file-or-dir>   Index documents from disk
  acervo search [flags] <query>        Search the index (via server)
  acervo status [flags]                Show index status (via server)
  acervo version                       Show version
  acervo help                          Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/acervo/config.yaml)
  --debug            Enable debug logging

Index Flags:
  --config string    Config file path
  --title string     Document title (single file only)

Search Flags:
  --server string    Server URL (default: http://localhost:8080)
  --k int            Number of results (default: 10)
  --mode string      Search mode: semantic or keyword (default: semantic)
  --json             Print raw JSON response

Examples:
  acervo server
  acervo index ./acordaos
  acervo search "responsabilidade civil do estado"
  acervo search --mode keyword "HC 152.752"
  acervo status`)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command faasd is the invocation plane's HTTP entrypoint: it wires the
// code store, compile cache, sandbox executor, agentic executor, and
// rate limiter onto the Gin router in internal/httpapi.
package main

import (
	"os"
	"time"

	"github.com/AleutianAI/faas-core/internal/agentic"
	"github.com/AleutianAI/faas-core/internal/aiclient"
	"github.com/AleutianAI/faas-core/internal/codestore"
	"github.com/AleutianAI/faas-core/internal/codestore/kvbadger"
	"github.com/AleutianAI/faas-core/internal/compilecache"
	"github.com/AleutianAI/faas-core/internal/executor"
	"github.com/AleutianAI/faas-core/internal/httpapi"
	"github.com/AleutianAI/faas-core/internal/ratelimit"
	"github.com/AleutianAI/faas-core/pkg/logging"
)

func main() {
	logger := logging.Default()

	badgerDir := os.Getenv("FAASD_BADGER_DIR")
	var kv codestore.KV
	if badgerDir == "" {
		logger.Warn("FAASD_BADGER_DIR not set, using in-memory badger KV")
		db, err := kvbadger.OpenInMemory()
		if err != nil {
			logger.Error("failed to open in-memory badger KV", "error", err)
			os.Exit(1)
		}
		kv = db
	} else {
		db, err := kvbadger.OpenWithPath(badgerDir)
		if err != nil {
			logger.Error("failed to open badger KV", "dir", badgerDir, "error", err)
			os.Exit(1)
		}
		kv = db
	}

	store := codestore.New(kv, codestore.NewMemObjectStore())
	cache := compilecache.New(compileCacheCapacity(), compileCacheTTL())
	codeExec := executor.New(store, cache)

	var ai aiclient.Client
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		ai = aiclient.NewOpenAIClient(apiKey)
	} else {
		logger.Warn("OPENAI_API_KEY not set, agentic invocations will fail until an AI client is configured")
		ai = aiclient.NewFakeClient()
	}
	agenticExec := agentic.New(ai)

	registry := httpapi.NewRegistry()

	workers := executor.WorkerLoaderBaseURL{
		Python: os.Getenv("FAASD_PYTHON_WORKER_URL"),
		CSharp: os.Getenv("FAASD_CSHARP_WORKER_URL"),
	}

	server := httpapi.NewServer(registry, codeExec, agenticExec, workers)
	limiter := ratelimit.DefaultClient()
	router := httpapi.NewRouter(server, limiter)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Info("starting faasd", "port", port)
	if err := router.Run(":" + port); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func compileCacheCapacity() int {
	return 256
}

func compileCacheTTL() time.Duration {
	return 30 * time.Minute
}

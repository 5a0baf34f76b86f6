package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"xbtree/conf"
	"xbtree/logger"
	"xbtree/storage/btree"
)

func main() {
	configPath := flag.String("config", "", "path to an ini config file")
	flag.Parse()

	cfg, err := conf.NewCfg().Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(logger.LogConfig{
		ErrorLogPath: cfg.LogError,
		InfoLogPath:  cfg.LogInfos,
		LogLevel:     cfg.LogLevel,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Fatalf("create data dir %s: %v", cfg.DataDir, err)
	}

	path := cfg.IndexPath("demo")
	tree, err := btree.Open(path, cfg.PageCacheSize)
	if err != nil {
		logger.Fatalf("open %s: %v", path, err)
	}
	defer tree.Close()

	fmt.Println("=== xbtree demo ===")

	fmt.Println("\n1. Inserting sample rows...")
	fruits := map[string]string{
		"apple":  "red fruit",
		"banana": "yellow fruit",
		"cherry": "small red fruit",
		"durian": "spiky fruit",
	}
	i := 0
	for key, value := range fruits {
		tree.Insert(key, value, fmt.Sprintf("r%d", i))
		i++
	}

	fmt.Println("\n2. Point lookups...")
	for _, key := range []string{"apple", "cherry", "missing"} {
		rows := tree.Get(key)
		if len(rows) == 0 {
			fmt.Printf("  %s: not found\n", key)
			continue
		}
		fmt.Printf("  %s: %s\n", key, rows[0][0])
	}

	fmt.Println("\n3. Removing banana...")
	fmt.Printf("  removed: %v\n", tree.Remove("banana"))

	fmt.Println("\n4. Bulk load...")
	for n := 0; n < 200; n++ {
		key := fmt.Sprintf("key%04d", n)
		tree.Insert(key, fmt.Sprintf("value-%d", n), fmt.Sprintf("row-%d", n))
	}

	flushed := tree.FlushBuffer()
	fmt.Printf("  flushed %d dirty pages\n", flushed)

	stats := tree.Stats()
	fmt.Println("\n5. Tree stats")
	fmt.Printf("  height=%d nodes=%d splits=%d merges=%d fill=%.2f writes=%d\n",
		stats.Height, stats.NodeCount, stats.SplitCount, stats.MergeCount,
		stats.FillFactor, stats.FileWriteCount)

	fmt.Println("\n6. Buffer stats")
	fmt.Printf("  %s\n", tree.BufferStats())

	fmt.Printf("\nindex file: %s\n", filepath.Clean(path))
	fmt.Println("=== done ===")
}

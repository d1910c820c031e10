// Command inspect dumps store keys by prefix for debugging.
package main

import (
	"flag"
	"fmt"
	"os"

	"commsdb/pkg/logger"
	"commsdb/pkg/store"
)

func main() {
	dbPath := flag.String("db", "", "database path")
	prefix := flag.String("prefix", "", "key prefix filter (empty = all keys)")
	flag.Parse()
	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "--db required")
		os.Exit(2)
	}

	logger.InitWithLevel("error")
	if err := store.Open(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	keys, err := store.ListKeys(*prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list failed: %v\n", err)
		os.Exit(1)
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", len(keys))
}

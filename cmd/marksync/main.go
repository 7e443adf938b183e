package main

import (
	"log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("❌ marksync failed: %v", err)
	}
}

package config_test

import (
	"fmt"
	"log"

	"github.com/ajitpratap0/wealthpack/pkg/config"
)

// ExampleDefault shows the defaults a run starts from.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Tier: %s\n", cfg.CompressionAlgorithm)
	fmt.Printf("Row group size: %d\n", cfg.RowGroupSize)
	fmt.Printf("Dictionary threshold: %.2f\n", cfg.DictionaryThreshold)
	fmt.Printf("Spill codec: %s\n", cfg.Sort.SpillCodec)

	// Output:
	// Tier: balanced
	// Row group size: 122880
	// Dictionary threshold: 0.05
	// Spill codec: lz4
}

// ExampleConfig_Validate tunes a configuration and validates it.
func ExampleConfig_Validate() {
	cfg := config.Default()
	cfg.CompressionAlgorithm = "max-ratio"
	cfg.RowGroupSize = 50_000
	cfg.Strict = true

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	fmt.Println("Configuration is valid!")

	// Output:
	// Configuration is valid!
}

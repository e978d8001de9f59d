package main

import (
	"fmt"
	"os"

	"github.com/marcelsud/tymbug/webhook/providers"
)

/* validate-providers - Standalone CLI tool to validate providers.yaml
 * Usage: go run cmd/validate-providers/main.go [providers.yaml]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	providersFile := "providers.yaml"
	if len(os.Args) > 1 {
		providersFile = os.Args[1]
	}

	fmt.Printf("Validating providers file: %s\n\n", providersFile)

	cfg, err := providers.LoadConfig(providersFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ VALIDATION PASSED\n\n")
	fmt.Printf("Loaded %d provider(s):\n", len(cfg.Providers))

	for i, p := range cfg.Providers {
		fmt.Printf("\n%d. Provider: %s\n", i+1, p.Name)
		if p.Secret != "" {
			fmt.Printf("   Secret:            configured\n")
		} else {
			fmt.Printf("   Secret:            none (signature checks skipped)\n")
		}
		fmt.Printf("   Require signature: %t\n", p.RequireSignature)
	}

	fmt.Printf("\n✓ All providers are valid!\n")
	os.Exit(0)
}

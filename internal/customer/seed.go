package customer

import (
	"context"
	"fmt"

	"github.com/aquamarinepk/customers/internal/aqm/seed"
)

// DemoCustomers are loaded by DemoSeeds on a fresh environment.
var DemoCustomers = []Fields{
	{Username: "alice", Address: "1 Main St", Email: "alice@example.com"},
	{Username: "bob", Address: "22 Harbour Rd", Email: "bob@example.com"},
	{Username: "carol", Address: "7 Elm Ave", Email: "carol@example.com"},
}

// DemoSeeds returns the seeds that populate an empty store with DemoCustomers.
func DemoSeeds(store Store) []seed.Seed {
	return []seed.Seed{
		{
			ID:          "2024-01-customers-demo",
			Description: "demo customers",
			Run: func(ctx context.Context) error {
				for _, f := range DemoCustomers {
					if _, err := store.Insert(ctx, f.Customer()); err != nil {
						return fmt.Errorf("insert demo customer %s: %w", f.Username, err)
					}
				}
				return nil
			},
		},
	}
}

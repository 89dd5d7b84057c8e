package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// AccountSeeder is satisfied by the users service.
type AccountSeeder interface {
	SeedDefaultAccounts(ctx context.Context, password, emailDomain string) (int, error)
}

// SeedOptions defines available flags for the seed command.
type SeedOptions struct {
	Password   string
	Domain     string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// SeedSummary describes the JSON response for seed.
type SeedSummary struct {
	Created int    `json:"created"`
	Domain  string `json:"domain"`
}

// SeedCommand creates the default admin, staff and vendor accounts on an
// empty user store.
func SeedCommand(ctx context.Context, seeder AccountSeeder, opts SeedOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if len(opts.Password) < 8 {
		_, _ = fmt.Fprintln(opts.Stderr, "seed: --password is required and must be at least 8 characters")
		return 1
	}
	if opts.Domain == "" {
		opts.Domain = "warehouse.local"
	}
	created, err := seeder.SeedDefaultAccounts(ctx, opts.Password, opts.Domain)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "seed: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(SeedSummary{Created: created, Domain: opts.Domain}); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "seed: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	if created == 0 {
		_, _ = fmt.Fprintln(opts.Stdout, "users already exist; nothing seeded")
		return 0
	}
	_, _ = fmt.Fprintf(opts.Stdout, "seeded %d accounts: admin@%[2]s staff@%[2]s vendor@%[2]s\n", created, opts.Domain)
	return 0
}

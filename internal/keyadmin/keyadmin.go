// Package keyadmin implements the operator commands for managing API keys.
package keyadmin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edvin/licensegate/internal/keystore"
	"github.com/edvin/licensegate/internal/model"
)

// Store is the subset of the key store the commands need.
type Store interface {
	Put(ctx context.Context, k *model.APIKey) error
	Revoke(ctx context.Context, key string) error
	List(ctx context.Context) ([]model.APIKey, error)
}

// Listing is one row of `keyadmin list`. The full key is never included.
type Listing struct {
	ID        string    `yaml:"id"`
	Prefix    string    `yaml:"prefix"`
	Customer  string    `yaml:"customer"`
	Status    string    `yaml:"status"`
	CreatedAt time.Time `yaml:"created_at"`
}

const (
	FormatTable = "table"
	FormatYAML  = "yaml"
)

// Create issues a new key for customer and prints it. This is the only time
// the full key is shown.
func Create(ctx context.Context, store Store, customer string, out io.Writer) error {
	if customer == "" {
		return errors.New("customer is required")
	}

	rec, err := keystore.NewRecord(customer)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, rec); err != nil {
		return fmt.Errorf("store key: %w", err)
	}

	fmt.Fprintf(out, "API key created successfully.\n\n")
	fmt.Fprintf(out, "  Customer: %s\n", rec.Customer)
	fmt.Fprintf(out, "  ID:       %s\n", rec.ID)
	fmt.Fprintf(out, "  Key:      %s\n\n", rec.Key)
	fmt.Fprintf(out, "Save this key. It will not be shown again.\n")
	return nil
}

// List prints every key in the store in the given format.
func List(ctx context.Context, store Store, format string, out io.Writer) error {
	keys, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}

	rows := make([]Listing, 0, len(keys))
	for i := range keys {
		rows = append(rows, toListing(&keys[i]))
	}

	switch format {
	case FormatTable, "":
		return writeTable(out, rows)
	case FormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want %s or %s)", format, FormatTable, FormatYAML)
	}
}

// Revoke deactivates key. The record is kept.
func Revoke(ctx context.Context, store Store, key string, out io.Writer) error {
	if key == "" {
		return errors.New("key is required")
	}
	if err := store.Revoke(ctx, key); err != nil {
		if errors.Is(err, keystore.ErrNotFound) {
			return fmt.Errorf("no such key: %s...", prefix(key))
		}
		return fmt.Errorf("revoke key: %w", err)
	}
	fmt.Fprintf(out, "Revoked key %s...\n", prefix(key))
	return nil
}

func toListing(k *model.APIKey) Listing {
	status := "ACTIVE"
	if !k.Active {
		status = "REVOKED"
	}
	return Listing{
		ID:        k.ID,
		Prefix:    k.KeyPrefix(),
		Customer:  k.Customer,
		Status:    status,
		CreatedAt: k.CreatedAt,
	}
}

func writeTable(out io.Writer, rows []Listing) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(out, "No API keys found.")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PREFIX\tSTATUS\tCUSTOMER\tCREATED")
	for _, r := range rows {
		created := "-"
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s...\t%s\t%s\t%s\n", r.Prefix, r.Status, r.Customer, created)
	}
	return tw.Flush()
}

func prefix(key string) string {
	k := model.APIKey{Key: key}
	return k.KeyPrefix()
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/flourisha/brain/internal/adapter/postgres"
	"github.com/flourisha/brain/internal/config"
	"github.com/flourisha/brain/internal/domain/access"
	"github.com/flourisha/brain/internal/domain/apikey"
	"github.com/flourisha/brain/internal/domain/tenant"
	"github.com/flourisha/brain/internal/service"
)

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "create-tenant":
		return runAdminCreateTenant(args[1:])
	case "list-tenants":
		return runAdminListTenants(args[1:])
	case "create-api-key":
		return runAdminCreateAPIKey(args[1:])
	case "issue-token":
		return runAdminIssueToken(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: flourisha admin <command> [options]

Commands:
  create-tenant    Register a tenant
  list-tenants     List all tenants
  create-api-key   Issue an API key (printed once)
  issue-token      Sign a bearer token for local development
  help             Show this help message

Examples:
  flourisha admin create-tenant --name "Acme" --slug acme
  flourisha admin create-api-key --tenant <id> --user alice --name laptop --scopes energy:read,energy:write
  flourisha admin issue-token --tenant <id> --user alice --ttl 24h
`)
}

type adminDeps struct {
	tenants *service.TenantService
	auth    *service.AuthService
}

func loadAdminDeps(ctx context.Context) (*adminDeps, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	store := postgres.NewStore(pool)
	tenants := service.NewTenantService(store, nil, 0)
	return &adminDeps{
		tenants: tenants,
		auth:    service.NewAuthService(store, tenants, cfg.Auth),
	}, pool.Close, nil
}

func runAdminCreateTenant(args []string) error {
	fs := flag.NewFlagSet("create-tenant", flag.ContinueOnError)
	name := fs.String("name", "", "tenant display name (required)")
	slug := fs.String("slug", "", "URL-safe tenant slug (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	deps, cleanup, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	t, err := deps.tenants.Create(ctx, tenant.CreateRequest{Name: *name, Slug: *slug})
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return printTenants([]tenant.Tenant{*t})
}

func runAdminListTenants(args []string) error {
	fs := flag.NewFlagSet("list-tenants", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	deps, cleanup, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	tenants, err := deps.tenants.List(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	if len(tenants) == 0 && isTerminal() {
		fmt.Println("No tenants found.")
		return nil
	}
	return printTenants(tenants)
}

func runAdminCreateAPIKey(args []string) error {
	fs := flag.NewFlagSet("create-api-key", flag.ContinueOnError)
	tenantID := fs.String("tenant", "", "tenant id (required)")
	userID := fs.String("user", "", "user the key acts as (required)")
	name := fs.String("name", "", "key label (required)")
	scopes := fs.String("scopes", "", "comma-separated scopes; empty grants every scope")
	expires := fs.Duration("expires", 0, "lifetime, e.g. 720h; 0 never expires")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	deps, cleanup, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	req := apikey.CreateRequest{TenantID: *tenantID, UserID: *userID, Name: *name, ExpiresIn: *expires}
	if *scopes != "" {
		req.Scopes = strings.Split(*scopes, ",")
	}
	issued, err := deps.auth.CreateAPIKey(ctx, req)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	if !isTerminal() {
		return json.NewEncoder(os.Stdout).Encode(issued)
	}
	fmt.Fprintf(os.Stderr, "API key created: %s (prefix %s). It will not be shown again.\n", issued.APIKey.Name, issued.APIKey.Prefix)
	fmt.Println(issued.PlainKey)
	return nil
}

func runAdminIssueToken(args []string) error {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	tenantID := fs.String("tenant", "", "tenant id (required)")
	userID := fs.String("user", "", "token subject (required)")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ttl <= 0 {
		return errors.New("--ttl must be positive")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not configured")
	}
	auth := service.NewAuthService(nil, nil, cfg.Auth)
	tok, err := auth.IssueToken(access.Claims{TenantID: *tenantID, Subject: *userID}, *ttl)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Println(tok)
	return nil
}

// printTenants writes a table when stdout is a terminal and JSON otherwise.
func printTenants(tenants []tenant.Tenant) error {
	if !isTerminal() {
		return json.NewEncoder(os.Stdout).Encode(tenants)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSLUG\tNAME\tENABLED\tCREATED")
	for i := range tenants {
		t := &tenants[i]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", t.ID, t.Slug, t.Name, t.Enabled, t.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) //nolint:gosec // fd fits in int
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/term"

	"ledger/internal/amqp"
	"ledger/internal/auth"
	"ledger/internal/backend"
	"ledger/internal/config"
	"ledger/internal/core"
	"ledger/internal/services"
	"ledger/internal/store/sqlite"
)

// Globals are shared by every command.
type Globals struct {
	out io.Writer
}

func (g *Globals) stdout() io.Writer {
	if g.out == nil {
		return os.Stdout
	}
	return g.out
}

// ErrEphemeralBackend is returned when user administration targets a store
// that forgets everything when the command exits.
var ErrEphemeralBackend = errors.New("DATA_BACKEND=memory keeps no data between runs; use sqlite")

// openAuth opens the configured store without the change feed and returns
// the auth service over it.
func openAuth(ctx context.Context) (*services.AuthService, backend.CleanupFunc, error) {
	cfg := config.Load()
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	if bc.Type == backend.MemoryBackend {
		return nil, nil, ErrEphemeralBackend
	}
	bc.AMQPURL = ""

	result, err := backend.NewFactory(nil).CreateBackend(ctx, bc)
	if err != nil {
		return nil, nil, fmt.Errorf("open backend: %w", err)
	}
	svc := services.NewAuthService(result.Store,
		auth.NewTokens(cfg.JWTSecret, cfg.JWTExpiresIn),
		auth.NewPasswords(cfg.BcryptCost))
	return svc, result.Cleanup, nil
}

type CreateAdminCmd struct {
	Email    string `help:"Admin email." default:"admin@example.com"`
	Name     string `help:"Admin display name." default:"Admin"`
	Password string `help:"Admin password. Prompted without echo when omitted." env:"ADMIN_PASSWORD"`
}

func (c *CreateAdminCmd) Run(g *Globals) error {
	ctx := context.Background()
	svc, cleanup, err := openAuth(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	out := g.stdout()
	_, err = svc.UserByEmail(ctx, c.Email)
	if err == nil {
		_, _ = fmt.Fprintf(out, "Admin %s already exists\n", core.NormalizeEmail(c.Email))
		return nil
	}
	if core.KindOf(err) != core.KindNotFound {
		return err
	}

	password := c.Password
	if password == "" {
		if password, err = readPassword(out); err != nil {
			return err
		}
	}

	u, err := svc.Register(ctx, services.RegisterInput{
		Name:     c.Name,
		Email:    c.Email,
		Password: password,
		Role:     core.RoleAdmin,
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Created admin %s (%s)\n", u.Email, u.ID)
	return nil
}

// readPassword prompts twice on the terminal without echo.
func readPassword(out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("password required: pass --password or run in a terminal")
	}

	read := func(prompt string) (string, error) {
		_, _ = fmt.Fprint(out, prompt)
		b, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	first, err := read("Password: ")
	if err != nil {
		return "", err
	}
	second, err := read("Confirm password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	if first == "" {
		return "", errors.New("password cannot be empty")
	}
	return first, nil
}

type SetStatusCmd struct {
	Email  string `help:"User email." required:""`
	Status string `help:"New status." required:"" enum:"active,blocked"`
}

func (c *SetStatusCmd) Run(g *Globals) error {
	ctx := context.Background()
	svc, cleanup, err := openAuth(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	u, err := svc.SetStatus(ctx, c.Email, core.Status(c.Status))
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.stdout(), "User %s is now %s\n", u.Email, u.Status)
	return nil
}

type SetRoleCmd struct {
	Email string `help:"User email." required:""`
	Role  string `help:"New role." required:"" enum:"user,admin"`
}

func (c *SetRoleCmd) Run(g *Globals) error {
	ctx := context.Background()
	svc, cleanup, err := openAuth(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	u, err := svc.SetRole(ctx, c.Email, core.Role(c.Role))
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.stdout(), "User %s is now %s\n", u.Email, u.Role)
	return nil
}

type MigrateCmd struct {
	DB string `help:"SQLite database path. Defaults to SQLITE_DB_PATH." type:"path"`
}

func (c *MigrateCmd) Run(g *Globals) error {
	path := c.DB
	if path == "" {
		path = config.Load().SQLiteDBPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}

	dsn := sqlite.DSN(path)
	if err := sqlite.RunMigrations(dsn); err != nil {
		return err
	}
	version, dirty, err := sqlite.SchemaVersion(dsn)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.stdout(), "Schema at version %d (dirty=%t)\n", version, dirty)
	return nil
}

type EventsCmd struct {
	Count int `help:"Stop after this many events. Zero waits until interrupted." default:"0"`
}

func (c *EventsCmd) Run(g *Globals) error {
	cfg := config.Load()
	if cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return err
	}
	defer client.Close()

	out := g.stdout()
	seen := 0
	err = client.ConsumeEvents(ctx, func(evt *amqp.LedgerEvent) error {
		data, err := evt.ToJSON()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, string(data))
		seen++
		if c.Count > 0 && seen >= c.Count {
			cancel()
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

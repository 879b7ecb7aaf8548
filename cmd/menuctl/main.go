package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"

	"github.com/docopt/docopt-go"

	"menuboard/internal/menu/catalog"
	"menuboard/internal/menu/menusync"
	"menuboard/internal/menu/models"
	"menuboard/internal/menu/push"
	"menuboard/internal/platform/config"
	"menuboard/internal/platform/logger"
	"menuboard/internal/platform/redis"
	"menuboard/pkg/platform/strings"
)

const MenuCtlVersion = "0.1.0"

func main() {
	usage := `Menu board control.

Configuration is read from the MENUBOARD_* environment (and .env when present).

Usage:
    menuctl snapshot [--env=<file>] <category_id>...
    menuctl watch [--env=<file>] <category_id>...
    menuctl publish [--env=<file>] <type> <payload>
    menuctl -h | --help
    menuctl --version

Options:
    -h --help       Show this screen.
    --version       Show version.
    --env=<file>    Env file to seed the environment from [default: .env].

Types for publish:
    productUpdate, productDelete, extraUpdate, extraDelete`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], MenuCtlVersion)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	envFile, _ := opts.String("--env")
	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	log := logger.New("text", cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if snapshot_, _ := opts.Bool("snapshot"); snapshot_ {
		err = snapshot(ctx, cfg, log, opts)
	} else if watch_, _ := opts.Bool("watch"); watch_ {
		err = watch(ctx, cfg, log, opts)
	} else if publish_, _ := opts.Bool("publish"); publish_ {
		err = publish(ctx, cfg, opts)
	}
	if err != nil {
		log.Error("menuctl failed", "error", err)
		os.Exit(1)
	}
}

func newCatalog(cfg config.Config, log *slog.Logger) (*catalog.Client, error) {
	return catalog.New(cfg.API.BaseURL,
		catalog.WithBasicAuth(cfg.API.Username, cfg.API.Password),
		catalog.WithLogger(log),
	)
}

func categoryIDs(opts docopt.Opts) ([]models.CategoryID, error) {
	raw, _ := opts["<category_id>"].([]string)
	ids := make([]models.CategoryID, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("category id %q: %w", s, err)
		}
		ids = append(ids, models.CategoryID(id))
	}
	return ids, nil
}

// snapshot resolves the categories and prints the projection once.
func snapshot(ctx context.Context, cfg config.Config, log *slog.Logger, opts docopt.Opts) error {
	ids, err := categoryIDs(opts)
	if err != nil {
		return err
	}
	client, err := newCatalog(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.API.Timeout)
	defer cancel()
	return writeSnapshot(ctx, client, ids, os.Stdout)
}

// snapshotOutput is the JSON printed by snapshot. Categories follow the order
// of the requested ids.
type snapshotOutput struct {
	Categories []string          `json:"categories"`
	Projection models.Projection `json:"projection"`
}

func writeSnapshot(ctx context.Context, cat menusync.Catalog, ids []models.CategoryID, w io.Writer) error {
	ids = strings.Dedupe(slices.Clone(ids))
	resolved, err := menusync.ResolveNames(ctx, cat, ids)
	if err != nil {
		return err
	}
	names := menusync.DisplayOrder(ids, resolved)
	projection, err := menusync.LoadSnapshot(ctx, cat, names)
	if err != nil {
		return err
	}
	return writeJSON(w, snapshotOutput{Categories: names, Projection: projection})
}

// watch keeps a session live on the websocket channel and prints every
// published state until interrupted.
func watch(ctx context.Context, cfg config.Config, log *slog.Logger, opts docopt.Opts) error {
	ids, err := categoryIDs(opts)
	if err != nil {
		return err
	}
	client, err := newCatalog(cfg, log)
	if err != nil {
		return err
	}

	hub := push.NewHub(push.WithHubLogger(log))
	ws, err := push.NewWebsocketSource(cfg.Push.URL, hub, push.WithWebsocketLogger(log))
	if err != nil {
		return err
	}
	go func() {
		if err := ws.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("push channel stopped", "error", err)
		}
	}()

	session := menusync.NewCategorySession(client, hub, ids, menusync.WithLogger(log))
	defer session.Close()

	for {
		changed := session.Changes()
		st := session.State()
		if err := printJSON(map[string]any{
			"version":    st.Version,
			"loading":    st.Loading,
			"error":      st.ErrorMessage(),
			"categories": st.Categories,
			"projection": st.Projection,
		}); err != nil {
			return err
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return nil
		}
	}
}

// publish sends one envelope on the Redis push channel.
func publish(ctx context.Context, cfg config.Config, opts docopt.Opts) error {
	kind, _ := opts.String("<type>")
	payload, _ := opts.String("<payload>")
	if !push.Kind(kind).IsValid() {
		return fmt.Errorf("unknown event type %q", kind)
	}
	if !json.Valid([]byte(payload)) {
		return fmt.Errorf("payload is not valid JSON")
	}
	if cfg.Redis.URL == "" {
		return fmt.Errorf("MENUBOARD_REDIS_URL is not set")
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	env := push.Envelope{Type: push.Kind(kind), Payload: json.RawMessage(payload)}
	return push.Publish(ctx, rdb.Client, cfg.Redis.Channel, env)
}

func printJSON(v any) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

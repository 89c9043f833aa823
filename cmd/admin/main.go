package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"supportbot/backend/internal/achievement"
	"supportbot/backend/internal/analysis"
	"supportbot/backend/internal/config"
	"supportbot/backend/internal/queue"
	"supportbot/backend/internal/storage"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "err", err)
	}

	app := &cli.App{
		Name:  "supportbot-admin",
		Usage: "moderation tools for the support exchange",
		Flags: config.StoreFlags(),
		Before: func(cctx *cli.Context) error {
			cfg := config.FromCLI(cctx)
			_, err := config.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			return err
		},
		Commands: []*cli.Command{
			listCmd,
			complaintsCmd,
			searchCmd,
			blockCmd,
			unblockCmd,
			setRatingCmd,
			evaluateCmd,
			statsCmd,
			pruneCmd,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openStore connects to the database and, when configured, to Redis so ban
// changes reach the running servers' cache.
func openStore(cctx *cli.Context) (*storage.Service, func(), error) {
	cfg := config.FromCLI(cctx)
	db, err := storage.SetupDatabase(cfg.DatabaseURL, 1)
	if err != nil {
		return nil, nil, err
	}
	rdb, err := storage.SetupRedis(cctx.Context, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if sqldb, err := db.DB(); err == nil {
			sqldb.Close()
		}
		if rdb != nil {
			rdb.Close()
		}
	}
	return storage.NewStorageService(db, rdb), cleanup, nil
}

func userArg(cctx *cli.Context, i int) (int64, error) {
	raw := cctx.Args().Get(i)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}

var listCmd = &cli.Command{
	Name:  "list",
	Usage: "users with the most complaints and their risk level",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Value: 20},
	},
	Action: func(cctx *cli.Context) error {
		s, cleanup, err := openStore(cctx)
		if err != nil {
			return err
		}
		defer cleanup()

		sums, err := s.ComplaintSummaries(cctx.Context, cctx.Int("limit"))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USER\tNICKNAME\tCOMPLAINTS\tRISK\tBLOCKED")
		for _, a := range analysis.Assess(sums) {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%t\n", a.UserID, a.Nickname, a.ComplaintCount, a.Risk, a.IsBlocked)
		}
		return w.Flush()
	},
}

var complaintsCmd = &cli.Command{
	Name:      "complaints",
	Usage:     "show the complaints filed against a user",
	ArgsUsage: "<user-id>",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Value: 20},
	},
	Action: func(cctx *cli.Context) error {
		id, err := userArg(cctx, 0)
		if err != nil {
			return err
		}
		s, cleanup, err := openStore(cctx)
		if err != nil {
			return err
		}
		defer cleanup()

		recs, err := s.ListComplaints(cctx.Context, id, cctx.Int("limit"))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tBY\tCATEGORY\tKIND\tCONTENT")
		for _, r := range recs {
			content := r.Text
			if content == "" {
				content = r.FileID
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", r.CreatedAt.Format(time.DateTime), r.ComplainantID, r.Category, r.Kind, content)
		}
		return w.Flush()
	},
}

var searchCmd = &cli.Command{
	Name:      "search",
	Usage:     "find users by nickname fragment",
	ArgsUsage: "<fragment>",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Value: 20},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() != 1 {
			return fmt.Errorf("expected exactly one search fragment")
		}
		s, cleanup, err := openStore(cctx)
		if err != nil {
			return err
		}
		defer cleanup()

		users, err := s.SearchUsers(cctx.Context, cctx.Args().First(), cctx.Int("limit"))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USER\tNICKNAME\tRATING\tBLOCKED\tJOINED")
		for _, u := range users {
			fmt.Fprintf(w, "%d\t%s\t%d\t%t\t%s\n", u.ID, u.Nickname, u.Rating, u.IsBlocked, u.CreatedAt.Format(time.DateOnly))
		}
		return w.Flush()
	},
}

func setBlocked(block bool) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		id, err := userArg(cctx, 0)
		if err != nil {
			return err
		}
		s, cleanup, err := openStore(cctx)
		if err != nil {
			return err
		}
		defer cleanup()

		var changed bool
		if block {
			changed, err = s.BlockUser(cctx.Context, id)
		} else {
			changed, err = s.UnblockUser(cctx.Context, id)
		}
		if err != nil {
			return err
		}
		s.CacheBan(cctx.Context, id, block)

		state := "unblocked"
		if block {
			state = "blocked"
		}
		if !changed {
			fmt.Printf("user %d was already %s\n", id, state)
			return nil
		}
		slog.Info("moderator changed block flag", "user", id, "blocked", block)
		fmt.Printf("user %d %s\n", id, state)
		return nil
	}
}

var blockCmd = &cli.Command{
	Name:      "block",
	Usage:     "block a user",
	ArgsUsage: "<user-id>",
	Action:    setBlocked(true),
}

var unblockCmd = &cli.Command{
	Name:      "unblock",
	Usage:     "unblock a user",
	ArgsUsage: "<user-id>",
	Action:    setBlocked(false),
}

var setRatingCmd = &cli.Command{
	Name:      "set-rating",
	Usage:     "overwrite a user's rating",
	ArgsUsage: "<user-id> <rating>",
	Action: func(cctx *cli.Context) error {
		id, err := userArg(cctx, 0)
		if err != nil {
			return err
		}
		rating, err := strconv.Atoi(cctx.Args().Get(1))
		if err != nil || rating < 0 {
			return fmt.Errorf("invalid rating %q", cctx.Args().Get(1))
		}
		s, cleanup, err := openStore(cctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := s.SetRating(cctx.Context, id, rating); err != nil {
			return err
		}
		fmt.Printf("user %d rating set to %d\n", id, rating)
		return nil
	},
}

var evaluateCmd = &cli.Command{
	Name:      "evaluate",
	Usage:     "run achievement checks for a user",
	ArgsUsage: "<user-id>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "action", Value: string(achievement.ActionAll), Usage: "limit the pass to one trigger"},
		&cli.BoolFlag{Name: "dry-run", Usage: "report what would be granted without granting it"},
	},
	Action: func(cctx *cli.Context) error {
		id, err := userArg(cctx, 0)
		if err != nil {
			return err
		}
		action, ok := achievement.ParseAction(cctx.String("action"))
		if !ok {
			return fmt.Errorf("unknown action %q", cctx.String("action"))
		}
		s, cleanup, err := openStore(cctx)
		if err != nil {
			return err
		}
		defer cleanup()

		e := achievement.NewEvaluator(s, achievement.DefaultCatalog())
		if err := e.SeedCatalog(cctx.Context); err != nil {
			return err
		}

		var granted []achievement.Achievement
		if cctx.Bool("dry-run") {
			granted, err = e.Preview(cctx.Context, id, action)
		} else {
			granted, err = e.Evaluate(cctx.Context, id, action)
		}
		if err != nil {
			return err
		}
		if len(granted) == 0 {
			fmt.Println("nothing to grant")
			return nil
		}
		for _, a := range granted {
			fmt.Printf("%s %s (%s)\n", a.Icon, a.Name, a.ID)
		}
		return nil
	},
}

var statsCmd = &cli.Command{
	Name:  "stats",
	Usage: "community totals",
	Action: func(cctx *cli.Context) error {
		s, cleanup, err := openStore(cctx)
		if err != nil {
			return err
		}
		defer cleanup()

		st, err := s.Stats(cctx.Context)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	},
}

var pruneCmd = &cli.Command{
	Name:  "prune-deliveries",
	Usage: "forget old support-message deliveries so they can be shown again",
	Flags: []cli.Flag{
		&cli.DurationFlag{Name: "older-than", Value: 30 * 24 * time.Hour},
	},
	Action: func(cctx *cli.Context) error {
		s, cleanup, err := openStore(cctx)
		if err != nil {
			return err
		}
		defer cleanup()

		n, err := queue.NewService(s, queue.NewMemCursorStore()).PruneDeliveries(cctx.Context, cctx.Duration("older-than"))
		if err != nil {
			return err
		}
		fmt.Printf("removed %d deliveries\n", n)
		return nil
	},
}

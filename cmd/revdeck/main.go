// Command revdeck is a small front end over the scheduler: deck tree
// with due counts, an interactive study loop, and filtered-deck
// maintenance.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/declanbyrne/revdeck/internal/config"
	"github.com/declanbyrne/revdeck/internal/decks"
	"github.com/declanbyrne/revdeck/internal/domain"
	"github.com/declanbyrne/revdeck/internal/sched"
	"github.com/declanbyrne/revdeck/internal/storage"
)

func main() {
	flags := pflag.NewFlagSet("revdeck", pflag.ContinueOnError)
	cfgPath := flags.String("config", "revdeck.yaml", "path to the config file")
	flags.String("db_path", "", "path to the collection database")
	flags.String("deck", "", "deck to study, by full name")
	flags.String("spread", "", "new card spread: distribute, new-last or new-first")
	flags.String("log_level", "", "log level: debug, info, warn or error")
	flags.Bool("no_color", false, "disable colored output")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: revdeck [flags] <tree|counts|study|rebuild|empty|unbury>\n\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if flags.NArg() < 1 {
		flags.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "revdeck: %v\n", err)
		os.Exit(1)
	}
	if cfg.NoColor {
		color.NoColor = true
	}
	log := newLogger(cfg.LogLevel)

	if err := run(flags.Args(), cfg, log); err != nil {
		log.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func spreadOf(s string) sched.Spread {
	switch s {
	case "new-last":
		return sched.SpreadNewLast
	case "new-first":
		return sched.SpreadNewFirst
	}
	return sched.SpreadDistribute
}

func run(args []string, cfg *config.Config, log *slog.Logger) error {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	registry, err := decks.Load(db, log)
	if err != nil {
		return err
	}
	if cfg.Deck != "" {
		deck := registry.ByName(cfg.Deck)
		if deck == nil {
			return fmt.Errorf("unknown deck %q", cfg.Deck)
		}
		if err := registry.Select(deck.ID); err != nil {
			return err
		}
	}

	scheduler, err := sched.New(db, registry, sched.Options{
		CollapseTime: cfg.CollapseTime,
		Spread:       spreadOf(cfg.Spread),
		Logger:       log,
	})
	if err != nil {
		return err
	}

	switch args[0] {
	case "tree":
		return runTree(scheduler)
	case "counts":
		return runCounts(scheduler)
	case "study":
		return runStudy(scheduler, log)
	case "rebuild":
		return runDynOp(args, registry, func(id int64) error {
			n, err := scheduler.RebuildDyn(id)
			if err != nil {
				return err
			}
			fmt.Printf("gathered %d cards\n", n)
			return nil
		})
	case "empty":
		return runDynOp(args, registry, func(id int64) error { return scheduler.EmptyDyn(id) })
	case "unbury":
		return scheduler.UnburyCards()
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func runTree(s *sched.Scheduler) error {
	tree, err := s.DeckDueTree()
	if err != nil {
		return err
	}
	printTree(tree, 0)
	return nil
}

func printTree(nodes []*sched.DeckDueNode, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		name := n.Name
		if n.Dyn {
			name = color.MagentaString(name)
		}
		fmt.Printf("%s%s  %s %s %s\n", indent, name,
			color.BlueString("%d", n.New),
			color.RedString("%d", n.Lrn),
			color.GreenString("%d", n.Rev))
		printTree(n.Children, depth+1)
	}
}

func runCounts(s *sched.Scheduler) error {
	newCount, lrn, rev, err := s.Counts()
	if err != nil {
		return err
	}
	fmt.Printf("new %s  learning %s  review %s\n",
		color.BlueString("%d", newCount),
		color.RedString("%d", lrn),
		color.GreenString("%d", rev))
	return nil
}

// runStudy loops: fetch a card, show the predicted intervals for each
// ease, read a grade from stdin, answer. "q" stops.
func runStudy(s *sched.Scheduler, log *slog.Logger) error {
	in := bufio.NewScanner(os.Stdin)
	for {
		card, err := s.GetCard()
		if err != nil {
			return err
		}
		if card == nil {
			fmt.Println("Congratulations, nothing due today.")
			return nil
		}
		newCount, lrn, rev, err := s.Counts()
		if err != nil {
			return err
		}
		fmt.Printf("card %d (deck %d)  [%d %d %d]\n", card.ID, card.DeckID, newCount, lrn, rev)
		for _, ease := range []domain.Ease{domain.EaseAgain, domain.EaseHard, domain.EaseGood, domain.EaseEasy} {
			ivl, err := s.NextIvlString(card, ease)
			if err != nil {
				return err
			}
			fmt.Printf("  %d: %s", ease, ivl)
		}
		fmt.Printf("\n> ")
		if !in.Scan() {
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		if line == "q" {
			return nil
		}
		var ease domain.Ease
		if _, err := fmt.Sscanf(line, "%d", &ease); err != nil || !ease.Valid() {
			fmt.Println("enter 1-4, or q to quit")
			continue
		}
		leech, err := s.AnswerCard(card, ease)
		if err != nil {
			return err
		}
		if leech {
			fmt.Println(color.YellowString("card marked as a leech"))
			log.Info("leech detected", "card_id", card.ID)
		}
	}
}

func runDynOp(args []string, registry *decks.Registry, op func(int64) error) error {
	if len(args) < 2 {
		return fmt.Errorf("%s needs a filtered deck name", args[0])
	}
	deck := registry.ByName(args[1])
	if deck == nil {
		return fmt.Errorf("unknown deck %q", args[1])
	}
	return op(deck.ID)
}

package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"quiz-content-service/internal/app"
	"quiz-content-service/internal/config"
	"quiz-content-service/internal/domain"
	pgstore "quiz-content-service/internal/infra/postgres"
	"quiz-content-service/internal/infra/sqlite"
)

// NewSeedCmd loads a small starter question set into the configured database.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the database with sample questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath)
		},
	}
}

func runSeed(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var store app.QuestionRepository
	var cleanup func()
	switch {
	case cfg.Postgres.URL != "":
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		store = pgstore.NewStore(pool)
		cleanup = pool.Close
	case cfg.SQLite.Path != "":
		s, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		store = s
		cleanup = func() { _ = s.Close() }
	default:
		return fmt.Errorf("seed needs a sqlite path or postgres url configured")
	}
	defer cleanup()

	for _, q := range sampleQuestions() {
		created, err := store.Insert(ctx, q, 0)
		if err != nil {
			return fmt.Errorf("seed %q: %w", q.Title, err)
		}
		log.Printf("seeded question %d at position %d: %s", created.ID, created.Position, created.Title)
	}
	return nil
}

func sampleQuestions() []domain.Question {
	answers := func(correct int, texts ...string) []domain.Answer {
		out := make([]domain.Answer, 0, len(texts))
		for i, text := range texts {
			out = append(out, domain.Answer{Text: text, IsCorrect: i+1 == correct})
		}
		return out
	}
	return []domain.Question{
		{
			Title:   "Elixir cost",
			Text:    "How much elixir does a Knight cost?",
			Answers: answers(2, "2", "3", "4", "5"),
		},
		{
			Title:   "Town Hall",
			Text:    "What is the maximum Town Hall level?",
			Answers: answers(3, "14", "15", "16", "17"),
		},
		{
			Title:   "Arena",
			Text:    "In which arena do you unlock the Baby Dragon?",
			Answers: answers(1, "Arena 9", "Arena 6", "Arena 11", "Arena 3"),
		},
		{
			Title:   "Legendary",
			Text:    "Which of these cards is legendary?",
			Answers: answers(4, "Giant", "Musketeer", "Valkyrie", "Princess"),
		},
	}
}

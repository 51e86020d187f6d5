package db_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/icuscore/internal/db"
	"github.com/gyeh/icuscore/internal/model"
)

const (
	testPort     = 15433
	testDB       = "icutest"
	testUser     = "postgres"
	testPassword = "postgres"
)

var testDSN string

func TestMain(m *testing.M) {
	if os.Getenv("ICUSCORE_PG_TESTS") != "1" {
		os.Exit(m.Run())
	}

	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			StartTimeout(30 * time.Second),
	)
	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}
	os.Exit(code)
}

// setupDB returns a pool on a freshly migrated icu schema.
func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testDSN == "" {
		t.Skip("set ICUSCORE_PG_TESTS=1 to run database tests")
	}
	ctx := context.Background()

	pool, err := db.NewPool(ctx, testDSN, 4)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := pool.Exec(ctx, "DROP SCHEMA IF EXISTS icu CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}
	if err := db.ApplyMigrations(ctx, pool, zerolog.Nop()); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	pool := setupDB(t)
	if err := db.ApplyMigrations(context.Background(), pool, zerolog.Nop()); err != nil {
		t.Fatalf("second apply: %v", err)
	}
}

func TestStore_ScoresRoundTrip(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	store := db.NewStore(pool, zerolog.Nop())

	runID := uuid.New()
	if err := store.CreateRun(ctx, runID, "oasis", "/data", "published"); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	risk := 0.25
	rows := []model.ScoreRow{
		{RunID: runID, Partition: "train", Stay: "b.csv", System: "oasis", Total: 31, Risk: &risk},
		{RunID: runID, Partition: "test", Stay: "a.csv", System: "oasis", Total: 0, WindowMissing: true},
	}
	n, err := store.SaveScores(ctx, rows)
	if err != nil {
		t.Fatalf("SaveScores: %v", err)
	}
	if n != 2 {
		t.Errorf("copied rows: got %d", n)
	}
	if err := store.FinishRun(ctx, runID, "complete", 2, 0); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := store.RunScores(ctx, runID)
	if err != nil {
		t.Fatalf("RunScores: %v", err)
	}
	if len(got) != 2 || got[0].Partition != "test" || !got[0].WindowMissing || got[0].Risk != nil {
		t.Errorf("first row: %+v", got[0])
	}
	if got[1].Total != 31 || got[1].Risk == nil || *got[1].Risk != 0.25 {
		t.Errorf("second row: %+v", got[1])
	}

	var status string
	if err := pool.QueryRow(ctx, "SELECT status FROM icu.scoring_runs WHERE run_id = $1", runID).Scan(&status); err != nil {
		t.Fatal(err)
	}
	if status != "complete" {
		t.Errorf("run status: got %q", status)
	}
}

func TestStore_ScoresRequireRun(t *testing.T) {
	pool := setupDB(t)
	store := db.NewStore(pool, zerolog.Nop())
	_, err := store.SaveScores(context.Background(), []model.ScoreRow{{RunID: uuid.New(), Partition: "test", Stay: "x", System: "oasis"}})
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestStore_Coefficients(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	store := db.NewStore(pool, zerolog.Nop())

	if _, err := store.LatestCoefficients(ctx, "saps2"); !errors.Is(err, db.ErrNoCoefficients) {
		t.Fatalf("expected ErrNoCoefficients, got %v", err)
	}

	tuneID := uuid.New()
	rows := []model.CoefficientRow{
		{TuneID: tuneID, System: "saps2", Trial: 1, Coefficients: []float64{-7, 0.07, 1}, TrainSize: 90, TestSize: 10, TestBrier: 0.1, SourceSHA256: "abc"},
		{TuneID: tuneID, System: "saps2", Trial: 0, Coefficients: []float64{-8, 0.08, 0.9}, TrainSize: 90, TestSize: 10, TestBrier: 0.2, SourceSHA256: "abc"},
	}
	if _, err := store.SaveCoefficients(ctx, rows); err != nil {
		t.Fatalf("SaveCoefficients: %v", err)
	}
	oasis := []model.CoefficientRow{{TuneID: uuid.New(), System: "oasis", Coefficients: []float64{-6, 0.1}, TrainSize: 9, TestSize: 1, SourceSHA256: "def"}}
	if _, err := store.SaveCoefficients(ctx, oasis); err != nil {
		t.Fatalf("SaveCoefficients oasis: %v", err)
	}

	sets, err := store.LatestCoefficients(ctx, "saps2")
	if err != nil {
		t.Fatalf("LatestCoefficients: %v", err)
	}
	if len(sets) != 2 || sets[0][0] != -8 || len(sets[0]) != 3 {
		t.Errorf("saps2 sets: %v", sets)
	}
	sets, err = store.LatestCoefficients(ctx, "oasis")
	if err != nil {
		t.Fatalf("LatestCoefficients oasis: %v", err)
	}
	if len(sets) != 1 || len(sets[0]) != 2 {
		t.Errorf("oasis sets: %v", sets)
	}
}

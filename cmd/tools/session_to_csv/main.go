package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bactolab/resistscope/internal/config"
	"github.com/bactolab/resistscope/internal/kv"
	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/session"
)

var header = []string{
	"generation", "total_population", "resistant_count", "sensitive_count",
	"resistance_frequency", "antibiotic_concentration", "mutation_rate",
	"mutation_count", "beneficial_mutations", "neutral_mutations",
	"deleterious_mutations", "hgt_events", "birth_count", "death_count",
	"average_fitness", "timestamp",
}

func main() {
	input := flag.String("input", "", "Exported session file (.json)")
	configPath := flag.String("config", "", "Configuration file; read the session from the configured store instead of -input")
	sessionID := flag.String("session", "", "Session id to read from the store (default: latest)")
	output := flag.String("output", "./data/csv", "Output CSV directory")

	flag.Parse()

	var (
		env *models.SessionEnvelope
		err error
	)
	if *input != "" {
		env, err = readFile(*input)
	} else {
		env, err = readStore(*configPath, *sessionID)
	}
	if err != nil {
		log.Fatalf("Error reading session: %v\n", err)
	}

	if len(env.Data) == 0 {
		log.Printf("Warning: session has no data points\n")
		return
	}
	fmt.Printf("Found %d data points (simulation %q, %d generations)\n",
		len(env.Data), env.SimulationID, env.Metadata.TotalGenerations)

	if err := os.MkdirAll(*output, 0o755); err != nil {
		log.Fatalf("Error creating output directory: %v\n", err)
	}

	name := env.SimulationID
	if name == "" {
		name = "session"
	}
	outputFile := filepath.Join(*output, fmt.Sprintf("%s_%s.csv", name, strings.NewReplacer(":", "", "-", "").Replace(env.Timestamp)))
	if err := writeCSV(outputFile, env.Data); err != nil {
		log.Fatalf("Error writing CSV: %v\n", err)
	}
	fmt.Printf("Wrote %s\n", outputFile)
}

func readFile(path string) (*models.SessionEnvelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return session.ReadEnvelope(f)
}

func readStore(configPath, id string) (*models.SessionEnvelope, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	backend, err := kv.New(cfg.Sessions)
	if err != nil {
		return nil, fmt.Errorf("failed to open session backend: %w", err)
	}
	defer func() { _ = backend.Close() }()

	store := session.NewStore(backend, session.Config{
		StorageKey:  cfg.Sessions.StorageKey,
		MaxSessions: cfg.Sessions.MaxSessions,
	})

	ctx := context.Background()
	var sess *models.Session
	if id == "" {
		sess, err = store.LoadLatestE(ctx)
	} else {
		sess, err = store.LoadE(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return session.Envelope(sess, time.Now()), nil
}

func writeCSV(path string, points []models.DataPoint) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, p := range points {
		if err := w.Write(row(p)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func row(p models.DataPoint) []string {
	itoa := strconv.Itoa
	ftoa := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return []string{
		itoa(p.Generation), itoa(p.TotalPopulation), itoa(p.ResistantCount), itoa(p.SensitiveCount),
		ftoa(p.ResistanceFrequency), ftoa(p.AntibioticConcentration), ftoa(p.MutationRate),
		itoa(p.MutationCount), itoa(p.BeneficialMutations), itoa(p.NeutralMutations),
		itoa(p.DeleteriousMutations), itoa(p.HGTEvents), itoa(p.BirthCount), itoa(p.DeathCount),
		ftoa(p.AverageFitness), p.Timestamp,
	}
}

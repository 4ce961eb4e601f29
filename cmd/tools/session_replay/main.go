package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bactolab/resistscope/internal/config"
	"github.com/bactolab/resistscope/internal/models"
	"github.com/bactolab/resistscope/internal/queue"
	"github.com/bactolab/resistscope/internal/session"
	"github.com/bactolab/resistscope/internal/transform"
)

// ReplayConfig holds replay configuration
type ReplayConfig struct {
	Input        string
	SimulationID string
	Mode         string
	BaseURL      string
	APIKey       string
	ConfigPath   string
	BatchSize    int
	Interval     time.Duration
	FinalStatus  string
}

// sender delivers one batch of wire records for a simulation
type sender interface {
	Send(ctx context.Context, simulationID string, payload []byte) error
	Close() error
}

func main() {
	var cfg ReplayConfig
	flag.StringVar(&cfg.Input, "input", "", "Exported session file (.json)")
	flag.StringVar(&cfg.SimulationID, "simulation", "", "Target simulation id (default: the session's own)")
	flag.StringVar(&cfg.Mode, "mode", "http", "Delivery: http (POST to the dashboard) or bus (publish to the configured queue)")
	flag.StringVar(&cfg.BaseURL, "url", "http://localhost:5580", "Dashboard base URL for http mode")
	flag.StringVar(&cfg.APIKey, "api-key", "", "API key for authentication")
	flag.StringVar(&cfg.ConfigPath, "config", "", "Configuration file with the queue section for bus mode")
	flag.IntVar(&cfg.BatchSize, "batch-size", 10, "Generations per message")
	flag.DurationVar(&cfg.Interval, "interval", 100*time.Millisecond, "Delay between messages")
	flag.StringVar(&cfg.FinalStatus, "final-status", "completed", "Status attached to the last generation (empty to leave running)")
	flag.Parse()

	if cfg.Input == "" {
		log.Fatal("Error: -input parameter is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}

	env, err := readFile(cfg.Input)
	if err != nil {
		log.Fatalf("Error reading session: %v\n", err)
	}
	if cfg.SimulationID == "" {
		cfg.SimulationID = env.SimulationID
	}
	if cfg.SimulationID == "" {
		log.Fatal("Error: session has no simulation id; pass -simulation")
	}

	out, err := newSender(cfg)
	if err != nil {
		log.Fatalf("Error creating %s sender: %v\n", cfg.Mode, err)
	}
	defer func() { _ = out.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("=== ResistScope Session Replay ===\n")
	fmt.Printf("  Input: %s\n", cfg.Input)
	fmt.Printf("  Simulation: %s\n", cfg.SimulationID)
	fmt.Printf("  Mode: %s\n", cfg.Mode)
	fmt.Printf("  Generations: %d\n", len(env.Data))
	fmt.Printf("  Batch Size: %d\n", cfg.BatchSize)
	fmt.Printf("\n")

	start := time.Now()
	sent, err := replay(ctx, out, cfg, env.Data)
	if err != nil {
		log.Fatalf("Replay stopped after %d generations: %v\n", sent, err)
	}
	fmt.Printf("Replayed %d generations in %s\n", sent, time.Since(start).Round(time.Millisecond))
}

func readFile(path string) (*models.SessionEnvelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return session.ReadEnvelope(f)
}

// batches converts points to wire records in groups of size. The first
// record carries running so an idle buffer starts collecting; the last one
// carries final.
func batches(points []models.DataPoint, size int, final models.SimulationStatus) [][]*models.SimulationUpdate {
	var out [][]*models.SimulationUpdate
	for i := 0; i < len(points); i += size {
		end := i + size
		if end > len(points) {
			end = len(points)
		}
		batch := make([]*models.SimulationUpdate, 0, end-i)
		for j := i; j < end; j++ {
			var status models.SimulationStatus
			switch {
			case j == 0:
				status = models.StatusRunning
			case j == len(points)-1:
				status = final
			}
			batch = append(batch, transform.ToUpdate(points[j], status))
		}
		out = append(out, batch)
	}
	return out
}

func replay(ctx context.Context, out sender, cfg ReplayConfig, points []models.DataPoint) (int, error) {
	sent := 0
	all := batches(points, cfg.BatchSize, models.SimulationStatus(cfg.FinalStatus))
	for i, batch := range all {
		payload, err := json.Marshal(batch)
		if err != nil {
			return sent, err
		}
		if err := out.Send(ctx, cfg.SimulationID, payload); err != nil {
			return sent, err
		}
		sent += len(batch)
		fmt.Printf("\r  sent %d/%d", sent, len(points))

		if i < len(all)-1 && cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				fmt.Println()
				return sent, ctx.Err()
			case <-time.After(cfg.Interval):
			}
		}
	}
	fmt.Println()
	return sent, nil
}

func newSender(cfg ReplayConfig) (sender, error) {
	switch cfg.Mode {
	case "http":
		return &httpSender{
			baseURL: cfg.BaseURL,
			apiKey:  cfg.APIKey,
			client:  &http.Client{Timeout: 30 * time.Second},
		}, nil
	case "bus":
		appCfg, err := config.Load(cfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		pub, err := queue.NewPublisher(appCfg.Queue)
		if err != nil {
			return nil, err
		}
		return &busSender{pub: pub}, nil
	}
	return nil, fmt.Errorf("unknown mode %q (supported: http, bus)", cfg.Mode)
}

type httpSender struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func (s *httpSender) Send(ctx context.Context, simulationID string, payload []byte) error {
	url := fmt.Sprintf("%s/v1/simulations/%s/updates", s.baseURL, simulationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (s *httpSender) Close() error { return nil }

type busSender struct {
	pub queue.Publisher
}

func (s *busSender) Send(ctx context.Context, simulationID string, payload []byte) error {
	return s.pub.Publish(ctx, simulationID, payload)
}

func (s *busSender) Close() error { return s.pub.Close() }

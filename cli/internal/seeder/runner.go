package seeder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// Config controls a seeding run.
type Config struct {
	CollectorURL string
	Token        string
	Count        int
	BatchSize    int
	EventTypes   []string
	RepeatRate   float64
}

// Runner submits generated events to the collector.
type Runner struct {
	config     Config
	httpClient *http.Client
}

// NewRunner creates a seeder runner.
func NewRunner(config Config) *Runner {
	return &Runner{
		config: config,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Run generates and submits events in batches.
func (r *Runner) Run() error {
	gofakeit.Seed(time.Now().UnixNano())

	log.Printf("Starting event seeder:")
	log.Printf("  Collector URL: %s", r.config.CollectorURL)
	log.Printf("  Event count: %d", r.config.Count)
	log.Printf("  Batch size: %d", r.config.BatchSize)
	log.Printf("  Event types: %v", r.config.EventTypes)
	log.Printf("  Repeat rate: %.2f", r.config.RepeatRate)

	successCount := 0
	failCount := 0

	batch := make([]Envelope, 0, r.config.BatchSize)
	for i := 0; i < r.config.Count; i++ {
		eventType := r.config.EventTypes[rand.Intn(len(r.config.EventTypes))]
		batch = append(batch, GenerateEvent(eventType, r.config.RepeatRate))

		if len(batch) >= r.config.BatchSize || i == r.config.Count-1 {
			if err := r.sendBatch(batch); err != nil {
				log.Printf("Failed to send batch: %v", err)
				failCount += len(batch)
			} else {
				successCount += len(batch)
			}
			batch = batch[:0]
		}
	}

	log.Printf("Seeding complete: %d submitted, %d failed", successCount, failCount)
	if failCount > 0 {
		return fmt.Errorf("%d events failed to submit", failCount)
	}
	return nil
}

func (r *Runner) sendBatch(batch []Envelope) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, r.config.CollectorURL+"/api/v2/events", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "swatch-seeder/0.1")
	if r.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.config.Token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned %s", resp.Status)
	}
	return nil
}

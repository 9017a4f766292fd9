package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"mentorlink-backend/internal/database"
	"mentorlink-backend/internal/models"
)

// Pool drains the review-notify queue and posts each job to the external
// decision service. One notification per intervention, fire-and-forget: a
// failed POST is logged and the intervention stays pending until an operator
// approves it manually.
type Pool struct {
	redis         *redis.Client
	webhookURL    string
	webhookSecret string
	httpClient    *http.Client
	workerCount   int
	stopChan      chan struct{}
}

func NewPool(redisClient *redis.Client, webhookURL, webhookSecret string, workerCount int) *Pool {
	return &Pool{
		redis:         redisClient,
		webhookURL:    webhookURL,
		webhookSecret: webhookSecret,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		workerCount:   workerCount,
		stopChan:      make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}

	log.Printf("Started %d notify worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Notify worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout so Stop is observed between pops
		result, err := p.redis.BLPop(ctx, 30*time.Second, database.ReviewNotifyQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var job models.ReviewNotifyJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Notify worker %d: failed to parse job: %v", id, err)
			continue
		}

		// One notification per intervention, even with competing workers
		lockKey := fmt.Sprintf("notify_lock:%s", job.InterventionID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue
		}

		log.Printf("Notify worker %d: notifying decision service for intervention %s", id, job.InterventionID)

		if err := p.notify(ctx, &job); err != nil {
			log.Printf("Notify worker %d: delegated notify for intervention %s failed, manual approval required: %v",
				id, job.InterventionID, err)
		}

		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) notify(ctx context.Context, job *models.ReviewNotifyJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.webhookSecret != "" {
		req.Header.Set("X-Webhook-Secret", p.webhookSecret)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("decision service responded %d", resp.StatusCode)
	}
	return nil
}

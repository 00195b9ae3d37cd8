package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TaskClassify       = "classify"
	TaskHealth         = "health"
	TaskMetricsSummary = "metrics_summary"
)

// errSkipped marks a task that could not run and should be rescheduled.
var errSkipped = errors.New("task skipped")

type Config struct {
	Host         string
	ImagesDir    string
	Users        int
	Duration     time.Duration
	MinWait      time.Duration
	MaxWait      time.Duration
	ReadyTimeout time.Duration
}

type Image struct {
	Name string
	Data []byte
}

type task struct {
	name   string
	weight int
	run    func(ctx context.Context) error
}

// Runner simulates concurrent users of the classification API.
type Runner struct {
	cfg    Config
	client *http.Client
	images []Image
	tasks  []task
	total  int
	stats  *Stats
	runID  string
	log    *zap.Logger
}

func NewRunner(cfg Config, images []Image, client *http.Client, log *zap.Logger) *Runner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")

	r := &Runner{
		cfg:    cfg,
		client: client,
		images: images,
		stats:  NewStats(),
		runID:  uuid.New().String(),
		log:    log,
	}
	r.tasks = []task{
		{name: TaskClassify, weight: 10, run: r.classify},
		{name: TaskHealth, weight: 1, run: r.health},
		{name: TaskMetricsSummary, weight: 1, run: r.metricsSummary},
	}
	for _, t := range r.tasks {
		r.total += t.weight
	}
	return r
}

func (r *Runner) RunID() string {
	return r.runID
}

func (r *Runner) Stats() *Stats {
	return r.stats
}

// LoadImages reads every .jpg, .jpeg and .png file in dir.
func LoadImages(dir string, log *zap.Logger) ([]Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read images dir: %w", err)
	}

	var images []Image
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
		default:
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Error("Error loading image", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		images = append(images, Image{Name: entry.Name(), Data: data})
	}

	return images, nil
}

// WaitReady polls /health with exponential backoff until it answers 200 or
// ReadyTimeout elapses.
func (r *Runner) WaitReady(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = r.cfg.ReadyTimeout

	return backoff.Retry(func() error {
		err := r.get(ctx, "/health")
		if err != nil {
			r.log.Debug("Service not ready", zap.Error(err))
		}
		return err
	}, backoff.WithContext(b, ctx))
}

// Run starts cfg.Users virtual users and blocks until Duration has passed or
// ctx is cancelled.
func (r *Runner) Run(ctx context.Context) *Stats {
	if len(r.images) == 0 {
		r.log.Warn("No test images found, classify requests will be skipped",
			zap.String("dir", r.cfg.ImagesDir))
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Users; i++ {
		wg.Add(1)
		go func(user int) {
			defer wg.Done()
			r.user(ctx, user)
		}(i)
	}
	wg.Wait()

	return r.stats
}

func (r *Runner) user(ctx context.Context, id int) {
	for {
		t := r.pick(rand.Intn(r.total))

		start := time.Now()
		err := t.run(ctx)
		elapsed := time.Since(start)

		switch {
		case errors.Is(err, errSkipped):
		case ctx.Err() != nil:
			return
		case err != nil:
			r.stats.Record(t.name, elapsed, err)
			r.log.Debug("Request failed", zap.Int("user", id), zap.String("task", t.name), zap.Error(err))
		default:
			r.stats.Record(t.name, elapsed, nil)
		}

		if !sleep(ctx, r.wait()) {
			return
		}
	}
}

// pick maps n in [0, total) onto a task according to the task weights.
func (r *Runner) pick(n int) task {
	for _, t := range r.tasks {
		if n < t.weight {
			return t
		}
		n -= t.weight
	}
	return r.tasks[len(r.tasks)-1]
}

func (r *Runner) wait() time.Duration {
	spread := r.cfg.MaxWait - r.cfg.MinWait
	if spread <= 0 {
		return r.cfg.MinWait
	}
	return r.cfg.MinWait + time.Duration(rand.Int63n(int64(spread)))
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (r *Runner) classify(ctx context.Context) error {
	if len(r.images) == 0 {
		return errSkipped
	}
	img := r.images[rand.Intn(len(r.images))]

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", img.Name)
	if err != nil {
		return err
	}
	if _, err := part.Write(img.Data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Host+"/api/v1/classify", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := r.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("failed to classify %s: %d - %s", img.Name, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result struct {
		Predictions []json.RawMessage `json:"predictions"`
		Metadata    struct {
			ExecutionTimeMs float64 `json:"execution_time_ms"`
		} `json:"metadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode classify response: %w", err)
	}

	r.log.Debug("Classified image",
		zap.String("file", img.Name),
		zap.Int("predictions", len(result.Predictions)),
		zap.Float64("server_ms", result.Metadata.ExecutionTimeMs))
	return nil
}

func (r *Runner) health(ctx context.Context) error {
	return r.get(ctx, "/health")
}

func (r *Runner) metricsSummary(ctx context.Context) error {
	return r.get(ctx, "/api/v1/metrics/summary")
}

func (r *Runner) get(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.Host+path, nil)
	if err != nil {
		return err
	}
	resp, err := r.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s failed with status code: %d", path, resp.StatusCode)
	}
	return nil
}

func (r *Runner) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("X-Request-ID", r.runID+"-"+uuid.New().String()[:8])
	return r.client.Do(req)
}

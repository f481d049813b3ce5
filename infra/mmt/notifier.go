// Package mmt delivers orchestrator notifications to the mission management
// tool over HTTP.
package mmt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kilianp07/mtrr/auth"
	"github.com/kilianp07/mtrr/core/mission"
	"github.com/kilianp07/mtrr/core/model"
	"github.com/kilianp07/mtrr/core/monitoring"
	"github.com/kilianp07/mtrr/infra/logger"
)

// Config addresses the MMT endpoint.
type Config struct {
	URL          string    `json:"url"`
	RetryDelayMS int       `json:"retry_delay_ms"`
	TimeoutMS    int       `json:"timeout_ms"`
	Auth         auth.Conf `json:"auth"`
}

// SetDefaults fills the retry delay and request timeout.
func (c *Config) SetDefaults() {
	if c.RetryDelayMS <= 0 {
		c.RetryDelayMS = 1000
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = 5000
	}
}

// Enabled reports whether an endpoint is configured.
func (c Config) Enabled() bool { return c.URL != "" }

type job struct {
	kind string
	path string
	body any
}

// Notifier queues notifications and delivers them one at a time, in order,
// from a single worker. A failed delivery is retried after the configured
// delay until it succeeds or the worker stops.
type Notifier struct {
	base   string
	client *http.Client
	cred   *auth.ClientCred
	delay  time.Duration
	log    logger.Logger

	mu    sync.Mutex
	queue []job
	wake  chan struct{}
}

var _ mission.Notifier = (*Notifier)(nil)

// New builds a notifier. Call Run to start delivering.
func New(cfg Config, log logger.Logger) *Notifier {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}
	n := &Notifier{
		base:   strings.TrimSuffix(cfg.URL, "/"),
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
		delay:  time.Duration(cfg.RetryDelayMS) * time.Millisecond,
		log:    log,
		wake:   make(chan struct{}, 1),
	}
	if cfg.Auth.Enabled() {
		n.cred = auth.NewClientCred(cfg.Auth)
	}
	return n
}

type statusReport struct {
	ActionID  int    `json:"action_id"`
	VehicleID int    `json:"vehicle_id"`
	ParentID  int    `json:"parent_id"`
	Task      string `json:"task"`
	Status    string `json:"status"`
}

type errorReport struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendStatusReport queues the status of an action.
func (n *Notifier) SendStatusReport(a model.Action) {
	n.enqueue(job{kind: "status_report", path: "/status-report", body: statusReport{
		ActionID:  a.ID,
		VehicleID: a.VehicleID,
		ParentID:  a.ParentID,
		Task:      a.Task.Description,
		Status:    a.Status.String(),
	}})
}

// SendError queues an error notification.
func (n *Notifier) SendError(code int, message string) {
	n.enqueue(job{kind: "error", path: "/error", body: errorReport{Code: code, Message: message}})
}

// SendUpdatedStatusNotification tells the MMT fresh vehicle status is stored.
func (n *Notifier) SendUpdatedStatusNotification() {
	n.enqueue(job{kind: "updated_status", path: "/updated-status", body: struct{}{}})
}

func (n *Notifier) enqueue(j job) {
	n.mu.Lock()
	n.queue = append(n.queue, j)
	n.mu.Unlock()
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued notifications.
func (n *Notifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

func (n *Notifier) peek() (job, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.queue) == 0 {
		return job{}, false
	}
	return n.queue[0], true
}

func (n *Notifier) pop() {
	n.mu.Lock()
	n.queue = n.queue[1:]
	n.mu.Unlock()
}

// Run delivers queued notifications until ctx is done. Undelivered
// notifications are logged when it returns.
func (n *Notifier) Run(ctx context.Context) error {
	defer func() {
		if p := n.Pending(); p > 0 {
			n.log.Warnf("mmt notifier stopped with %d undelivered notifications", p)
		}
	}()
	for {
		j, ok := n.peek()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-n.wake:
				continue
			}
		}
		if !n.deliverWithRetry(ctx, j) {
			return nil
		}
		n.pop()
	}
}

func (n *Notifier) deliverWithRetry(ctx context.Context, j job) bool {
	for attempt := 1; ; attempt++ {
		err := n.deliver(ctx, j)
		if err == nil {
			n.log.Debugf("mmt %s delivered", j.kind)
			return true
		}
		if attempt == 1 {
			monitoring.CaptureException(err, map[string]string{"module": "mmt", "kind": j.kind})
		}
		n.log.Warnf("mmt %s delivery attempt %d failed: %v; retrying in %s", j.kind, attempt, err, n.delay)
		t := time.NewTimer(n.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, j job) error {
	b, err := json.Marshal(j.body)
	if err != nil {
		return err
	}
	resp, err := n.post(ctx, j.path, b)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized && n.cred != nil {
		_ = resp.Body.Close()
		if _, err := n.cred.ForceRefresh(ctx); err != nil {
			return err
		}
		if resp, err = n.post(ctx, j.path, b); err != nil {
			return err
		}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("mmt %s: status %d", j.path, resp.StatusCode)
	}
	return nil
}

func (n *Notifier) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.cred != nil {
		if err := n.cred.SetAuthHeader(ctx, req); err != nil {
			return nil, err
		}
	}
	return n.client.Do(req)
}

package sui

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// ConnManager owns the node client and its verify/reconnect flow.
type ConnManager struct {
	mu        sync.RWMutex
	client    *Client
	url       string
	http      *http.Client
	logger    *slog.Logger
	retryWait time.Duration
	maxJitter time.Duration
	randSrc   *rand.Rand
	lastSeq   uint64
}

func NewConnManager(url string, httpClient *http.Client, retryWait, maxJitter time.Duration, logger *slog.Logger) *ConnManager {
	if retryWait <= 0 {
		retryWait = 3 * time.Second
	}
	if maxJitter < 0 {
		maxJitter = 0
	}
	return &ConnManager{
		url:       url,
		http:      httpClient,
		logger:    logger,
		retryWait: retryWait,
		maxJitter: maxJitter,
		randSrc:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *ConnManager) URL() string {
	return m.url
}

// Connect blocks until the node answers a checkpoint probe or ctx ends.
func (m *ConnManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked(ctx)
}

// Client returns the verified client, connecting first if needed.
func (m *ConnManager) Client(ctx context.Context) (*Client, error) {
	m.mu.RLock()
	c := m.client
	m.mu.RUnlock()
	if c != nil {
		return c, nil
	}
	if err := m.Connect(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return nil, fmt.Errorf("sui client is nil after connect")
	}
	return m.client, nil
}

func (m *ConnManager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client = nil
	return m.connectLocked(ctx)
}

// Healthy probes the node once without retrying.
func (m *ConnManager) Healthy(ctx context.Context) error {
	c, err := m.Client(ctx)
	if err != nil {
		return err
	}
	seq, err := c.LatestCheckpoint(ctx)
	if err != nil {
		return fmt.Errorf("sui checkpoint check failed: %w", err)
	}
	m.mu.Lock()
	m.lastSeq = seq
	m.mu.Unlock()
	return nil
}

// LastCheckpoint is the sequence number seen by the latest probe.
func (m *ConnManager) LastCheckpoint() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSeq
}

func (m *ConnManager) connectLocked(ctx context.Context) error {
	if m.client != nil {
		if _, err := m.client.LatestCheckpoint(ctx); err == nil {
			return nil
		}
		m.client = nil
	}

	candidate := NewClient(m.url, m.http)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		seq, err := candidate.LatestCheckpoint(ctx)
		if err == nil {
			m.client = candidate
			m.lastSeq = seq
			m.logger.Info("sui rpc connected", "rpc_url", m.url, "checkpoint", seq)
			return nil
		}

		wait := m.retryWait + m.jitter()
		m.logger.Error("sui rpc connect failed", "rpc_url", m.url, "error", err, "retry_in", wait)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (m *ConnManager) jitter() time.Duration {
	if m.maxJitter == 0 {
		return 0
	}
	return time.Duration(m.randSrc.Int63n(int64(m.maxJitter)))
}

package alert

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"

	"sui-invariant-monitor/internal/model"
)

type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// GRPCSink pushes violation envelopes over a client-streaming RPC encoded
// with the JSON codec. The stream is opened lazily and reopened once when a
// send fails.
type GRPCSink struct {
	mu sync.Mutex

	logger       *slog.Logger
	addr         string
	method       string
	monitorID    string
	tlsConfig    *tls.Config
	token        string
	conn         *grpc.ClientConn
	stream       grpc.ClientStream
	streamCancel context.CancelFunc
	now          func() time.Time
}

func NewGRPCSink(addr, method, monitorID string, tlsCfg *tls.Config, token string, logger *slog.Logger) *GRPCSink {
	encoding.RegisterCodec(jsonCodec{})
	return &GRPCSink{
		logger:    logger,
		addr:      addr,
		method:    method,
		monitorID: monitorID,
		tlsConfig: tlsCfg,
		token:     token,
		now:       time.Now,
	}
}

func (c *GRPCSink) Name() string { return "grpc" }

func (c *GRPCSink) Send(ctx context.Context, r model.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureConnLocked(); err != nil {
		return err
	}
	if c.stream == nil {
		if err := c.openStreamLocked(ctx); err != nil {
			return err
		}
	}
	frame := NewViolationEnvelope(c.monitorID, NewWebhookPayload(r, uuid.NewString()), c.now())
	if err := c.stream.SendMsg(frame); err != nil {
		c.logger.Warn("grpc alert send failed, reopening stream", "error", err)
		c.resetStreamLocked()
		if err2 := c.openStreamLocked(ctx); err2 != nil {
			return fmt.Errorf("reopen alert stream: %w", err2)
		}
		if err2 := c.stream.SendMsg(frame); err2 != nil {
			return fmt.Errorf("send alert frame: %w", err2)
		}
	}
	return nil
}

func (c *GRPCSink) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		_ = c.stream.CloseSend()
	}
	c.resetStreamLocked()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *GRPCSink) ensureConnLocked() error {
	if c.conn != nil {
		return nil
	}
	var creds credentials.TransportCredentials
	if c.tlsConfig != nil {
		creds = credentials.NewTLS(c.tlsConfig)
	} else {
		creds = insecure.NewCredentials()
	}

	conn, err := grpc.NewClient(
		c.addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}), grpc.CallContentSubtype("json")),
	)
	if err != nil {
		return fmt.Errorf("grpc dial %s: %w", c.addr, err)
	}
	c.conn = conn
	c.logger.Info("grpc alert stream connected", "addr", c.addr)
	return nil
}

// openStreamLocked runs the stream on its own context so it outlives the
// per-alert ctx, which only bounds the open.
func (c *GRPCSink) openStreamLocked(ctx context.Context) error {
	if c.conn == nil {
		return fmt.Errorf("grpc conn is nil")
	}
	streamCtx, cancel := context.WithCancel(context.Background())
	if c.token != "" {
		streamCtx = metadata.AppendToOutgoingContext(streamCtx, "authorization", "Bearer "+c.token)
	}

	type opened struct {
		s   grpc.ClientStream
		err error
	}
	done := make(chan opened, 1)
	go func() {
		s, err := c.conn.NewStream(streamCtx, &grpc.StreamDesc{ClientStreams: true}, c.method)
		done <- opened{s, err}
	}()

	select {
	case <-ctx.Done():
		cancel()
		return fmt.Errorf("open alert stream: %w", ctx.Err())
	case o := <-done:
		if o.err != nil {
			cancel()
			return fmt.Errorf("open alert stream: %w", o.err)
		}
		c.stream = o.s
		c.streamCancel = cancel
		return nil
	}
}

func (c *GRPCSink) resetStreamLocked() {
	if c.streamCancel != nil {
		c.streamCancel()
		c.streamCancel = nil
	}
	c.stream = nil
}

package messaging

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/BTreeMap/SehaCoach/internal/coach"
	"github.com/BTreeMap/SehaCoach/internal/flow"
	"github.com/BTreeMap/SehaCoach/internal/models"
	"github.com/BTreeMap/SehaCoach/internal/store"
)

// DefaultWorkers is the number of concurrent turn workers.
const DefaultWorkers = 4

// Turner runs one conversation turn.
type Turner interface {
	HandleMessage(ctx context.Context, userID, text string) (models.Reply, error)
}

// HandlerOpts holds configuration for a ResponseHandler.
type HandlerOpts struct {
	Dedup   store.DedupRepo
	Workers int
}

// HandlerOption configures a ResponseHandler.
type HandlerOption func(*HandlerOpts)

// WithDedup drops inbound messages whose transport ID was already seen.
func WithDedup(d store.DedupRepo) HandlerOption {
	return func(o *HandlerOpts) { o.Dedup = d }
}

// WithWorkers sets the number of turn workers. Messages of one sender always go to the
// same worker, so they are answered in order.
func WithWorkers(n int) HandlerOption {
	return func(o *HandlerOpts) { o.Workers = n }
}

// ResponseHandler turns inbound transport messages into coach turns and sends the replies.
type ResponseHandler struct {
	msgService Service
	coach      Turner
	dedup      store.DedupRepo
	workers    int
}

// NewResponseHandler creates a ResponseHandler for one transport.
func NewResponseHandler(msgService Service, c Turner, opts ...HandlerOption) *ResponseHandler {
	cfg := HandlerOpts{Workers: DefaultWorkers}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &ResponseHandler{msgService: msgService, coach: c, dedup: cfg.Dedup, workers: cfg.Workers}
}

// ProcessResponse runs one inbound message through the coach and sends the reply.
func (rh *ResponseHandler) ProcessResponse(ctx context.Context, response models.Response) error {
	canonicalFrom, err := rh.msgService.ValidateAndCanonicalizeRecipient(response.From)
	if err != nil {
		slog.Error("ResponseHandler.ProcessResponse: validation failed", "error", err, "from", response.From)
		return fmt.Errorf("invalid sender: %w", err)
	}

	if rh.dedup != nil && response.ID != "" {
		fresh, err := rh.dedup.RecordInbound(ctx, response.ID, canonicalFrom)
		if err != nil {
			slog.Warn("ResponseHandler.ProcessResponse: dedup check failed, processing anyway", "error", err, "id", response.ID)
		} else if !fresh {
			slog.Debug("ResponseHandler.ProcessResponse: duplicate message skipped", "id", response.ID, "from", canonicalFrom)
			return nil
		}
	}

	slog.Debug("ResponseHandler.ProcessResponse: processing", "from", canonicalFrom, "body_length", len(response.Body))
	reply, err := rh.coach.HandleMessage(ctx, canonicalFrom, response.Body)
	if errors.Is(err, coach.ErrEmptyMessage) {
		return nil
	}
	if err != nil {
		slog.Warn("ResponseHandler.ProcessResponse: turn completed with error", "error", err, "from", canonicalFrom)
	}
	if reply.Text == "" {
		reply = models.Reply{Text: coach.ErrorReplyText}
	}

	if err := rh.msgService.SendMessage(ctx, canonicalFrom, flow.FormatReply(reply)); err != nil {
		slog.Error("ResponseHandler.ProcessResponse: failed to send reply", "error", err, "from", canonicalFrom)
		return fmt.Errorf("failed to send reply: %w", err)
	}

	if rh.dedup != nil && response.ID != "" {
		if err := rh.dedup.MarkProcessed(ctx, response.ID); err != nil {
			slog.Warn("ResponseHandler.ProcessResponse: mark processed failed", "error", err, "id", response.ID)
		}
	}
	slog.Info("ResponseHandler.ProcessResponse: reply sent", "from", canonicalFrom, "action", reply.Action)
	return nil
}

// Run consumes Responses() until the channel closes or ctx is cancelled.
func (rh *ResponseHandler) Run(ctx context.Context) error {
	slog.Info("ResponseHandler.Run: starting", "workers", rh.workers)
	defer slog.Info("ResponseHandler.Run: stopped")

	queues := make([]chan models.Response, rh.workers)
	g, gctx := errgroup.WithContext(ctx)
	for i := range queues {
		q := make(chan models.Response, DefaultChannelBufferSize)
		queues[i] = q
		g.Go(func() error {
			for response := range q {
				if err := rh.ProcessResponse(gctx, response); err != nil {
					slog.Error("ResponseHandler.Run: failed to process response", "error", err, "from", response.From)
				}
			}
			return nil
		})
	}

	dispatch := func() {
		for {
			select {
			case response, ok := <-rh.msgService.Responses():
				if !ok {
					slog.Debug("ResponseHandler.Run: responses channel closed")
					return
				}
				select {
				case queues[shard(response.From, rh.workers)] <- response:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				slog.Debug("ResponseHandler.Run: stopping due to context cancellation")
				return
			}
		}
	}
	dispatch()

	for _, q := range queues {
		close(q)
	}
	return g.Wait()
}

// Start runs the handler in the background.
func (rh *ResponseHandler) Start(ctx context.Context) {
	go func() {
		if err := rh.Run(ctx); err != nil {
			slog.Error("ResponseHandler.Start: handler exited", "error", err)
		}
	}()
}

func shard(from string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(from))
	return int(h.Sum32() % uint32(n))
}

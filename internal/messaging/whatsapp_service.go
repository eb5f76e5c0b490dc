package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/BTreeMap/SehaCoach/internal/models"
	"github.com/BTreeMap/SehaCoach/internal/whatsapp"
)

// WhatsAppService implements Service using the whatsmeow-based whatsapp client.
type WhatsAppService struct {
	client    whatsapp.WhatsAppSender
	waClient  *whatsapp.Client // set when event handling is available
	responses chan models.Response
	mu        sync.RWMutex
	stopped   bool
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given WhatsAppSender.
func NewWhatsAppService(client whatsapp.WhatsAppSender) *WhatsAppService {
	service := &WhatsAppService{
		client:    client,
		responses: make(chan models.Response, DefaultChannelBufferSize),
	}

	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
	}
	slog.Debug("NewWhatsAppService: created", "event_handling", service.waClient != nil)
	return service
}

// ValidateAndCanonicalizeRecipient returns the digits of a WhatsApp phone number.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhone(recipient)
}

// Start registers the whatsmeow event handler.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Debug("WhatsAppService.Start: sender has no event stream, inbound disabled")
		return nil
	}
	s.waClient.GetClient().AddEventHandler(s.handleEvent)
	slog.Info("WhatsAppService.Start: listening for inbound messages")
	return nil
}

// Stop stops background processing.
func (s *WhatsAppService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.responses)
	slog.Info("WhatsAppService.Stop: stopped")
	return nil
}

// SendMessage sends a message to the canonicalized recipient.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return ErrServiceStopped
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := s.client.SendMessage(ctx, canonical, body); err != nil {
		slog.Error("WhatsAppService.SendMessage: send failed", "error", err, "to", canonical)
		return err
	}
	slog.Debug("WhatsAppService.SendMessage: sent", "to", canonical, "body_length", len(body))
	return nil
}

// Responses returns a channel of incoming messages.
func (s *WhatsAppService) Responses() <-chan models.Response {
	return s.responses
}

func (s *WhatsAppService) handleEvent(evt interface{}) {
	msg, ok := evt.(*events.Message)
	if !ok {
		slog.Debug("WhatsAppService.handleEvent: ignored", "type", fmt.Sprintf("%T", evt))
		return
	}
	if msg.Message == nil || msg.Info.IsFromMe || msg.Info.IsGroup {
		return
	}
	text, ok := messageText(msg.Message)
	if !ok {
		slog.Debug("WhatsAppService.handleEvent: no text in message", "from", msg.Info.Sender.User)
		return
	}
	s.emit(models.Response{
		ID:   string(msg.Info.ID),
		From: msg.Info.Sender.User,
		Body: text,
		Time: msg.Info.Timestamp.Unix(),
	})
}

// messageText extracts what the user typed: a plain or extended text message, or the
// caption of a photo.
func messageText(m *waE2E.Message) (string, bool) {
	switch {
	case m.GetConversation() != "":
		return m.GetConversation(), true
	case m.GetExtendedTextMessage().GetText() != "":
		return m.GetExtendedTextMessage().GetText(), true
	case m.GetImageMessage().GetCaption() != "":
		return m.GetImageMessage().GetCaption(), true
	}
	return "", false
}

// emit pushes a response unless the service is stopped or the channel stays full.
// The read lock keeps Stop from closing the channel mid-send.
func (s *WhatsAppService) emit(response models.Response) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		slog.Warn("WhatsAppService.emit: service stopped, dropping message", "from", response.From)
		return
	}
	select {
	case s.responses <- response:
		slog.Info("WhatsAppService.emit: message forwarded", "from", response.From)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService.emit: responses channel full, dropping message", "from", response.From, "timeout", DefaultChannelTimeout)
	}
}

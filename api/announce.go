/*
announce.go - Scheduler-to-chat announcement bridge

PURPOSE:
  Implements schedule.Announcer: when the scheduler crosses a weekly or
  monthly boundary it calls in here, and the digest prompt is posted to
  the configured announce chat.

SENDERS:
  Announcements cannot ride a webhook response (there is no inbound
  request), so they go out through a Sender. HTTPSender posts a
  sendMessage call to the bot API; LogSender is the no-network fallback
  when no API URL is configured.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Sender delivers an outbound chat message.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// HTTPSender posts sendMessage calls to the bot API.
type HTTPSender struct {
	// BaseURL is the bot API root, e.g. "https://api.example.org/bot<token>".
	BaseURL string
	Client  *http.Client
}

func (s *HTTPSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.BaseURL+"/sendMessage", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendMessage: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes announcements to the process log instead of the chat.
type LogSender struct{}

func (LogSender) SendMessage(_ context.Context, chatID int64, text string) error {
	log.Printf("[Announce] chat %d: %s", chatID, text)
	return nil
}

// Announcer posts period digests to the announce chat.
type Announcer struct {
	Sender  Sender
	ChatID  int64
	Timeout time.Duration
}

// NewAnnouncer creates an announcer with a 10s send timeout.
func NewAnnouncer(sender Sender, chatID int64) *Announcer {
	return &Announcer{Sender: sender, ChatID: chatID, Timeout: 10 * time.Second}
}

func (a *Announcer) announce(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), a.Timeout)
	defer cancel()

	if err := a.Sender.SendMessage(ctx, a.ChatID, text); err != nil {
		log.Printf("[Announce] send failed: %v", err)
	}
}

// AnnounceWeekly posts the weekly digest prompt.
func (a *Announcer) AnnounceWeekly() {
	a.announce("📊 Week results are in — run /top_week")
}

// AnnounceMonthly posts the monthly digest prompt.
func (a *Announcer) AnnounceMonthly() {
	a.announce("📊 Month results are in — run /top_month")
}

/*
dto.go - Wire types for the webhook envelope and the query API

PURPOSE:
  Defines the JSON structures crossing the process boundary. The inbound
  Update mirrors the chat platform's webhook envelope; the outbound
  WebhookReply is the "answer the webhook with a method call" form, so no
  outbound HTTP request is needed for command replies.

NAMING CONVENTION:
  - Update/Message/User/Chat: inbound envelope (platform field names)
  - *DTO: query API response types
  - WebhookReply: outbound reply carried in the webhook response body

SEE ALSO:
  - handlers.go: uses these types
*/
package api

import "github.com/gleam/stars-engine/ledger"

// =============================================================================
// INBOUND ENVELOPE
// =============================================================================

// Update is the webhook envelope delivered by the chat platform.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is one chat message inside an Update.
type Message struct {
	MessageID      int64    `json:"message_id"`
	From           *User    `json:"from,omitempty"`
	Chat           Chat     `json:"chat"`
	Text           string   `json:"text,omitempty"`
	ReplyToMessage *Message `json:"reply_to_message,omitempty"`
}

// User identifies a chat member.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// DisplayName is the name shown in replies and stored as the grant
// snapshot: the username when set, the first name otherwise.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

// Chat identifies the group the message came from.
type Chat struct {
	ID int64 `json:"id"`
}

// =============================================================================
// OUTBOUND REPLY
// =============================================================================

// WebhookReply is returned in the webhook response body, instructing the
// platform to send a message without a separate outbound call.
type WebhookReply struct {
	Method string `json:"method"`
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// sendMessage builds the standard reply.
func sendMessage(chatID int64, text string) WebhookReply {
	return WebhookReply{Method: "sendMessage", ChatID: chatID, Text: text}
}

// =============================================================================
// QUERY API RESPONSES
// =============================================================================

// UserStatsDTO is the /api/users/{id}/stats response.
type UserStatsDTO struct {
	UserID     int64 `json:"user_id"`
	Total      int64 `json:"total"`
	Rank       int   `json:"rank"`
	TotalUsers int   `json:"total_users"`
}

// LeaderboardEntryDTO is one row of the /api/leaderboard response.
type LeaderboardEntryDTO struct {
	Rank        int    `json:"rank"`
	DisplayName string `json:"display_name"`
	Stars       int64  `json:"stars"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toLeaderboardDTOs(entries []ledger.WindowEntry) []LeaderboardEntryDTO {
	dtos := make([]LeaderboardEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = LeaderboardEntryDTO{
			Rank:        i + 1,
			DisplayName: e.DisplayName,
			Stars:       e.Total,
		}
	}
	return dtos
}

/*
handlers.go - Command router and query API handlers

PURPOSE:
  The thin adapter between the chat platform and the ledger engine. It
  carries no invariants of its own: it extracts (target user, amount) from
  chat commands, calls the engine, and formats replies.

COMMANDS (webhook):
  /star [N]    Grant N stars (default 1) to the replied-to member
  /me          Sender's total and rank
  /top_week    Top 10 over the trailing 7 days
  /top_month   Top 10 over the trailing 30 days
  /chat_id     Echo the chat id (setup helper)

QUERY API (read-only):
  GET /api/users/{id}/stats   Total + rank for one user
  GET /api/leaderboard        Windowed top (?window=week|month&limit=N)

ERROR HANDLING:
  Invalid input gets a corrective usage hint; storage failures get a
  generic "try again" line and the cause is logged, never echoed to the
  chat. Query API errors are JSON with appropriate HTTP status.

SEE ALSO:
  - dto.go: wire types
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gleam/stars-engine/ledger"
)

const (
	weekWindow   = 7 * 24 * time.Hour
	monthWindow  = 30 * 24 * time.Hour
	defaultLimit = 10
)

// Handler holds the router's dependencies.
type Handler struct {
	Engine *ledger.Engine

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewHandler creates a handler over the given engine.
func NewHandler(engine *ledger.Engine) *Handler {
	return &Handler{
		Engine: engine,
		Now:    time.Now,
	}
}

// =============================================================================
// WEBHOOK - COMMAND DISPATCH
// =============================================================================

// Webhook receives one chat update and dispatches it to a command handler.
// POST /webhook
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var update Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid update envelope", err)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil || !strings.HasPrefix(msg.Text, "/") {
		// Not a command; acknowledge and move on.
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	reply := h.dispatch(r, msg)
	if reply == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *Handler) dispatch(r *http.Request, msg *Message) *WebhookReply {
	fields := strings.Fields(msg.Text)
	command := fields[0]
	// Group chats address commands as /star@botname.
	if i := strings.IndexByte(command, '@'); i >= 0 {
		command = command[:i]
	}

	switch command {
	case "/star":
		return h.handleStar(r, msg, fields[1:])
	case "/me":
		return h.handleMe(r, msg)
	case "/top_week":
		return h.handleTop(r, msg, weekWindow, "week")
	case "/top_month":
		return h.handleTop(r, msg, monthWindow, "month")
	case "/chat_id":
		reply := sendMessage(msg.Chat.ID, fmt.Sprintf("chat_id: %d", msg.Chat.ID))
		return &reply
	default:
		return nil
	}
}

// handleStar grants stars to the replied-to member.
func (h *Handler) handleStar(r *http.Request, msg *Message, args []string) *WebhookReply {
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		reply := sendMessage(msg.Chat.ID, "❗ Reply to a member's message to grant stars")
		return &reply
	}

	// Amount defaults to 1 when omitted.
	amount := int64(1)
	if len(args) > 0 {
		parsed, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || parsed <= 0 {
			reply := sendMessage(msg.Chat.ID, "❗ Example: /star 3")
			return &reply
		}
		amount = parsed
	}

	target := msg.ReplyToMessage.From
	receipt, err := h.Engine.Grant(r.Context(), target.ID, target.DisplayName(), amount)
	if err != nil {
		if ledger.IsClientError(err) {
			reply := sendMessage(msg.Chat.ID, "❗ Example: /star 3")
			return &reply
		}
		log.Printf("[Router] grant failed: %v", err)
		reply := sendMessage(msg.Chat.ID, "⚠️ Something went wrong, try again")
		return &reply
	}

	reply := sendMessage(msg.Chat.ID,
		fmt.Sprintf("⭐ %s received %d ⭐ (total %d)", target.DisplayName(), amount, receipt.NewTotal))
	return &reply
}

// handleMe replies with the sender's total and rank.
func (h *Handler) handleMe(r *http.Request, msg *Message) *WebhookReply {
	ctx := r.Context()
	userID := msg.From.ID

	rank, err := h.Engine.Rank(ctx, userID)
	if errors.Is(err, ledger.ErrNotRanked) {
		reply := sendMessage(msg.Chat.ID, "You have no ⭐ yet")
		return &reply
	}
	if err != nil {
		log.Printf("[Router] rank failed: %v", err)
		reply := sendMessage(msg.Chat.ID, "⚠️ Something went wrong, try again")
		return &reply
	}

	total, err := h.Engine.CurrentTotal(ctx, userID)
	if err != nil {
		log.Printf("[Router] total failed: %v", err)
		reply := sendMessage(msg.Chat.ID, "⚠️ Something went wrong, try again")
		return &reply
	}

	reply := sendMessage(msg.Chat.ID, fmt.Sprintf(
		"👤 Your stats:\n\n⭐ Stars: %d\n🏆 Rank: %d of %d",
		total, rank.Position, rank.TotalUsers))
	return &reply
}

// handleTop replies with the windowed leaderboard.
func (h *Handler) handleTop(r *http.Request, msg *Message, window time.Duration, label string) *WebhookReply {
	since := h.Now().UTC().Add(-window)
	entries, err := h.Engine.WindowedTop(r.Context(), since, defaultLimit)
	if err != nil {
		log.Printf("[Router] windowed top failed: %v", err)
		reply := sendMessage(msg.Chat.ID, "⚠️ Something went wrong, try again")
		return &reply
	}

	if len(entries) == 0 {
		reply := sendMessage(msg.Chat.ID, fmt.Sprintf("No data for the %s yet", label))
		return &reply
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏆 TOP of the %s:\n\n", label)
	for i, e := range entries {
		name := e.DisplayName
		if name == "" {
			name = "Anonymous"
		}
		fmt.Fprintf(&b, "%d. %s — ⭐ %d\n", i+1, name, e.Total)
	}

	reply := sendMessage(msg.Chat.ID, b.String())
	return &reply
}

// =============================================================================
// QUERY API
// =============================================================================

// GetUserStats returns a user's total and rank.
// GET /api/users/{id}/stats
func (h *Handler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id", err)
		return
	}

	rank, err := h.Engine.Rank(r.Context(), userID)
	if errors.Is(err, ledger.ErrNotRanked) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "user not ranked", Code: "not_ranked"})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute rank", err)
		return
	}

	total, err := h.Engine.CurrentTotal(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load total", err)
		return
	}

	writeJSON(w, http.StatusOK, UserStatsDTO{
		UserID:     userID,
		Total:      total,
		Rank:       rank.Position,
		TotalUsers: rank.TotalUsers,
	})
}

// GetLeaderboard returns the windowed top.
// GET /api/leaderboard?window=week|month&limit=10
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	window := weekWindow
	switch r.URL.Query().Get("window") {
	case "", "week":
	case "month":
		window = monthWindow
	default:
		writeError(w, http.StatusBadRequest, "window must be week or month", nil)
		return
	}

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = parsed
	}

	since := h.Now().UTC().Add(-window)
	entries, err := h.Engine.WindowedTop(r.Context(), since, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard", err)
		return
	}

	writeJSON(w, http.StatusOK, toLeaderboardDTOs(entries))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

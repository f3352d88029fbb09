package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gleam/stars-engine/api"
	"github.com/gleam/stars-engine/ledger"
	memstore "github.com/gleam/stars-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	engine *ledger.Engine
	router http.Handler
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	now := time.Date(2026, time.August, 16, 12, 0, 0, 0, time.UTC)
	engine := ledger.NewEngine(memstore.NewMemory())
	engine.Now = func() time.Time { return now }

	handler := api.NewHandler(engine)
	handler.Now = func() time.Time { return now }

	return &fixture{
		engine: engine,
		router: api.NewRouter(handler),
		now:    now,
	}
}

// postUpdate sends one webhook update and decodes the reply body.
func (f *fixture) postUpdate(t *testing.T, update api.Update) (*httptest.ResponseRecorder, api.WebhookReply) {
	t.Helper()

	body, err := json.Marshal(update)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var reply api.WebhookReply
	if rec.Code == http.StatusOK {
		_ = json.Unmarshal(rec.Body.Bytes(), &reply)
	}
	return rec, reply
}

func commandFrom(from *api.User, text string, replyTo *api.Message) api.Update {
	return api.Update{
		UpdateID: 1,
		Message: &api.Message{
			MessageID:      10,
			From:           from,
			Chat:           api.Chat{ID: -100},
			Text:           text,
			ReplyToMessage: replyTo,
		},
	}
}

var (
	alice = &api.User{ID: 1, Username: "alice"}
	bob   = &api.User{ID: 2, Username: "bob"}
)

func replyFrom(u *api.User) *api.Message {
	return &api.Message{MessageID: 5, From: u, Chat: api.Chat{ID: -100}}
}

// =============================================================================
// /star
// =============================================================================

func TestWebhook_Star_GrantsToRepliedMember(t *testing.T) {
	f := newFixture(t)

	rec, reply := f.postUpdate(t, commandFrom(alice, "/star 3", replyFrom(bob)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sendMessage", reply.Method)
	assert.Equal(t, int64(-100), reply.ChatID)
	assert.Equal(t, "⭐ bob received 3 ⭐ (total 3)", reply.Text)

	total, err := f.engine.CurrentTotal(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestWebhook_Star_DefaultsToOne(t *testing.T) {
	f := newFixture(t)

	_, reply := f.postUpdate(t, commandFrom(alice, "/star", replyFrom(bob)))

	assert.Equal(t, "⭐ bob received 1 ⭐ (total 1)", reply.Text)
}

func TestWebhook_Star_RequiresReplyTarget(t *testing.T) {
	f := newFixture(t)

	_, reply := f.postUpdate(t, commandFrom(alice, "/star 3", nil))

	assert.Equal(t, "❗ Reply to a member's message to grant stars", reply.Text)

	// Nothing was granted.
	total, err := f.engine.CurrentTotal(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestWebhook_Star_RejectsBadAmount(t *testing.T) {
	f := newFixture(t)

	for _, text := range []string{"/star zero", "/star 0", "/star -5"} {
		_, reply := f.postUpdate(t, commandFrom(alice, text, replyFrom(bob)))
		assert.Equal(t, "❗ Example: /star 3", reply.Text, "command %q", text)
	}
}

func TestWebhook_Star_BotSuffixStripped(t *testing.T) {
	f := newFixture(t)

	_, reply := f.postUpdate(t, commandFrom(alice, "/star@starsbot 2", replyFrom(bob)))

	assert.Equal(t, "⭐ bob received 2 ⭐ (total 2)", reply.Text)
}

// =============================================================================
// /me
// =============================================================================

func TestWebhook_Me_Unranked(t *testing.T) {
	f := newFixture(t)

	_, reply := f.postUpdate(t, commandFrom(alice, "/me", nil))

	assert.Equal(t, "You have no ⭐ yet", reply.Text)
}

func TestWebhook_Me_ReportsTotalAndRank(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Grant(ctx, alice.ID, "alice", 5)
	require.NoError(t, err)
	_, err = f.engine.Grant(ctx, bob.ID, "bob", 9)
	require.NoError(t, err)

	_, reply := f.postUpdate(t, commandFrom(alice, "/me", nil))

	assert.Contains(t, reply.Text, "⭐ Stars: 5")
	assert.Contains(t, reply.Text, "🏆 Rank: 2 of 2")
}

// =============================================================================
// /top_week and /top_month
// =============================================================================

func TestWebhook_TopWeek_Empty(t *testing.T) {
	f := newFixture(t)

	_, reply := f.postUpdate(t, commandFrom(alice, "/top_week", nil))

	assert.Equal(t, "No data for the week yet", reply.Text)
}

func TestWebhook_TopWeek_NumbersEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Grant(ctx, alice.ID, "alice", 5)
	require.NoError(t, err)
	_, err = f.engine.Grant(ctx, bob.ID, "bob", 9)
	require.NoError(t, err)

	_, reply := f.postUpdate(t, commandFrom(alice, "/top_week", nil))

	assert.Contains(t, reply.Text, "🏆 TOP of the week:")
	assert.Contains(t, reply.Text, "1. bob — ⭐ 9")
	assert.Contains(t, reply.Text, "2. alice — ⭐ 5")
}

// =============================================================================
// /chat_id AND NON-COMMANDS
// =============================================================================

func TestWebhook_ChatID(t *testing.T) {
	f := newFixture(t)

	_, reply := f.postUpdate(t, commandFrom(alice, "/chat_id", nil))

	assert.Equal(t, "chat_id: -100", reply.Text)
}

func TestWebhook_NonCommandAcknowledged(t *testing.T) {
	f := newFixture(t)

	rec, reply := f.postUpdate(t, commandFrom(alice, "hello there", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, reply.Method)
	assert.Contains(t, rec.Body.String(), `"ok":true`)
}

func TestWebhook_UnknownCommandAcknowledged(t *testing.T) {
	f := newFixture(t)

	rec, reply := f.postUpdate(t, commandFrom(alice, "/unknown", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, reply.Method)
}

func TestWebhook_MalformedBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// QUERY API
// =============================================================================

func TestGetUserStats_NotRanked(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/users/42/stats", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_ranked", resp.Code)
}

func TestGetUserStats_OK(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Grant(ctx, alice.ID, "alice", 5)
	require.NoError(t, err)
	_, err = f.engine.Grant(ctx, bob.ID, "bob", 9)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/users/%d/stats", alice.ID), nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats api.UserStatsDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, alice.ID, stats.UserID)
	assert.Equal(t, int64(5), stats.Total)
	assert.Equal(t, 2, stats.Rank)
	assert.Equal(t, 2, stats.TotalUsers)
}

func TestGetUserStats_BadID(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/users/abc/stats", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLeaderboard_DefaultsToWeek(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Grant(ctx, alice.ID, "alice", 5)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var entries []api.LeaderboardEntryDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "alice", entries[0].DisplayName)
	assert.Equal(t, int64(5), entries[0].Stars)
}

func TestGetLeaderboard_LimitApplied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		_, err := f.engine.Grant(ctx, i, fmt.Sprintf("user%d", i), i)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?window=month&limit=2", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var entries []api.LeaderboardEntryDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "user5", entries[0].DisplayName)
	assert.Equal(t, "user4", entries[1].DisplayName)
}

func TestGetLeaderboard_RejectsBadParams(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{
		"/api/leaderboard?window=year",
		"/api/leaderboard?limit=0",
		"/api/leaderboard?limit=abc",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "path %q", path)
	}
}

package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clearquote/assistant/internal/domain"
)

func seedConversation(t *testing.T, env *testEnv, id, tenantID, ownerID string) {
	t.Helper()
	now := time.Now()
	conv := &domain.Conversation{
		ID: id, TenantID: tenantID, OwnerID: ownerID,
		Title: "seeded", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, env.store.CreateConversation(context.Background(), conv))
}

func TestListConversationsScopedToCaller(t *testing.T) {
	env := newTestEnv(t, 20)
	seedConversation(t, env, "conv_mine", "t1", "u1")
	seedConversation(t, env, "conv_other_user", "t1", "u2")
	seedConversation(t, env, "conv_other_tenant", "t2", "u1")

	rec := env.do(http.MethodGet, "/v1/conversations", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Conversations []domain.Conversation `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Conversations, 1)
	require.Equal(t, "conv_mine", resp.Conversations[0].ID)
}

func TestGetConversationMessages(t *testing.T) {
	env := newTestEnv(t, 20)
	seedConversation(t, env, "conv_1", "t1", "u1")
	for i, content := range []string{"first", "second"} {
		msg := &domain.Message{
			ID: "msg_" + content, ConversationID: "conv_1", TenantID: "t1",
			Role: domain.RoleUser, Content: content,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, env.store.CreateMessage(context.Background(), msg))
	}

	rec := env.do(http.MethodGet, "/v1/conversations/conv_1/messages", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []domain.Message `json:"messages"`
		HasMore  bool             `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	require.Equal(t, "first", resp.Messages[0].Content)
	require.False(t, resp.HasMore)
}

func TestGetConversationMessagesLimit(t *testing.T) {
	env := newTestEnv(t, 20)
	seedConversation(t, env, "conv_1", "t1", "u1")
	for i := 0; i < 2; i++ {
		msg := &domain.Message{
			ID: "msg_" + string(rune('a'+i)), ConversationID: "conv_1", TenantID: "t1",
			Role: domain.RoleUser, Content: "hello",
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, env.store.CreateMessage(context.Background(), msg))
	}

	rec := env.do(http.MethodGet, "/v1/conversations/conv_1/messages?limit=1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []domain.Message `json:"messages"`
		HasMore  bool             `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	require.True(t, resp.HasMore)
}

func TestGetConversationMessagesForeignIs404(t *testing.T) {
	env := newTestEnv(t, 20)
	seedConversation(t, env, "conv_foreign", "t2", "u9")

	rec := env.do(http.MethodGet, "/v1/conversations/conv_foreign/messages", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), string(domain.ErrCodeConversationNotFound))
}

func TestListGuardrailEvents(t *testing.T) {
	env := newTestEnv(t, 20)
	evt := &domain.GuardrailEvent{
		ID: "evt_1", TenantID: "t1", UserID: "u1", ConversationID: "conv_1",
		TriggeredTopic: "legal advice", RedirectText: "consult a licensed attorney",
		MessageExcerpt: "can you give me legal advice", LoggedAt: time.Now(),
	}
	require.NoError(t, env.store.CreateGuardrailEvent(context.Background(), evt))

	rec := env.do(http.MethodGet, "/v1/guardrail/events", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Events []domain.GuardrailEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	require.Equal(t, "legal advice", resp.Events[0].TriggeredTopic)
}

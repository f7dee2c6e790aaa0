package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuslearn/escalation-platform/internal/assistant"
	"github.com/campuslearn/escalation-platform/internal/bridge"
	"github.com/campuslearn/escalation-platform/internal/directory"
	"github.com/campuslearn/escalation-platform/internal/middleware"
	"github.com/campuslearn/escalation-platform/internal/model"
	"github.com/campuslearn/escalation-platform/internal/service"
	"github.com/campuslearn/escalation-platform/internal/store"
	"github.com/campuslearn/escalation-platform/pkg/logger"
)

type scriptedAssistant struct {
	reply string
}

func (s *scriptedAssistant) Complete(ctx context.Context, req *assistant.Request) (string, error) {
	return s.reply, nil
}

func (s *scriptedAssistant) Name() string { return "scripted" }

type noopMessaging struct{}

func (noopMessaging) SendMessage(ctx context.Context, msg bridge.ThreadMessage) (string, error) {
	return bridge.ThreadID(msg.SenderID, msg.ReceiverID), nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, n bridge.Notification) error { return nil }

type chatFixture struct {
	handler       *ChatHandler
	conversations *service.ConversationService
	store         *store.MemoryStore
	assistant     *scriptedAssistant
}

func newChatFixture(tutors ...directory.Tutor) *chatFixture {
	log := &logger.Logger{Logger: zap.NewNop()}
	st := store.NewMemoryStore()
	dir := directory.NewStaticDirectory(tutors...)
	dir.AddUser(directory.User{ID: "student-1", FirstName: "Lerato", LastName: "Dlamini",
		Email: "577123@student.belgiumcampus.ac.za"})

	scripted := &scriptedAssistant{reply: "Here is a detailed answer to your question."}
	conversations := service.NewConversationService(st, log)
	gateway := service.NewAssistantGateway(scripted, log)
	escalations := service.NewEscalationService(st, dir, noopMessaging{}, noopNotifier{}, log)

	return &chatFixture{
		handler:       NewChatHandler(conversations, gateway, escalations, dir, log),
		conversations: conversations,
		store:         st,
		assistant:     scripted,
	}
}

func authedRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)

	ctx := context.WithValue(req.Context(), middleware.UserIDKey, "student-1")
	ctx = context.WithValue(ctx, middleware.RoleKey, "student")
	ctx = context.WithValue(ctx, middleware.ModulesKey, []string{"BCS202"})
	return req.WithContext(ctx)
}

func TestChatSend_CreatesConversationAndStoresBothMessages(t *testing.T) {
	f := newChatFixture()

	rec := httptest.NewRecorder()
	f.handler.Send(rec, authedRequest(http.MethodPost, "/api/v1/chat", model.ChatRequest{
		Content: "what is normalization?",
	}))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ConversationID)
	require.NotNil(t, resp.UserMessage)
	require.NotNil(t, resp.AssistantMessage)
	assert.Equal(t, "what is normalization?", resp.UserMessage.Content)
	assert.True(t, resp.AssistantMessage.IsFromAssistant)
	assert.Equal(t, 2, resp.MessageCount)
	assert.Equal(t, model.MaxMessages-2, resp.RemainingMessages)
	assert.False(t, resp.LimitReached)

	// Second message reuses the same conversation.
	rec = httptest.NewRecorder()
	f.handler.Send(rec, authedRequest(http.MethodPost, "/api/v1/chat", model.ChatRequest{
		Content: "and denormalization?",
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	var second model.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, resp.ConversationID, second.ConversationID)
	assert.Equal(t, 4, second.MessageCount)
}

func TestChatSend_EmptyContentRejected(t *testing.T) {
	f := newChatFixture()

	rec := httptest.NewRecorder()
	f.handler.Send(rec, authedRequest(http.MethodPost, "/api/v1/chat", model.ChatRequest{}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatSend_LimitReachedSkipsAssistant(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()

	conv := f.conversations.CreateConversation(ctx, "student-1", "")
	require.NotNil(t, conv)
	for i := 0; i < model.MaxMessages; i++ {
		require.NotNil(t, f.conversations.AddMessage(ctx, conv.ID, &model.Message{Content: "x"}))
	}

	f.assistant.reply = "should never be used"
	rec := httptest.NewRecorder()
	f.handler.Send(rec, authedRequest(http.MethodPost, "/api/v1/chat", model.ChatRequest{
		ConversationID: conv.ID,
		Content:        "one more",
	}))

	require.Equal(t, http.StatusConflict, rec.Code)

	var resp model.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.LimitReached)
	assert.Zero(t, resp.RemainingMessages)

	// No message was stored for the rejected request.
	count, err := f.store.CountMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MaxMessages, count)
}

func TestChatSend_WarningBand(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()

	conv := f.conversations.CreateConversation(ctx, "student-1", "")
	require.NotNil(t, conv)
	for i := 0; i < model.WarningThreshold-2; i++ {
		require.NotNil(t, f.conversations.AddMessage(ctx, conv.ID, &model.Message{Content: "x"}))
	}

	rec := httptest.NewRecorder()
	f.handler.Send(rec, authedRequest(http.MethodPost, "/api/v1/chat", model.ChatRequest{
		ConversationID: conv.ID,
		Content:        "almost at the limit",
	}))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, model.WarningThreshold, resp.MessageCount)
	assert.True(t, resp.ShowLimitWarning)
	assert.False(t, resp.LimitReached)
}

func TestChatSend_OtherUsersConversationRejected(t *testing.T) {
	f := newChatFixture()

	other := f.conversations.CreateConversation(context.Background(), "student-2", "")
	require.NotNil(t, other)

	rec := httptest.NewRecorder()
	f.handler.Send(rec, authedRequest(http.MethodPost, "/api/v1/chat", model.ChatRequest{
		ConversationID: other.ID,
		Content:        "hello",
	}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestConfirmEscalation_CreatesTicketAndAssigns(t *testing.T) {
	f := newChatFixture(directory.Tutor{ID: "tutor-1", FirstName: "A", LastName: "B",
		Email: "t@belgiumcampus.ac.za", Modules: []string{"BCS202"}})
	ctx := context.Background()

	conv := f.conversations.CreateConversation(ctx, "student-1", "")
	require.NotNil(t, conv)

	confidence := 0.4
	rec := httptest.NewRecorder()
	f.handler.ConfirmEscalation(rec, authedRequest(http.MethodPost, "/api/v1/chat/escalate",
		model.ConfirmEscalationRequest{
			ConversationID:   conv.ID,
			OriginalQuestion: "explain outer joins",
			ModuleCode:       &[]string{"BCS202"}[0],
			Confidence:       &confidence,
		}))

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Escalation model.Escalation `json:"escalation"`
		Assigned   bool             `json:"assigned"`
		Message    string           `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Assigned)
	assert.Equal(t, model.PriorityHigh, resp.Escalation.Priority)
	assert.NotEmpty(t, resp.Message)

	// A confirmation message lands in the conversation.
	msgs, err := f.store.Messages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].EscalatedToTutor)
}

func TestConfirmEscalation_UnknownConversation(t *testing.T) {
	f := newChatFixture()

	rec := httptest.NewRecorder()
	f.handler.ConfirmEscalation(rec, authedRequest(http.MethodPost, "/api/v1/chat/escalate",
		model.ConfirmEscalationRequest{
			ConversationID:   "b2c3d4e5-0000-7000-8000-000000000000",
			OriginalQuestion: "anything",
		}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

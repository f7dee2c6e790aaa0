package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointClient_RequestContract(t *testing.T) {
	var got endpointRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{"text": "hello"})
	}))
	defer srv.Close()

	client, err := NewEndpointClient(srv.URL)
	require.NoError(t, err)

	reply, err := client.Complete(context.Background(), &Request{
		Question:    "what is recursion?",
		Context:     "context block",
		History:     []Turn{{Role: "user", Content: "hi"}},
		UserRole:    "student",
		UserModules: []string{"BCS102"},
		Prompt:      "full prompt",
	})

	require.NoError(t, err)
	assert.Equal(t, "hello", reply)
	assert.Equal(t, "what is recursion?", got.Question)
	assert.Equal(t, "what is recursion?", got.CurrentMessage)
	assert.Equal(t, "context block", got.Context)
	assert.Equal(t, "student", got.UserRole)
	assert.Equal(t, []string{"BCS102"}, got.UserModules)
	assert.Len(t, got.ConversationHistory, 1)
}

func TestEndpointClient_ReplyShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"text field", `{"text":"from text"}`, "from text"},
		{"message field", `{"message":"from message"}`, "from message"},
		{"text wins over message", `{"text":"a","message":"b"}`, "a"},
		{"bare string", `"just a string"`, "just a string"},
		{"unknown shape", `{"reply":"elsewhere"}`, defaultReplyText},
		{"empty object", `{}`, defaultReplyText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client, err := NewEndpointClient(srv.URL)
			require.NoError(t, err)

			reply, err := client.Complete(context.Background(), &Request{Question: "q"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply)
		})
	}
}

func TestEndpointClient_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewEndpointClient(srv.URL)
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), &Request{Question: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNewEndpointClient_RequiresURL(t *testing.T) {
	_, err := NewEndpointClient("")
	require.Error(t, err)
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRequestValidate(t *testing.T) {
	temp3 := 3.0
	negTokens := -1

	cases := []struct {
		name    string
		req     ChatRequest
		wantErr bool
	}{
		{
			name:    "empty messages",
			req:     ChatRequest{},
			wantErr: true,
		},
		{
			name: "valid minimal",
			req: ChatRequest{
				Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
			},
			wantErr: false,
		},
		{
			name: "empty content",
			req: ChatRequest{
				Messages: []ChatMessage{{Role: RoleUser, Content: ""}},
			},
			wantErr: true,
		},
		{
			name: "bad role",
			req: ChatRequest{
				Messages: []ChatMessage{{Role: "narrator", Content: "hi"}},
			},
			wantErr: true,
		},
		{
			name: "temperature out of range",
			req: ChatRequest{
				Messages:    []ChatMessage{{Role: RoleUser, Content: "hi"}},
				Temperature: &temp3,
			},
			wantErr: true,
		},
		{
			name: "non-positive max tokens",
			req: ChatRequest{
				Messages:  []ChatMessage{{Role: RoleUser, Content: "hi"}},
				MaxTokens: &negTokens,
			},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := tc.req.Validate()
			if tc.wantErr {
				assert.True(t, errs.HasErrors())
			} else {
				assert.False(t, errs.HasErrors())
			}
		})
	}
}

func TestChatRequestDefaults(t *testing.T) {
	req := ChatRequest{Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}}}
	assert.Equal(t, 0.7, req.EffectiveTemperature())
	assert.Equal(t, 2000, req.EffectiveMaxTokens())
	assert.Nil(t, req.RequestedModel())

	temp := 1.2
	maxTok := 500
	model := "a/x"
	req2 := ChatRequest{Messages: req.Messages, Temperature: &temp, MaxTokens: &maxTok, Model: &model}
	assert.Equal(t, 1.2, req2.EffectiveTemperature())
	assert.Equal(t, 500, req2.EffectiveMaxTokens())
	require.NotNil(t, req2.RequestedModel())
	assert.Equal(t, ModelId("a/x"), *req2.RequestedModel())
}

func TestAttemptSuccessWasFallback(t *testing.T) {
	assert.False(t, AttemptSuccess{Attempts: 1}.WasFallback())
	assert.True(t, AttemptSuccess{Attempts: 2}.WasFallback())
}

func TestChatResponseTimeString(t *testing.T) {
	r := ChatResponse{ResponseTime: time.Hour + 2*time.Minute + 3*time.Second + 456*time.Millisecond}
	assert.Equal(t, "01:02:03.456", r.ResponseTimeString())
}

func TestStreamFrameConstructors(t *testing.T) {
	chunk := ChunkFrame("hello")
	assert.Equal(t, FrameChunk, chunk.Type)
	assert.Equal(t, "hello", chunk.Content)
	assert.Nil(t, chunk.Metadata)

	complete := CompleteFrame(StreamCompleteMetadata{Model: "a/x", TotalTokens: 5})
	assert.Equal(t, FrameComplete, complete.Type)
	require.NotNil(t, complete.Metadata)
	assert.Equal(t, 5, complete.Metadata.TotalTokens)
}

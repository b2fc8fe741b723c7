package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/treasurehunt/backend/internal/voice"
)

type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) Transcribe(ctx context.Context, req voice.Request) (*voice.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*voice.Result), args.Error(1)
}

package creative

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/campaign-cli/pkg/anthropic"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, brief Brief) (*Generated, error) {
	args := m.Called(ctx, brief)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Generated), args.Error(1)
}

type mockAnthropic struct {
	mock.Mock
}

func (m *mockAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

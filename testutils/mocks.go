package testutils

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockMailSender struct {
	mock.Mock
}

func (m *MockMailSender) Send(ctx context.Context, to []string, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

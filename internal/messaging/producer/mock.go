package producer

import (
	"context"

	"docnotary/internal/models"

	"github.com/stretchr/testify/mock"
)

// ProducerMock is a testify mock of Producer
type ProducerMock struct {
	mock.Mock
}

func (m *ProducerMock) Publish(ctx context.Context, event *models.TransactionEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *ProducerMock) PublishBatch(ctx context.Context, events []*models.TransactionEvent) error {
	return m.Called(ctx, events).Error(0)
}

func (m *ProducerMock) Close() error {
	return m.Called().Error(0)
}

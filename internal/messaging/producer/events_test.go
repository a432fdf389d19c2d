package producer

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"docnotary/config"
	"docnotary/internal/models"
	"docnotary/notarization"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEventObserver(t *testing.T) {
	// Arrange
	p := new(ProducerMock)
	var published []*models.TransactionEvent
	p.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		published = append(published, args.Get(1).(*models.TransactionEvent))
	}).Return(nil)
	obs := NewEventObserver(p, log.New(io.Discard, "", 0))
	tx := notarization.Transaction{ID: "1-0xaaaaaa", Hash: "0xaa", FileName: "deed.pdf", ChainID: "84532", Status: notarization.StatusPending}

	// Act
	obs.TransactionStarted(tx)
	tx.Status = notarization.StatusFailed
	tx.ErrorCategory = notarization.CategoryInsufficientFunds
	tx.Error = "Insufficient funds for gas fee"
	obs.TransactionFailed(tx, notarization.NewTxError(notarization.CategoryInsufficientFunds, nil))

	// Assert
	require.Len(t, published, 2)
	assert.Equal(t, "pending", published[0].Status)
	assert.Equal(t, "1-0xaaaaaa", published[0].TransactionID)
	assert.Empty(t, published[0].ErrorCategory)
	assert.Equal(t, "failed", published[1].Status)
	assert.Equal(t, "insufficient_funds", published[1].ErrorCategory)
	assert.Equal(t, "Insufficient funds for gas fee", published[1].Error)
	assert.NotEqual(t, published[0].EventID, published[1].EventID)
}

func TestEventObserver_PublishFailureIsLogged(t *testing.T) {
	p := new(ProducerMock)
	p.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))
	obs := NewEventObserver(p, log.New(io.Discard, "", 0))

	assert.NotPanics(t, func() {
		obs.TransactionConfirmed(notarization.Transaction{ID: "1", Status: notarization.StatusConfirmed}, nil)
	})
	p.AssertNumberOfCalls(t, "Publish", 1)
}

type connMock struct {
	mock.Mock
}

func (c *connMock) Publish(subj string, data []byte) error {
	return c.Called(subj, data).Error(0)
}

func (c *connMock) FlushWithContext(ctx context.Context) error {
	return c.Called().Error(0)
}

func (c *connMock) Drain() error {
	return c.Called().Error(0)
}

func TestNATSProducer(t *testing.T) {
	conn := new(connMock)
	conn.On("Publish", "notary.events", mock.MatchedBy(func(data []byte) bool {
		return assert.Contains(t, string(data), `"TransactionID":"1-0xaaaaaa"`)
	})).Return(nil)
	conn.On("FlushWithContext").Return(nil)
	conn.On("Drain").Return(nil)
	p := newNATSProducer(conn, "notary.events", log.New(io.Discard, "", 0))

	require.NoError(t, p.PublishBatch(context.Background(), []*models.TransactionEvent{
		{EventID: "e1", TransactionID: "1-0xaaaaaa"},
		{EventID: "e2", TransactionID: "1-0xaaaaaa"},
	}))
	require.NoError(t, p.Close())

	conn.AssertNumberOfCalls(t, "Publish", 2)
	conn.AssertNumberOfCalls(t, "FlushWithContext", 1)
}

func TestNew(t *testing.T) {
	logger := log.New(io.Discard, "", 0)

	p, err := New(config.EventsConfig{Kind: "none"}, logger)
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = New(config.EventsConfig{Kind: "kafka"}, logger)
	assert.Error(t, err)

	_, err = New(config.EventsConfig{Kind: "amqp"}, logger)
	assert.Error(t, err)
}

package backup

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// UploaderMock is a testify mock of Uploader
type UploaderMock struct {
	mock.Mock
}

func (m *UploaderMock) Upload(ctx context.Context, f File, opts Options) Result {
	args := m.Called(ctx, f, opts)
	return args.Get(0).(Result)
}

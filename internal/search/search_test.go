package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	custom_errors "github-commit-monitor/internal/errors"
	"github-commit-monitor/internal/model"
)

// MockFetcher is a mock of the Fetcher interface.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) GetUser(ctx context.Context, login string) (*model.User, error) {
	args := m.Called(ctx, login)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}

// MockRecorder is a mock of the Recorder interface.
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var octocat = &model.User{
	Login:       "octocat",
	Name:        "The Octocat",
	PublicRepos: 8,
	Followers:   42,
	ReposURL:    "https://api.github.com/users/octocat/repos",
}

func TestSearcher_BlankInput(t *testing.T) {
	for _, query := range []string{"", "   ", "\t\n"} {
		t.Run(fmt.Sprintf("%q", query), func(t *testing.T) {
			fetcher := new(MockFetcher)
			s := New(fetcher, testLogger())

			err := s.Search(context.Background(), query)

			var verr *custom_errors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, custom_errors.MsgEmptyQuery, err.Error())
			state := s.State()
			assert.Nil(t, state.Result)
			assert.Equal(t, custom_errors.MsgEmptyQuery, state.Err.Error())
			assert.False(t, state.Loading)
			fetcher.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
		})
	}
}

func TestSearcher_Success(t *testing.T) {
	ctx := context.Background()
	fetcher := new(MockFetcher)
	recorder := new(MockRecorder)
	fetcher.On("GetUser", ctx, "octocat").Return(octocat, nil).Once()
	recorder.On("Record", ctx, octocat).Return(nil).Once()
	s := New(fetcher, testLogger(), WithRecorder(recorder))

	err := s.Search(ctx, "  octocat ")

	require.NoError(t, err)
	state := s.State()
	assert.NoError(t, state.Err)
	assert.Same(t, octocat, state.Result)
	assert.Equal(t, "  octocat ", state.Query)
	assert.False(t, state.Loading)
	fetcher.AssertExpectations(t)
	recorder.AssertExpectations(t)
}

func TestSearcher_AnyStatusIsNotFound(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusInternalServerError} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			ctx := context.Background()
			fetcher := new(MockFetcher)
			fetcher.On("GetUser", ctx, "ghost").
				Return(nil, &custom_errors.StatusError{StatusCode: code, Err: errors.New("upstream")}).Once()
			s := New(fetcher, testLogger())

			err := s.Search(ctx, "ghost")

			var nf *custom_errors.NotFoundError
			require.ErrorAs(t, err, &nf)
			state := s.State()
			assert.Nil(t, state.Result)
			assert.Equal(t, custom_errors.MsgUserNotFound, state.Err.Error())
			assert.Equal(t, code, custom_errors.StatusCode(state.Err))
		})
	}
}

func TestSearcher_UnusablePayloadIsNotFound(t *testing.T) {
	ctx := context.Background()
	fetcher := new(MockFetcher)
	fetcher.On("GetUser", ctx, "octocat").Return(nil, &custom_errors.SchemaError{Err: errors.New("missing login")}).Once()
	s := New(fetcher, testLogger())

	err := s.Search(ctx, "octocat")

	assert.Equal(t, custom_errors.MsgUserNotFound, err.Error())
}

func TestSearcher_TransportFailure(t *testing.T) {
	ctx := context.Background()
	fetcher := new(MockFetcher)
	fetcher.On("GetUser", ctx, "octocat").Return(nil, errors.New("dial tcp: connection refused")).Once()
	s := New(fetcher, testLogger())

	err := s.Search(ctx, "octocat")

	var fe *custom_errors.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, custom_errors.MsgUserFailed, s.State().Err.Error())
	assert.Nil(t, s.State().Result)
}

func TestSearcher_NewSearchClearsPrevious(t *testing.T) {
	ctx := context.Background()
	fetcher := new(MockFetcher)
	fetcher.On("GetUser", ctx, "octocat").Return(octocat, nil).Once()
	s := New(fetcher, testLogger())

	require.NoError(t, s.Search(ctx, "octocat"))
	require.NotNil(t, s.State().Result)

	_ = s.Search(ctx, " ")

	state := s.State()
	assert.Nil(t, state.Result)
	assert.Error(t, state.Err)
}

func TestSearcher_StaleResponseIsDiscarded(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{})
	other := &model.User{Login: "hubot", ReposURL: "https://api.github.com/users/hubot/repos"}

	fetcher := new(MockFetcher)
	fetcher.On("GetUser", ctx, "octocat").Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(octocat, nil).Once()
	fetcher.On("GetUser", ctx, "hubot").Return(other, nil).Once()
	s := New(fetcher, testLogger())

	firstErr := make(chan error, 1)
	go func() { firstErr <- s.Search(ctx, "octocat") }()
	<-started

	require.NoError(t, s.Search(ctx, "hubot"))
	close(release)

	assert.ErrorIs(t, <-firstErr, custom_errors.ErrSuperseded)
	state := s.State()
	assert.Same(t, other, state.Result, "the later search wins even though its response arrived first")
	assert.Equal(t, uint64(2), state.Seq)
}

func TestSearcher_RecorderFailureIsNotSurfaced(t *testing.T) {
	ctx := context.Background()
	fetcher := new(MockFetcher)
	recorder := new(MockRecorder)
	fetcher.On("GetUser", ctx, "octocat").Return(octocat, nil).Once()
	recorder.On("Record", ctx, octocat).Return(errors.New("database down")).Once()
	s := New(fetcher, testLogger(), WithRecorder(recorder))

	err := s.Search(ctx, "octocat")

	assert.NoError(t, err)
	assert.NoError(t, s.State().Err)
	recorder.AssertExpectations(t)
}

// internal/report/report_test.go
package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	custom_errors "github-commit-monitor/internal/errors"
	"github-commit-monitor/internal/model"
)

// MockClient is a mock of the Client interface.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) ListRepositories(ctx context.Context, user *model.User) ([]model.Repository, error) {
	args := m.Called(ctx, user)
	repos, _ := args.Get(0).([]model.Repository)
	return repos, args.Error(1)
}

func (m *MockClient) ListCommits(ctx context.Context, owner, name string) ([]model.Commit, error) {
	args := m.Called(ctx, owner, name)
	commits, _ := args.Get(0).([]model.Commit)
	return commits, args.Error(1)
}

var (
	octocat = &model.User{Login: "octocat", ReposURL: "https://api.github.com/users/octocat/repos"}
	now     = time.Date(2024, 5, 2, 13, 1, 1, 0, time.UTC)
)

func newTestReporter(client Client) *Reporter {
	r := NewReporter(client, slog.New(slog.NewTextHandler(io.Discard, nil)), 2)
	r.now = func() time.Time { return now }
	return r
}

func TestReporter_Latest(t *testing.T) {
	client := new(MockClient)
	repos := []model.Repository{
		{ID: 1, Owner: "octocat", Name: "old"},
		{ID: 2, Owner: "octocat", Name: "empty"},
		{ID: 3, Owner: "octocat", Name: "fresh"},
		{ID: 4, Owner: "octocat", Name: "broken"},
	}
	client.On("ListRepositories", mock.Anything, octocat).Return(repos, nil).Once()
	client.On("ListCommits", mock.Anything, "octocat", "old").
		Return([]model.Commit{{SHA: "a", AuthorDate: now.Add(-48 * time.Hour)}}, nil).Once()
	client.On("ListCommits", mock.Anything, "octocat", "empty").Return([]model.Commit{}, nil).Once()
	client.On("ListCommits", mock.Anything, "octocat", "fresh").
		Return([]model.Commit{{SHA: "b", AuthorDate: now.Add(-90061 * time.Second)}}, nil).Once()
	client.On("ListCommits", mock.Anything, "octocat", "broken").
		Return(nil, &custom_errors.StatusError{StatusCode: 500, Err: errors.New("boom")}).Once()

	rows, err := newTestReporter(client).Latest(context.Background(), octocat)

	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "fresh", rows[0].Repository.Name)
	assert.Equal(t, "1d 1h 1m 1s", rows[0].Elapsed)
	assert.Equal(t, "old", rows[1].Repository.Name)
	assert.Equal(t, "2d 0h 0m 0s", rows[1].Elapsed)

	// Rows without commits keep their original relative order.
	assert.Equal(t, "empty", rows[2].Repository.Name)
	assert.False(t, rows[2].HasCommits)
	assert.NoError(t, rows[2].Err)
	assert.Equal(t, "broken", rows[3].Repository.Name)
	assert.Equal(t, custom_errors.MsgCommitsFailed, rows[3].Error)
	assert.Equal(t, 500, custom_errors.StatusCode(rows[3].Err))
	client.AssertExpectations(t)
}

func TestReporter_OwnerFallsBackToLogin(t *testing.T) {
	client := new(MockClient)
	client.On("ListRepositories", mock.Anything, octocat).Return([]model.Repository{{ID: 1, Name: "orphan"}}, nil).Once()
	client.On("ListCommits", mock.Anything, "octocat", "orphan").Return([]model.Commit{}, nil).Once()

	_, err := newTestReporter(client).Latest(context.Background(), octocat)

	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestReporter_RepositoryListFailure(t *testing.T) {
	client := new(MockClient)
	client.On("ListRepositories", mock.Anything, octocat).Return(nil, errors.New("connection reset")).Once()

	rows, err := newTestReporter(client).Latest(context.Background(), octocat)

	assert.Nil(t, rows)
	var fe *custom_errors.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, custom_errors.MsgReposFailed, err.Error())
	client.AssertNotCalled(t, "ListCommits", mock.Anything, mock.Anything, mock.Anything)
}

func TestReporter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := new(MockClient)
	client.On("ListRepositories", mock.Anything, octocat).Run(func(mock.Arguments) { cancel() }).
		Return([]model.Repository{{ID: 1, Owner: "octocat", Name: "a"}}, nil).Once()

	_, err := newTestReporter(client).Latest(ctx, octocat)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewReporter_DefaultConcurrency(t *testing.T) {
	r := NewReporter(new(MockClient), slog.Default(), 0)
	assert.Equal(t, DefaultConcurrency, r.concurrency)
}

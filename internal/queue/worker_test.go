package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvora/postpilot/internal/models"
	"github.com/calvora/postpilot/internal/publisher"
	"github.com/calvora/postpilot/internal/repository"
	"github.com/calvora/postpilot/internal/service"
)

type fakePostRepo struct {
	repository.PostRepository
	mu       sync.Mutex
	post     *models.Post
	statuses []string
}

func (f *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	return f.post, nil
}

func (f *fakePostRepo) UpdateStatus(ctx context.Context, status string, postID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakePostRepo) lastStatus() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return ""
	}
	return f.statuses[len(f.statuses)-1]
}

type fakeDestRepo struct {
	repository.DestinationRepository
	mu             sync.Mutex
	destinations   []*models.PostDestination
	setPlatformErr error
}

func (f *fakeDestRepo) find(id int64) *models.PostDestination {
	for _, d := range f.destinations {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (f *fakeDestRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PostDestination, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.PostDestination{}, f.destinations...), nil
}

func (f *fakeDestRepo) Claim(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.find(id)
	if d == nil {
		return false, nil
	}
	if d.Status != models.DestinationStatusScheduled && d.Status != models.DestinationStatusFailed {
		return false, nil
	}
	d.Status = models.DestinationStatusPublishing
	return true, nil
}

func (f *fakeDestRepo) MarkSuccess(ctx context.Context, id int64, platformPostID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.find(id)
	d.Status = models.DestinationStatusSuccess
	d.PlatformPostID.String = platformPostID
	d.PlatformPostID.Valid = true
	d.ErrorMessage.Valid = false
	return nil
}

func (f *fakeDestRepo) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.find(id)
	d.Status = models.DestinationStatusFailed
	d.ErrorMessage.String = errorMessage
	d.ErrorMessage.Valid = true
	return nil
}

func (f *fakeDestRepo) SetPlatformPostID(ctx context.Context, id int64, platformPostID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setPlatformErr != nil {
		return f.setPlatformErr
	}
	d := f.find(id)
	d.PlatformPostID.String = platformPostID
	d.PlatformPostID.Valid = true
	return nil
}

func (f *fakeDestRepo) CountByStatus(ctx context.Context, postID int64) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int)
	for _, d := range f.destinations {
		counts[d.Status]++
	}
	return counts, nil
}

type fakeAccountRepo struct {
	repository.SocialAccountRepository
	accounts map[int64]*models.SocialAccount
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	return f.accounts[id], nil
}

type fakeMediaRepo struct {
	repository.MediaAssetRepository
}

func (f *fakeMediaRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.MediaAsset, error) {
	return nil, nil
}

func (f *fakeMediaRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.MediaAsset, error) {
	return map[int64]*models.MediaAsset{}, nil
}

type fakeHistoryRepo struct {
	repository.PostingHistoryRepository
	mu      sync.Mutex
	entries []*models.PostingHistory
}

func (f *fakeHistoryRepo) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, ph)
	return int64(len(f.entries)), nil
}

type staticCreds struct{}

func (staticCreds) Resolve(ctx context.Context, acc *models.SocialAccount) (publisher.Credentials, error) {
	return publisher.Credentials{AccessToken: "token"}, nil
}

// scriptedPublisher records every request and answers from a script.
type scriptedPublisher struct {
	platform string
	mu       sync.Mutex
	requests []publisher.Request
	respond  func(call int, req *publisher.Request) (*publisher.Result, error)
}

func (p *scriptedPublisher) Platform() string { return p.platform }

func (p *scriptedPublisher) Publish(ctx context.Context, creds publisher.Credentials, req *publisher.Request) (*publisher.Result, error) {
	p.mu.Lock()
	call := len(p.requests)
	p.requests = append(p.requests, *req)
	p.mu.Unlock()
	return p.respond(call, req)
}

func sequentialIDs(prefix string) func(int, *publisher.Request) (*publisher.Result, error) {
	return func(call int, req *publisher.Request) (*publisher.Result, error) {
		return &publisher.Result{PlatformPostID: prefix + string(rune('0'+call))}, nil
	}
}

type executorFixture struct {
	queue   *Queue
	posts   *fakePostRepo
	dests   *fakeDestRepo
	history *fakeHistoryRepo
}

func newExecutorFixture(t *testing.T, post *models.Post, dests []*models.PostDestination, accounts map[int64]*models.SocialAccount, publishers ...publisher.Publisher) *executorFixture {
	t.Helper()

	registry, err := publisher.NewRegistry(publishers...)
	require.NoError(t, err)

	posts := &fakePostRepo{post: post}
	destRepo := &fakeDestRepo{destinations: dests}
	history := &fakeHistoryRepo{}

	q := NewQueue(
		posts,
		destRepo,
		&fakeAccountRepo{accounts: accounts},
		&fakeMediaRepo{},
		history,
		registry,
		staticCreds{},
		service.NewStatusAggregator(posts, destRepo),
	)
	return &executorFixture{queue: q, posts: posts, dests: destRepo, history: history}
}

func scheduledDest(id, postID, accountID int64, md *models.DestinationMetadata) *models.PostDestination {
	d := &models.PostDestination{
		ID:        id,
		PostID:    postID,
		AccountID: accountID,
		Status:    models.DestinationStatusScheduled,
	}
	if md != nil {
		raw, err := md.Encode()
		if err != nil {
			panic(err)
		}
		d.Metadata = raw
	}
	return d
}

func TestExecuteAllDestinationsSucceed(t *testing.T) {
	post := &models.Post{ID: 1, Content: "hello", Status: models.PostStatusScheduled}
	dests := []*models.PostDestination{
		scheduledDest(10, 1, 100, nil),
		scheduledDest(11, 1, 101, nil),
	}
	accounts := map[int64]*models.SocialAccount{
		100: {ID: 100, Platform: "twitter"},
		101: {ID: 101, Platform: "twitter"},
	}
	pub := &scriptedPublisher{platform: "twitter", respond: sequentialIDs("tw-")}

	f := newExecutorFixture(t, post, dests, accounts, pub)
	require.NoError(t, f.queue.Execute(context.Background(), 1))

	for _, d := range f.dests.destinations {
		assert.Equal(t, models.DestinationStatusSuccess, d.Status)
		assert.True(t, d.PlatformPostID.Valid)
	}
	assert.Equal(t, models.PostStatusPublished, f.posts.lastStatus())
	assert.Len(t, f.history.entries, 2)
}

func TestExecutePartialFailureIsolated(t *testing.T) {
	post := &models.Post{ID: 1, Content: "hello", Status: models.PostStatusScheduled}
	dests := []*models.PostDestination{
		scheduledDest(10, 1, 100, nil),
		scheduledDest(11, 1, 101, nil),
	}
	accounts := map[int64]*models.SocialAccount{
		100: {ID: 100, Platform: "twitter"},
		101: {ID: 101, Platform: "linkedin"},
	}
	twitter := &scriptedPublisher{platform: "twitter", respond: sequentialIDs("tw-")}
	linkedin := &scriptedPublisher{platform: "linkedin", respond: func(int, *publisher.Request) (*publisher.Result, error) {
		return nil, errors.New("token expired")
	}}

	f := newExecutorFixture(t, post, dests, accounts, twitter, linkedin)
	// A publish failure is recorded on its row, not surfaced as a task error.
	require.NoError(t, f.queue.Execute(context.Background(), 1))

	assert.Equal(t, models.DestinationStatusSuccess, f.dests.find(10).Status)

	failed := f.dests.find(11)
	assert.Equal(t, models.DestinationStatusFailed, failed.Status)
	assert.Contains(t, failed.ErrorMessage.String, "token expired")

	assert.Equal(t, models.PostStatusPartial, f.posts.lastStatus())
}

func TestExecuteSkipsAlreadyClaimedDestinations(t *testing.T) {
	post := &models.Post{ID: 1, Content: "hello", Status: models.PostStatusScheduled}
	done := scheduledDest(10, 1, 100, nil)
	done.Status = models.DestinationStatusSuccess
	dests := []*models.PostDestination{done}
	accounts := map[int64]*models.SocialAccount{100: {ID: 100, Platform: "twitter"}}
	pub := &scriptedPublisher{platform: "twitter", respond: sequentialIDs("tw-")}

	f := newExecutorFixture(t, post, dests, accounts, pub)
	require.NoError(t, f.queue.Execute(context.Background(), 1))

	// The terminal destination was never re-published.
	assert.Empty(t, pub.requests)
	assert.Equal(t, models.PostStatusPublished, f.posts.lastStatus())
}

func TestExecuteFailedDestinationsRetried(t *testing.T) {
	post := &models.Post{ID: 1, Content: "hello", Status: models.PostStatusScheduled}
	failed := scheduledDest(10, 1, 100, nil)
	failed.Status = models.DestinationStatusFailed
	dests := []*models.PostDestination{failed}
	accounts := map[int64]*models.SocialAccount{100: {ID: 100, Platform: "twitter"}}
	pub := &scriptedPublisher{platform: "twitter", respond: sequentialIDs("tw-")}

	f := newExecutorFixture(t, post, dests, accounts, pub)
	require.NoError(t, f.queue.Execute(context.Background(), 1))

	assert.Len(t, pub.requests, 1)
	assert.Equal(t, models.DestinationStatusSuccess, f.dests.find(10).Status)
}

func TestExecuteThreadChainReplay(t *testing.T) {
	md := &models.DestinationMetadata{
		FinalContent: "opening",
		ThreadChain: []models.ThreadChunk{
			{Content: "second"},
			{Content: "third"},
			{Content: "other account only", AccountIDs: []int64{999}},
			{Content: "closing"},
		},
	}
	post := &models.Post{ID: 1, Content: "ignored", Status: models.PostStatusScheduled}
	dests := []*models.PostDestination{scheduledDest(10, 1, 100, md)}
	accounts := map[int64]*models.SocialAccount{100: {ID: 100, Platform: "twitter"}}
	pub := &scriptedPublisher{platform: "twitter", respond: sequentialIDs("tw-")}

	f := newExecutorFixture(t, post, dests, accounts, pub)
	require.NoError(t, f.queue.Execute(context.Background(), 1))

	// Root plus three applicable chunks; the restricted chunk is skipped.
	require.Len(t, pub.requests, 4)
	assert.Equal(t, "opening", pub.requests[0].Content)
	assert.Empty(t, pub.requests[0].InReplyTo)

	// Each chunk replies to the immediately preceding platform id.
	assert.Equal(t, "second", pub.requests[1].Content)
	assert.Equal(t, "tw-0", pub.requests[1].InReplyTo)
	assert.Equal(t, "third", pub.requests[2].Content)
	assert.Equal(t, "tw-1", pub.requests[2].InReplyTo)
	assert.Equal(t, "closing", pub.requests[3].Content)
	assert.Equal(t, "tw-2", pub.requests[3].InReplyTo)

	d := f.dests.find(10)
	assert.Equal(t, models.DestinationStatusSuccess, d.Status)
	// The root id, not the last chunk id, identifies the destination.
	assert.Equal(t, "tw-0", d.PlatformPostID.String)
}

func TestExecuteChainAbortsOnMissingPlatformID(t *testing.T) {
	md := &models.DestinationMetadata{
		FinalContent: "opening",
		ThreadChain: []models.ThreadChunk{
			{Content: "second"},
			{Content: "never published"},
		},
	}
	post := &models.Post{ID: 1, Status: models.PostStatusScheduled}
	dests := []*models.PostDestination{scheduledDest(10, 1, 100, md)}
	accounts := map[int64]*models.SocialAccount{100: {ID: 100, Platform: "twitter"}}
	pub := &scriptedPublisher{platform: "twitter", respond: func(call int, req *publisher.Request) (*publisher.Result, error) {
		if call == 1 {
			return &publisher.Result{}, nil
		}
		return &publisher.Result{PlatformPostID: "tw-ok"}, nil
	}}

	f := newExecutorFixture(t, post, dests, accounts, pub)
	require.NoError(t, f.queue.Execute(context.Background(), 1))

	// The chain stopped at the chunk with no id rather than publishing
	// the next one with a broken reply pointer.
	assert.Len(t, pub.requests, 2)

	d := f.dests.find(10)
	assert.Equal(t, models.DestinationStatusFailed, d.Status)
	assert.Contains(t, d.ErrorMessage.String, "no platform post id")
	assert.Equal(t, models.PostStatusFailed, f.posts.lastStatus())
}

func TestExecuteInfraFailureLeavesDestinationClaimable(t *testing.T) {
	post := &models.Post{ID: 1, Content: "hello", Status: models.PostStatusScheduled}
	dests := []*models.PostDestination{scheduledDest(10, 1, 100, nil)}
	accounts := map[int64]*models.SocialAccount{100: {ID: 100, Platform: "twitter"}}
	pub := &scriptedPublisher{platform: "twitter", respond: sequentialIDs("tw-")}

	f := newExecutorFixture(t, post, dests, accounts, pub)
	f.dests.setPlatformErr = errors.New("db connection lost")

	// The storage failure propagates so the queue retries the task.
	err := f.queue.Execute(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db connection lost")

	// The row must not be parked at publishing, which the claim never
	// admits; it lands in failed where the retry can pick it up.
	d := f.dests.find(10)
	assert.Equal(t, models.DestinationStatusFailed, d.Status)

	f.dests.setPlatformErr = nil
	claimed, cerr := f.dests.Claim(context.Background(), 10)
	require.NoError(t, cerr)
	assert.True(t, claimed)
}

func TestExecuteMissingAccountFailsDestination(t *testing.T) {
	post := &models.Post{ID: 1, Content: "hello", Status: models.PostStatusScheduled}
	dests := []*models.PostDestination{scheduledDest(10, 1, 100, nil)}
	pub := &scriptedPublisher{platform: "twitter", respond: sequentialIDs("tw-")}

	f := newExecutorFixture(t, post, dests, map[int64]*models.SocialAccount{}, pub)
	require.NoError(t, f.queue.Execute(context.Background(), 1))

	d := f.dests.find(10)
	assert.Equal(t, models.DestinationStatusFailed, d.Status)
	assert.Contains(t, d.ErrorMessage.String, "no longer connected")
}

func TestExecuteDeletedPostDropsTask(t *testing.T) {
	f := newExecutorFixture(t, nil, nil, nil, &scriptedPublisher{platform: "twitter", respond: sequentialIDs("tw-")})
	assert.NoError(t, f.queue.Execute(context.Background(), 42))
	assert.Empty(t, f.posts.statuses)
}

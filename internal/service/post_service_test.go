package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"mime/multipart"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvora/postpilot/internal/models"
	"github.com/calvora/postpilot/internal/repository"
	"github.com/calvora/postpilot/internal/rules"
	"github.com/calvora/postpilot/internal/transfer"
)

type fakeAccountRepo struct {
	repository.SocialAccountRepository
	accounts map[int64]*models.SocialAccount
}

func (f *fakeAccountRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.SocialAccount, error) {
	result := make(map[int64]*models.SocialAccount)
	for _, id := range ids {
		if acc, ok := f.accounts[id]; ok {
			result[id] = acc
		}
	}
	return result, nil
}

type fakeMediaService struct {
	descriptors map[int64]rules.Media
}

func (f *fakeMediaService) Upload(ctx context.Context, workspaceID int64, files []*multipart.FileHeader) ([]*models.MediaAsset, error) {
	return nil, nil
}

func (f *fakeMediaService) ResolveDescriptors(ctx context.Context, ids []int64) (map[int64]rules.Media, error) {
	result := make(map[int64]rules.Media)
	for _, id := range ids {
		if m, ok := f.descriptors[id]; ok {
			result[id] = m
		}
	}
	return result, nil
}

func newPreparerService(accounts map[int64]*models.SocialAccount, descriptors map[int64]rules.Media) *postService {
	return &postService{
		ac:    &fakeAccountRepo{accounts: accounts},
		media: &fakeMediaService{descriptors: descriptors},
		rules: rules.NewRegistry(),
	}
}

func twitterAccount(id, workspaceID int64) *models.SocialAccount {
	return &models.SocialAccount{ID: id, WorkspaceID: workspaceID, Platform: rules.PlatformTwitter}
}

func linkedinAccount(id, workspaceID int64) *models.SocialAccount {
	return &models.SocialAccount{ID: id, WorkspaceID: workspaceID, Platform: rules.PlatformLinkedin}
}

func TestPreparePayloads(t *testing.T) {
	ctx := context.Background()
	const workspaceID = int64(7)

	t.Run("single valid destination", func(t *testing.T) {
		s := newPreparerService(map[int64]*models.SocialAccount{
			1: twitterAccount(1, workspaceID),
		}, nil)

		payloads, err := s.preparePayloads(ctx, workspaceID, "hello", nil, []transfer.DestinationRequest{
			{AccountID: 1},
		})
		require.NoError(t, err)
		require.Len(t, payloads, 1)
		assert.Equal(t, int64(1), payloads[0].AccountID)
		assert.False(t, payloads[0].ContentOverride.Valid)
	})

	t.Run("unknown and foreign accounts reported together", func(t *testing.T) {
		s := newPreparerService(map[int64]*models.SocialAccount{
			1: twitterAccount(1, workspaceID),
			2: twitterAccount(2, 99),
		}, nil)

		_, err := s.preparePayloads(ctx, workspaceID, "hello", nil, []transfer.DestinationRequest{
			{AccountID: 1}, {AccountID: 2}, {AccountID: 3},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "2")
		assert.Contains(t, err.Error(), "3")
	})

	t.Run("validation failures aggregated across destinations", func(t *testing.T) {
		s := newPreparerService(map[int64]*models.SocialAccount{
			1: twitterAccount(1, workspaceID),
			2: linkedinAccount(2, workspaceID),
		}, map[int64]rules.Media{
			10: {ID: 10, MimeType: "application/pdf"},
		})

		// A PDF is invalid for twitter and must ride alone on linkedin,
		// so both destinations fail and both failures surface.
		_, err := s.preparePayloads(ctx, workspaceID, strings.Repeat("a", 4000), []int64{10}, []transfer.DestinationRequest{
			{AccountID: 1}, {AccountID: 2},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "account 1")
		assert.Contains(t, err.Error(), "account 2")
	})

	t.Run("content override applies per destination", func(t *testing.T) {
		s := newPreparerService(map[int64]*models.SocialAccount{
			1: twitterAccount(1, workspaceID),
		}, nil)

		payloads, err := s.preparePayloads(ctx, workspaceID, "base content", nil, []transfer.DestinationRequest{
			{AccountID: 1, ContentOverride: "short version"},
		})
		require.NoError(t, err)
		require.Len(t, payloads, 1)
		require.True(t, payloads[0].ContentOverride.Valid)
		assert.Equal(t, "short version", payloads[0].ContentOverride.String)

		md := decodeMetadata(t, payloads[0].Metadata)
		assert.Equal(t, "short version", md.FinalContent)
	})

	t.Run("thread on a platform without threads rejected", func(t *testing.T) {
		s := newPreparerService(map[int64]*models.SocialAccount{
			2: linkedinAccount(2, workspaceID),
		}, nil)

		_, err := s.preparePayloads(ctx, workspaceID, "hello", nil, []transfer.DestinationRequest{
			{AccountID: 2, Thread: []transfer.ThreadItem{{Content: "follow-up"}}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not support threads")
	})

	t.Run("override combined with explicit thread rejected", func(t *testing.T) {
		s := newPreparerService(map[int64]*models.SocialAccount{
			1: twitterAccount(1, workspaceID),
		}, nil)

		_, err := s.preparePayloads(ctx, workspaceID, "hello", nil, []transfer.DestinationRequest{
			{AccountID: 1, ContentOverride: "other", Thread: []transfer.ThreadItem{{Content: "follow-up"}}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot be combined")
	})

	t.Run("explicit thread items validated and stored in order", func(t *testing.T) {
		s := newPreparerService(map[int64]*models.SocialAccount{
			1: twitterAccount(1, workspaceID),
		}, nil)

		payloads, err := s.preparePayloads(ctx, workspaceID, "opening", nil, []transfer.DestinationRequest{
			{AccountID: 1, Thread: []transfer.ThreadItem{
				{Content: "second"},
				{Content: "third", AccountIDs: []int64{1}},
			}},
		})
		require.NoError(t, err)
		require.Len(t, payloads, 1)

		md := decodeMetadata(t, payloads[0].Metadata)
		assert.Equal(t, "opening", md.FinalContent)
		require.Len(t, md.ThreadChain, 2)
		assert.Equal(t, "second", md.ThreadChain[0].Content)
		assert.Equal(t, "third", md.ThreadChain[1].Content)
		assert.Equal(t, []int64{1}, md.ThreadChain[1].AccountIDs)
	})

	t.Run("oversized chunk in explicit thread rejected", func(t *testing.T) {
		s := newPreparerService(map[int64]*models.SocialAccount{
			1: twitterAccount(1, workspaceID),
		}, nil)

		_, err := s.preparePayloads(ctx, workspaceID, "opening", nil, []transfer.DestinationRequest{
			{AccountID: 1, Thread: []transfer.ThreadItem{{Content: strings.Repeat("a", 300)}}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "thread item 1")
	})

	t.Run("auto-split chain precedes explicit items", func(t *testing.T) {
		s := newPreparerService(map[int64]*models.SocialAccount{
			1: twitterAccount(1, workspaceID),
		}, nil)

		long := strings.TrimRight(strings.Repeat("lorem ipsum dolor ", 30), " ")
		payloads, err := s.preparePayloads(ctx, workspaceID, long, nil, []transfer.DestinationRequest{
			{AccountID: 1, Thread: []transfer.ThreadItem{{Content: "explicit closer"}}},
		})
		require.NoError(t, err)
		require.Len(t, payloads, 1)

		md := decodeMetadata(t, payloads[0].Metadata)
		require.GreaterOrEqual(t, len(md.ThreadChain), 2)
		assert.Equal(t, "explicit closer", md.ThreadChain[len(md.ThreadChain)-1].Content)

		rebuilt := md.FinalContent
		for _, chunk := range md.ThreadChain[:len(md.ThreadChain)-1] {
			rebuilt += chunk.Content
		}
		assert.Equal(t, long, rebuilt)
	})
}

// txRecorder backs a stub sql driver so transaction boundaries can be
// observed without a database.
type txRecorder struct {
	mu        sync.Mutex
	commits   int
	rollbacks int
}

type stubTx struct{ rec *txRecorder }

func (t stubTx) Commit() error {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	t.rec.commits++
	return nil
}

func (t stubTx) Rollback() error {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	t.rec.rollbacks++
	return nil
}

type stubConn struct{ rec *txRecorder }

func (c stubConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("statements not supported")
}
func (c stubConn) Close() error              { return nil }
func (c stubConn) Begin() (driver.Tx, error) { return stubTx{rec: c.rec}, nil }

type stubConnector struct{ rec *txRecorder }

func (c stubConnector) Connect(ctx context.Context) (driver.Conn, error) {
	return stubConn{rec: c.rec}, nil
}
func (c stubConnector) Driver() driver.Driver { return stubDriver{} }

type stubDriver struct{}

func (stubDriver) Open(name string) (driver.Conn, error) {
	return nil, errors.New("use the connector")
}

type trackingPostRepo struct {
	repository.PostRepository
	post     *models.Post
	updated  bool
	updateTx bool
}

func (f *trackingPostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	return f.post, nil
}

func (f *trackingPostRepo) CheckByWorkspaceID(ctx context.Context, postID, workspaceID int64) (bool, error) {
	return true, nil
}

func (f *trackingPostRepo) UpdateContent(ctx context.Context, tx *sql.Tx, postID int64, content, title string, scheduledTime sql.NullTime, status string) error {
	f.updated = true
	f.updateTx = tx != nil
	return nil
}

type trackingDestRepo struct {
	repository.DestinationRepository
	removed   bool
	created   int
	createTx  bool
	createErr error
}

func (f *trackingDestRepo) RemoveByPostID(ctx context.Context, tx *sql.Tx, postID int64) error {
	f.removed = true
	return nil
}

func (f *trackingDestRepo) Create(ctx context.Context, tx *sql.Tx, d *models.PostDestination) (int64, error) {
	f.createTx = tx != nil
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.created++
	return int64(f.created), nil
}

type trackingPostMediaRepo struct {
	repository.PostMediaRepository
}

func (f *trackingPostMediaRepo) RemoveByPostID(ctx context.Context, tx *sql.Tx, postID int64) error {
	return nil
}

func (f *trackingPostMediaRepo) Create(ctx context.Context, tx *sql.Tx, pm *models.PostMedia) error {
	return nil
}

type nopScheduler struct{}

func (nopScheduler) Schedule(ctx context.Context, postID int64, runAt time.Time) error { return nil }
func (nopScheduler) Cancel(ctx context.Context, postID int64) error                    { return nil }

func newUpdateFixture(rec *txRecorder, posts *trackingPostRepo, dests *trackingDestRepo) *postService {
	return &postService{
		db:        sql.OpenDB(stubConnector{rec: rec}),
		pr:        posts,
		dr:        dests,
		ac:        &fakeAccountRepo{accounts: map[int64]*models.SocialAccount{1: twitterAccount(1, 7)}},
		pm:        &trackingPostMediaRepo{},
		media:     &fakeMediaService{},
		rules:     rules.NewRegistry(),
		schedule:  NewScheduleResolver(nil),
		scheduler: nopScheduler{},
	}
}

func TestUpdateCommitsFullReplacement(t *testing.T) {
	rec := &txRecorder{}
	posts := &trackingPostRepo{post: &models.Post{ID: 5, Status: models.PostStatusDraft}}
	dests := &trackingDestRepo{}
	s := newUpdateFixture(rec, posts, dests)

	err := s.Update(context.Background(), 7, 5, &transfer.PostUpdate{
		Content:      "updated",
		Destinations: []transfer.DestinationRequest{{AccountID: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, rec.commits)
	assert.Equal(t, 0, rec.rollbacks)
	assert.True(t, posts.updated)
	assert.True(t, posts.updateTx)
	assert.True(t, dests.removed)
	assert.Equal(t, 1, dests.created)
	assert.True(t, dests.createTx)
}

func TestUpdateRollsBackOnDestinationFailure(t *testing.T) {
	rec := &txRecorder{}
	posts := &trackingPostRepo{post: &models.Post{ID: 5, Status: models.PostStatusDraft}}
	dests := &trackingDestRepo{createErr: errors.New("db connection lost")}
	s := newUpdateFixture(rec, posts, dests)

	err := s.Update(context.Background(), 7, 5, &transfer.PostUpdate{
		Content:      "updated",
		Destinations: []transfer.DestinationRequest{{AccountID: 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db connection lost")

	// The content update and the destination delete ran inside the same
	// transaction as the failed insert, so the whole pass is undone.
	assert.Equal(t, 0, rec.commits)
	assert.Equal(t, 1, rec.rollbacks)
}

func TestUpdateFrozenPostRejected(t *testing.T) {
	rec := &txRecorder{}
	posts := &trackingPostRepo{post: &models.Post{ID: 5, Status: models.PostStatusPublished}}
	dests := &trackingDestRepo{}
	s := newUpdateFixture(rec, posts, dests)

	err := s.Update(context.Background(), 7, 5, &transfer.PostUpdate{
		Content:      "updated",
		Destinations: []transfer.DestinationRequest{{AccountID: 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer be edited")
	assert.False(t, posts.updated)
	assert.False(t, dests.removed)
}

func decodeMetadata(t *testing.T, raw []byte) *models.DestinationMetadata {
	t.Helper()
	dest := &models.PostDestination{Metadata: raw}
	md, err := dest.DecodeMetadata()
	require.NoError(t, err)
	return md
}

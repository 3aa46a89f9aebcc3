package harvest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"describer/internal/httpclient"
	"describer/pkg/checkpoint"
	"describer/pkg/config"
	"describer/pkg/logger"
	"describer/pkg/storage"
	"describer/pkg/twitter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTimeline serves accounts whose tweets have ids count..1, newest first
type fakeTimeline struct {
	mu       sync.Mutex
	mediaURL string
	counts   map[string]int
	calls    map[string][]int64
	userErr  error
	failAt   int64
}

func (f *fakeTimeline) GetUser(ctx context.Context, screenName string) (*twitter.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return &twitter.User{IDStr: "id-" + screenName, ScreenName: screenName, StatusesCount: f.counts[screenName]}, nil
}

func (f *fakeTimeline) GetUserTimeline(ctx context.Context, screenName string, count int, maxID int64) ([]twitter.Tweet, error) {
	f.mu.Lock()
	f.calls[screenName] = append(f.calls[screenName], maxID)
	f.mu.Unlock()

	if f.failAt > 0 && maxID == f.failAt {
		return nil, errors.New("over capacity")
	}

	top := int64(f.counts[screenName])
	if maxID > 0 && maxID < top {
		top = maxID
	}

	var out []twitter.Tweet
	for id := top; id > 0 && len(out) < count; id-- {
		tw := twitter.Tweet{ID: id, IDStr: fmt.Sprint(id)}
		// every other tweet carries a photo, every third a video
		if id%2 == 0 {
			tw.ExtendedEntities.Media = append(tw.ExtendedEntities.Media, twitter.Media{
				ID: id * 10, IDStr: fmt.Sprint(id * 10), Type: "photo",
				MediaURLHTTPS: fmt.Sprintf("%s/media/%s/%d.jpg", f.mediaURL, screenName, id),
			})
		}
		if id%3 == 0 {
			tw.ExtendedEntities.Media = append(tw.ExtendedEntities.Media, twitter.Media{ID: id * 100, Type: "video"})
		}
		out = append(out, tw)
	}
	return out, nil
}

func newMediaServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/4.jpg") {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, "jpeg:%s", r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestHarvest(t *testing.T) {
	srv := newMediaServer(t)
	dir := t.TempDir()

	// already harvested earlier
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cursedimages-2-20.jpg"), []byte("old"), 0644))
	store, err := storage.NewManager(dir, "jpg")
	require.NoError(t, err)

	timeline := &fakeTimeline{
		mediaURL: srv.URL,
		counts:   map[string]int{"cursedimages": 7, "cursedimages_2": 2},
		calls:    make(map[string][]int64),
	}
	fetcher := httpclient.New("media", 5*time.Second, logger.NewNopLogger())
	h := New(config.HarvestConfig{PageSize: 3}, timeline, fetcher, store, nil, 2, 0, logger.NewNopLogger())

	summary, err := h.Run(context.Background(), []string{"cursedimages", "cursedimages_2"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Accounts)
	assert.Equal(t, 9, summary.Statuses)
	// photos: cursedimages 6,4,2 and cursedimages_2 2
	assert.Equal(t, 4, summary.Media)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Downloaded)

	assert.Equal(t, []string{
		"cursedimages-2-20.jpg",
		"cursedimages-6-60.jpg",
		"cursedimages_2-2-20.jpg",
	}, listDir(t, dir))

	data, err := os.ReadFile(filepath.Join(dir, "cursedimages-6-60.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg:/media/cursedimages/6.jpg", string(data))

	// 7 statuses in pages of 3: max_id 0, then 4, then 1
	assert.Equal(t, []int64{0, 4, 1}, timeline.calls["cursedimages"])
	assert.Equal(t, []int64{0}, timeline.calls["cursedimages_2"])
}

func TestHarvestStopsOnTimelineError(t *testing.T) {
	store, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)

	timeline := &fakeTimeline{userErr: errors.New("user suspended"), calls: make(map[string][]int64)}
	h := New(config.HarvestConfig{}, timeline, httpclient.New("media", time.Second, logger.NewNopLogger()), store, nil, 1, 0, nil)

	summary, err := h.Run(context.Background(), []string{"gone"})
	assert.ErrorContains(t, err, "user suspended")
	assert.Equal(t, 0, summary.Media)
}

func TestHarvestWaitsForTimelineBudget(t *testing.T) {
	srv := newMediaServer(t)
	store, err := storage.NewManager(t.TempDir(), "jpg")
	require.NoError(t, err)

	timeline := &fakeTimeline{
		mediaURL: srv.URL,
		counts:   map[string]int{"cursedimages": 7},
		calls:    make(map[string][]int64),
	}
	fetcher := httpclient.New("media", 5*time.Second, logger.NewNopLogger())
	cfg := config.HarvestConfig{PageSize: 3, TimelineRequests: 2, TimelineWindow: time.Hour}
	h := New(cfg, timeline, fetcher, store, nil, 1, 0, logger.NewNopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	summary, err := h.Run(ctx, []string{"cursedimages"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timeline budget")
	// the user lookup and one page fit in the window
	assert.Equal(t, []int64{0}, timeline.calls["cursedimages"])
	assert.Equal(t, 3, summary.Statuses)
}

func TestNewClampsPageSize(t *testing.T) {
	h := New(config.HarvestConfig{PageSize: 1000}, nil, nil, nil, nil, 1, 0, nil)
	assert.Equal(t, twitter.MaxTimelinePage, h.pageSize)

	h = New(config.HarvestConfig{}, nil, nil, nil, nil, 1, 0, nil)
	assert.Equal(t, twitter.MaxTimelinePage, h.pageSize)
}

func TestHarvestResumesFromCheckpoint(t *testing.T) {
	srv := newMediaServer(t)
	store, err := storage.NewManager(t.TempDir(), "jpg")
	require.NoError(t, err)
	checkpoints, err := checkpoint.NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	// first page (ids 7..5) was queued by an earlier run
	cp, err := checkpoints.Create("cursedimages", "id-cursedimages")
	require.NoError(t, err)
	require.NoError(t, checkpoints.Advance(cp, 4, 3, 1))

	timeline := &fakeTimeline{
		mediaURL: srv.URL,
		counts:   map[string]int{"cursedimages": 7},
		calls:    make(map[string][]int64),
	}
	h := New(config.HarvestConfig{PageSize: 3}, timeline, httpclient.New("media", 5*time.Second, nil), store, nil, 1, 0, nil).
		WithCheckpoints(checkpoints)

	summary, err := h.Run(context.Background(), []string{"cursedimages"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Resumed)
	assert.Equal(t, []int64{4, 1}, timeline.calls["cursedimages"])
	assert.Equal(t, 4, summary.Statuses)
	assert.False(t, checkpoints.Exists("cursedimages"), "finished accounts drop their checkpoint")
}

func TestHarvestIgnoresCheckpointOfOtherUser(t *testing.T) {
	srv := newMediaServer(t)
	store, err := storage.NewManager(t.TempDir(), "jpg")
	require.NoError(t, err)
	checkpoints, err := checkpoint.NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	cp, err := checkpoints.Create("cursedimages", "id-someone-else")
	require.NoError(t, err)
	require.NoError(t, checkpoints.Advance(cp, 4, 3, 1))

	timeline := &fakeTimeline{
		mediaURL: srv.URL,
		counts:   map[string]int{"cursedimages": 7},
		calls:    make(map[string][]int64),
	}
	h := New(config.HarvestConfig{PageSize: 3}, timeline, httpclient.New("media", 5*time.Second, nil), store, nil, 1, 0, nil).
		WithCheckpoints(checkpoints)

	summary, err := h.Run(context.Background(), []string{"cursedimages"})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Resumed)
	assert.Equal(t, []int64{0, 4, 1}, timeline.calls["cursedimages"])
}

func TestHarvestKeepsCheckpointOnFailure(t *testing.T) {
	srv := newMediaServer(t)
	store, err := storage.NewManager(t.TempDir(), "jpg")
	require.NoError(t, err)
	checkpoints, err := checkpoint.NewManager(t.TempDir(), nil)
	require.NoError(t, err)

	timeline := &fakeTimeline{
		mediaURL: srv.URL,
		counts:   map[string]int{"cursedimages": 7},
		calls:    make(map[string][]int64),
		failAt:   1,
	}
	h := New(config.HarvestConfig{PageSize: 3}, timeline, httpclient.New("media", 5*time.Second, nil), store, nil, 1, 0, nil).
		WithCheckpoints(checkpoints)

	_, err = h.Run(context.Background(), []string{"cursedimages"})
	require.ErrorContains(t, err, "over capacity")

	cp, err := checkpoints.Load("cursedimages")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 2, cp.Pages)
	assert.Equal(t, int64(1), cp.MaxID)
	assert.Equal(t, 6, cp.Statuses)
}

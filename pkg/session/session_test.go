package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class1/graduate/pkg/shootingtime"
	"github.com/class1/graduate/pkg/storage"
	"github.com/class1/graduate/pkg/timeline"
	"github.com/class1/graduate/pkg/whttp"
)

const eventsDoc = `
[[event]]
description = "Opening ceremony"
date = 2019-09-01
with = [1, 2]
image = ["/image/open/1.jpg", "/image/open/2.jpg"]

[[event]]
description = "Sports day"
image = [
  { path = "/image/sports/1.jpg", date = 2020-10-20T09:00:00, with = [1] },
  { path = "/image/sports/2.jpg", date = 2020-10-20T10:00:00, with = [2] },
]

[[event]]
description = "Graduation"
date = 2022-06-30
with = [1, 2]
image = ["/image/grad/1.jpg", "/image/grad/missing.jpg"]
`

const aliceProfile = `
[[experience]]
description = "Summer camp"
date = 2020-06-15
image = ["/image/alice/camp.jpg"]
`

type origin struct {
	srv *httptest.Server

	mu   sync.Mutex
	hits map[string]int
}

func newOrigin(t *testing.T) *origin {
	t.Helper()
	o := &origin{hits: map[string]int{}}
	o.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		o.hits[r.URL.Path]++
		o.mu.Unlock()

		switch p := r.URL.Path; {
		case p == "/meta/index.toml":
			fmt.Fprintf(w, "url_prefix = %q\n[profile]\n1 = \"Alice\"\n2 = \"Bob\"\n", o.srv.URL+"/content")
		case p == "/content/events.toml":
			fmt.Fprint(w, eventsDoc)
		case p == "/content/profile/1.toml":
			fmt.Fprint(w, aliceProfile)
		case strings.HasPrefix(p, "/content/image/") && !strings.Contains(p, "missing"):
			fmt.Fprint(w, "jpeg:"+strings.TrimPrefix(p, "/content"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(o.srv.Close)
	return o
}

func (o *origin) count(p string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[p]
}

func testConfig(t *testing.T, o *origin, subject int) Config {
	t.Helper()
	client, err := whttp.NewClient(whttp.Options{RetryMax: 1})
	require.NoError(t, err)
	return Config{
		IndexURL: o.srv.URL + "/meta/index.toml",
		Root:     t.TempDir(),
		Fetcher:  client,
		Subject:  subject,
	}
}

func descriptions(tl *timeline.Timeline) []string {
	var out []string
	for _, e := range tl.Events() {
		out = append(out, e.Description)
	}
	return out
}

func TestOpenBuildsSubjectTimeline(t *testing.T) {
	o := newOrigin(t)
	cfg := testConfig(t, o, 1)
	cfg.From = shootingtime.MustParse("2020-06-01")

	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "Alice", s.Subject.Name)
	assert.Equal(t, []string{"Opening ceremony", "Summer camp", "Sports day", "Graduation"}, descriptions(s.Timeline()))

	ev, ex := s.Cursor()
	assert.Equal(t, 1, ev, "first event on or after 2020-06-01")
	assert.Equal(t, 0, ex)

	sports, err := s.Timeline().Event(2)
	require.NoError(t, err)
	require.Len(t, sports.Experiences, 1, "Bob's sports photo is filtered out")

	p, err := s.AwaitCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jpeg:/image/alice/camp.jpg", string(p))

	// Bob's profile is missing on the origin, which is not an error.
	assert.Equal(t, 1, o.count("/content/profile/2.toml"))
}

func TestNavigationPrefetchesAndSurvivesFailures(t *testing.T) {
	o := newOrigin(t)
	cfg := testConfig(t, o, 2)

	var mu sync.Mutex
	var failures []string
	cfg.OnLoaded = func(ev, ex int, err error) {
		if err != nil {
			mu.Lock()
			failures = append(failures, fmt.Sprintf("%d/%d", ev, ex))
			mu.Unlock()
		}
	}

	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"Opening ceremony", "Sports day", "Graduation"}, descriptions(s.Timeline()))

	// the whole timeline fits in the first window
	s.sched.Wait()
	assert.Equal(t, []string{"2/1"}, failures)

	for s.NextEvent() {
	}
	ev, _ := s.Cursor()
	assert.Equal(t, 2, ev)
	assert.False(t, s.NextEvent(), "end of timeline")

	v, err := s.Current()
	require.NoError(t, err)
	assert.True(t, v.Loaded)
	assert.Equal(t, "Graduation", v.Event.Description)

	assert.Equal(t, 1, s.NextExperience())
	_, err = s.AwaitCurrent(context.Background())
	assert.Error(t, err, "missing photo stays an error")
	assert.Equal(t, 0, s.NextExperience(), "photos wrap around")

	assert.Equal(t, 1, o.count("/content/image/grad/1.jpg"), "loaded once")
}

func TestUnknownSubject(t *testing.T) {
	o := newOrigin(t)
	_, err := Open(context.Background(), testConfig(t, o, 3))
	assert.ErrorIs(t, err, ErrUnknownSubject)
}

func TestRosterAndOfflineReopen(t *testing.T) {
	o := newOrigin(t)
	cfg := testConfig(t, o, 1)

	roster, err := Roster(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "Bob", roster[1].Name)

	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	_, err = s.AwaitCurrent(context.Background())
	require.NoError(t, err)
	s.Close()

	// everything needed to open the timeline is cached now
	o.srv.Close()
	s, err = Open(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 4, s.Timeline().Len())
	p, err := s.AwaitCurrent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jpeg:/image/open/1.jpg", string(p))
}

func TestProgressRestore(t *testing.T) {
	o := newOrigin(t)
	cfg := testConfig(t, o, 1)

	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, s.Jump(3))
	s.NextExperience()
	saved := s.Progress()
	s.Close()

	assert.Equal(t, storage.Progress{
		Subject:      1,
		FromDate:     shootingtime.MustParse("2022-06-30"),
		OnEvent:      3,
		OnExperience: 1,
		SessionID:    s.ID,
	}, saved)

	s, err = Open(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()
	s.Restore(saved)
	ev, ex := s.Cursor()
	assert.Equal(t, [2]int{3, 1}, [2]int{ev, ex})
}

package index

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/class1/graduate/pkg/assets"
	"github.com/class1/graduate/pkg/records"
	"github.com/class1/graduate/pkg/whttp"
)

const indexDoc = `
url_prefix = "https://cdn.example.com/graduate/"
together_events = 2

[profile]
2 = "Bob"
1 = "Alice"
10 = "Judy"
`

func TestDecode(t *testing.T) {
	ix, err := Decode([]byte(indexDoc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ix.URLPrefix != "https://cdn.example.com/graduate" {
		t.Fatalf("url prefix = %q", ix.URLPrefix)
	}
	want := []Subject{{1, "Alice"}, {2, "Bob"}, {10, "Judy"}}
	if len(ix.Roster) != len(want) {
		t.Fatalf("roster = %v, want %v", ix.Roster, want)
	}
	for i := range want {
		if ix.Roster[i] != want[i] {
			t.Fatalf("roster = %v, want %v", ix.Roster, want)
		}
	}
	if ix.TogetherEvents != 2 || ix.EventsPath != DefaultEventsPath || ix.ProfileDir != DefaultProfileDir {
		t.Fatalf("unexpected index: %+v", ix)
	}
	if got := ix.ProfilePath(10); got != "/profile/10.toml" {
		t.Fatalf("ProfilePath(10) = %q", got)
	}
	if s, ok := ix.Subject(2); !ok || s.Name != "Bob" {
		t.Fatalf("Subject(2) = %v, %v", s, ok)
	}
	if _, ok := ix.Subject(3); ok {
		t.Fatalf("Subject(3) should not exist")
	}
}

func TestDecodeOverrides(t *testing.T) {
	ix, err := Decode([]byte("url_prefix = \"http://x\"\nevents = \"data/events.toml\"\nprofile_dir = \"/people/\"\n[profile]\n1 = \"A\"\n"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ix.EventsPath != "/data/events.toml" || ix.ProfileDir != "/people" {
		t.Fatalf("unexpected paths: %+v", ix)
	}
}

func TestDecodeErrors(t *testing.T) {
	docs := map[string]string{
		"no url_prefix":   "[profile]\n1 = \"A\"\n",
		"no profile":      "url_prefix = \"http://x\"\n",
		"bad profile key": "url_prefix = \"http://x\"\n[profile]\nabc = \"A\"\n",
		"bad name":        "url_prefix = \"http://x\"\n[profile]\n1 = 5\n",
		"bad together":    "url_prefix = \"http://x\"\ntogether_events = \"x\"\n[profile]\n1 = \"A\"\n",
		"not toml":        "url_prefix = ",
	}
	for name, doc := range docs {
		if _, err := Decode([]byte(doc)); !errors.Is(err, ErrIndex) {
			t.Fatalf("%s: err = %v, want ErrIndex", name, err)
		}
	}
}

func TestSplitURL(t *testing.T) {
	origin, p, err := SplitURL("https://amazingkenneth.github.io/graduate/index.toml")
	if err != nil || origin != "https://amazingkenneth.github.io/graduate" || p != "/index.toml" {
		t.Fatalf("SplitURL = %q, %q, %v", origin, p, err)
	}
	origin, p, err = SplitURL("http://localhost:8080/index.toml?x=1")
	if err != nil || origin != "http://localhost:8080" || p != "/index.toml" {
		t.Fatalf("SplitURL = %q, %q, %v", origin, p, err)
	}
	for _, bad := range []string{"index.toml", "http://host/dir/", "://"} {
		if _, _, err := SplitURL(bad); err == nil {
			t.Fatalf("SplitURL(%q) should fail", bad)
		}
	}
}

func TestLoadDocuments(t *testing.T) {
	files := map[string]string{
		"/index.toml":     "url_prefix = \"unused\"\n[profile]\n1 = \"Alice\"\n2 = \"Bob\"\n",
		"/events.toml":    "[[event]]\ndescription = \"Sports day\"\ndate = 2020-10-20\nwith = [1]\nimage = [\"/a.jpg\"]\n",
		"/profile/1.toml": "[[experience]]\ndescription = \"First day\"\ndate = 2019-09-01\nimage = [\"/b.jpg\"]\n",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	client, err := whttp.NewClient(whttp.Options{RetryMax: 1})
	if err != nil {
		t.Fatal(err)
	}
	res, err := assets.New(assets.Config{Root: t.TempDir(), Origin: srv.URL, Fetcher: client})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	ix, err := Fetch(ctx, res, "/index.toml")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	events, err := ix.LoadEvents(ctx, res)
	if err != nil || len(events) != 1 || events[0].Description != "Sports day" {
		t.Fatalf("LoadEvents = %v, %v", events, err)
	}

	profiles, err := ix.LoadProfiles(ctx, res, nil)
	if err != nil {
		t.Fatalf("LoadProfiles: %v", err)
	}
	want := []records.Profile{{Owner: 1}, {Owner: 2}}
	if len(profiles) != 2 || profiles[0].Owner != want[0].Owner || profiles[1].Owner != want[1].Owner {
		t.Fatalf("profiles = %+v", profiles)
	}
	if len(profiles[0].Records) != 1 || len(profiles[1].Records) != 0 {
		t.Fatalf("missing profile should be empty: %+v", profiles)
	}

	// origin gone: the index comes from the cache
	srv.Close()
	if _, err := Fetch(ctx, res, "/index.toml"); err != nil {
		t.Fatalf("offline Fetch: %v", err)
	}
}

func TestLoadEventsSchemaError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("title = \"no events\"\n"))
	}))
	defer srv.Close()

	client, _ := whttp.NewClient(whttp.Options{RetryMax: 1})
	res, err := assets.New(assets.Config{Root: t.TempDir(), Origin: srv.URL, Fetcher: client})
	if err != nil {
		t.Fatal(err)
	}
	ix := &Index{EventsPath: DefaultEventsPath, ProfileDir: DefaultProfileDir}
	if _, err := ix.LoadEvents(context.Background(), res); !errors.Is(err, records.ErrSchema) {
		t.Fatalf("err = %v, want ErrSchema", err)
	}
}

// Package index decodes the index document that names the asset origin, the
// roster and where the events and profile documents live, and loads those
// documents through the asset cache.
package index

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

var ErrIndex = errors.New("malformed index document")

const (
	DefaultEventsPath = "/events.toml"
	DefaultProfileDir = "/profile"
)

// Subject is one roster entry.
type Subject struct {
	ID   int
	Name string
}

type Index struct {
	URLPrefix      string
	Roster         []Subject // ordered by ID
	TogetherEvents int
	EventsPath     string
	ProfileDir     string
}

// Decode parses the index document. `url_prefix` and `profile` are required.
func Decode(data []byte) (*Index, error) {
	var doc map[string]interface{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndex, err)
	}

	ix := &Index{EventsPath: DefaultEventsPath, ProfileDir: DefaultProfileDir}

	prefix, ok := doc["url_prefix"].(string)
	if !ok || prefix == "" {
		return nil, fmt.Errorf("%w: missing or non-string `url_prefix`", ErrIndex)
	}
	ix.URLPrefix = strings.TrimSuffix(prefix, "/")

	profiles, ok := doc["profile"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: missing `profile` table", ErrIndex)
	}
	for k, v := range profiles {
		id, err := strconv.Atoi(k)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: profile key %q is not a positive integer", ErrIndex, k)
		}
		name, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: profile %d has a non-string name", ErrIndex, id)
		}
		ix.Roster = append(ix.Roster, Subject{ID: id, Name: name})
	}
	sort.Slice(ix.Roster, func(i, j int) bool { return ix.Roster[i].ID < ix.Roster[j].ID })

	if v, ok := doc["together_events"]; ok {
		n, ok := v.(int64)
		if !ok || n < 0 {
			return nil, fmt.Errorf("%w: `together_events` must be a non-negative integer", ErrIndex)
		}
		ix.TogetherEvents = int(n)
	}
	if v, ok := doc["events"]; ok {
		p, ok := v.(string)
		if !ok || p == "" {
			return nil, fmt.Errorf("%w: `events` must be a path", ErrIndex)
		}
		ix.EventsPath = logical(p)
	}
	if v, ok := doc["profile_dir"]; ok {
		p, ok := v.(string)
		if !ok || p == "" {
			return nil, fmt.Errorf("%w: `profile_dir` must be a path", ErrIndex)
		}
		ix.ProfileDir = strings.TrimSuffix(logical(p), "/")
	}
	return ix, nil
}

// Subject looks a roster entry up by id.
func (ix *Index) Subject(id int) (Subject, bool) {
	for _, s := range ix.Roster {
		if s.ID == id {
			return s, true
		}
	}
	return Subject{}, false
}

// ProfilePath is the logical path of one subject's profile document.
func (ix *Index) ProfilePath(id int) string {
	return fmt.Sprintf("%s/%d.toml", ix.ProfileDir, id)
}

// SplitURL splits the index URL into the origin it is served from and its
// logical path, so the index is cached like any other asset.
func SplitURL(indexURL string) (origin, logicalPath string, err error) {
	u, err := url.Parse(indexURL)
	if err != nil {
		return "", "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("index url %q is not absolute", indexURL)
	}
	dir, file := path.Split(u.Path)
	if file == "" {
		return "", "", fmt.Errorf("index url %q does not name a document", indexURL)
	}
	u.Path = strings.TrimSuffix(dir, "/")
	u.RawQuery, u.Fragment = "", ""
	return u.String(), "/" + file, nil
}

func logical(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

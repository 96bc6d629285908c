package index

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/class1/graduate/pkg/assets"
	"github.com/class1/graduate/pkg/records"
	"github.com/class1/graduate/pkg/whttp"
)

// Source reads documents through the asset cache. *assets.Resolver is one.
type Source interface {
	Resolve(ctx context.Context, logicalPath string) ([]byte, error)
	Refresh(ctx context.Context, logicalPath string) ([]byte, error)
}

type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}

// Fetch downloads the index document, falling back to the cached copy when
// the origin cannot be reached.
func Fetch(ctx context.Context, src Source, logicalPath string) (*Index, error) {
	data, err := src.Refresh(ctx, logicalPath)
	if err != nil {
		return nil, fmt.Errorf("could not load index %s: %w", logicalPath, err)
	}
	return Decode(data)
}

// LoadEvents reads and decodes the shared events document.
func (ix *Index) LoadEvents(ctx context.Context, src Source) ([]records.Record, error) {
	data, err := src.Resolve(ctx, ix.EventsPath)
	if err != nil {
		return nil, fmt.Errorf("could not load events %s: %w", ix.EventsPath, err)
	}
	return records.DecodeEvents(data)
}

// LoadProfiles reads and decodes the profile document of every roster
// entry. A profile the origin does not have is an empty profile, and so is one
// that can be neither downloaded nor read from the cache.
func (ix *Index) LoadProfiles(ctx context.Context, src Source, log Logger) ([]records.Profile, error) {
	if log == nil {
		log = nopLogger{}
	}
	out := make([]records.Profile, 0, len(ix.Roster))
	for _, s := range ix.Roster {
		p := ix.ProfilePath(s.ID)
		data, err := src.Resolve(ctx, p)
		if err != nil {
			if isNotFound(err) {
				log.Debugf("No profile for %d (%s)", s.ID, s.Name)
				out = append(out, records.Profile{Owner: s.ID})
				continue
			}
			if errors.Is(err, assets.ErrNetwork) {
				log.Warnf("Skipping profile of %d (%s): %v", s.ID, s.Name, err)
				out = append(out, records.Profile{Owner: s.ID})
				continue
			}
			return nil, fmt.Errorf("could not load profile %s: %w", p, err)
		}
		profile, err := records.DecodeProfile(s.ID, data)
		if err != nil {
			return nil, err
		}
		out = append(out, profile)
	}
	return out, nil
}

func isNotFound(err error) bool {
	var se *whttp.StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

package prefetch

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/class1/graduate/pkg/shootingtime"
	"github.com/class1/graduate/pkg/timeline"
)

func TestPathsDeduplicates(t *testing.T) {
	day := shootingtime.MustParse("2020-01-01")
	shared := timeline.NewExperience("/image/shared.jpg", day, []int{1})
	tl := timeline.Merge(
		[]*timeline.Event{timeline.NewEvent("mine", []*timeline.Experience{shared})},
		[]*timeline.Event{timeline.NewEvent("ours", []*timeline.Experience{
			timeline.NewExperience("/image/shared.jpg", day, []int{1}),
			timeline.NewExperience("/image/other.jpg", day, []int{1}),
		})},
	)
	assert.Equal(t, []string{"/image/shared.jpg", "/image/other.jpg"}, Paths(tl))
}

func TestWarmCollectsErrors(t *testing.T) {
	res := newFakeResolver()
	res.setFail("/b.jpg", true)

	var mu sync.Mutex
	var done []string
	result := Warm(context.Background(), WarmConfig{
		Paths:       []string{"/a.jpg", "/b.jpg", "/c.jpg"},
		Resolver:    res,
		Concurrency: 2,
		OnAssetDone: func(path string, err error) {
			mu.Lock()
			done = append(done, path)
			mu.Unlock()
		},
	})

	sort.Strings(result.Resolved)
	assert.Equal(t, []string{"/a.jpg", "/c.jpg"}, result.Resolved)
	assert.Len(t, result.Errors, 1)
	assert.Len(t, done, 3)
}

func TestWarmEmpty(t *testing.T) {
	result := Warm(context.Background(), WarmConfig{Resolver: newFakeResolver()})
	assert.Empty(t, result.Resolved)
	assert.Empty(t, result.Errors)
}

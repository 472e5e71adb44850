package decisioning

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deleterr/deleterr/internal/config"
	"github.com/deleterr/deleterr/internal/media"
)

var now = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

func movie(id int64, title string, size int64, year int) Candidate {
	return Candidate{Record: &media.Movie{Common: media.Common{
		ID: id, Title: title, SortTitle: title, SizeOnDisk: size, Year: year,
	}}}
}

func watched(c Candidate, daysAgo int) Candidate {
	c.Activity = &media.Activity{LastWatched: now.Add(-time.Duration(daysAgo) * 24 * time.Hour)}
	return c
}

func ids(cands []Candidate) []int64 {
	if len(cands) == 0 {
		return nil
	}
	out := make([]int64, len(cands))
	for i, c := range cands {
		out[i] = c.Record.Data().ID
	}
	return out
}

func TestSort_StableOnTies(t *testing.T) {
	tests := []struct {
		name  string
		order string
		want  []int64
	}{
		{name: "asc", order: "asc", want: []int64{2, 4, 1, 3, 5}},
		{name: "desc", order: "desc", want: []int64{1, 3, 5, 2, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cands := []Candidate{
				movie(1, "a", 200, 2000),
				movie(2, "b", 100, 2000),
				movie(3, "c", 200, 2000),
				movie(4, "d", 100, 2000),
				movie(5, "e", 200, 2000),
			}
			Sort(cands, []string{FieldSize}, []string{tt.order}, now)
			assert.Equal(t, tt.want, ids(cands))
		})
	}
}

func TestSort_MultipleFields(t *testing.T) {
	cands := []Candidate{
		movie(1, "b", 100, 2001),
		movie(2, "a", 100, 2001),
		movie(3, "c", 100, 1999),
	}
	Sort(cands, []string{FieldReleaseYear, FieldTitle}, []string{"desc", "asc"}, now)
	assert.Equal(t, []int64{2, 1, 3}, ids(cands))
}

func TestSort_UnwatchedAlwaysFirst(t *testing.T) {
	for _, order := range []string{"asc", "desc"} {
		t.Run(order, func(t *testing.T) {
			cands := []Candidate{
				watched(movie(1, "a", 0, 0), 10),
				movie(2, "b", 0, 0),
				watched(movie(3, "c", 0, 0), 300),
				movie(4, "d", 0, 0),
			}
			Sort(cands, []string{FieldLastWatched}, []string{order}, now)
			got := ids(cands)
			assert.Equal(t, []int64{2, 4}, got[:2])
			if order == "asc" {
				assert.Equal(t, []int64{1, 3}, got[2:])
			} else {
				assert.Equal(t, []int64{3, 1}, got[2:])
			}
		})
	}
}

func TestSort_DefaultsAndUnknownField(t *testing.T) {
	show := Candidate{Record: &media.Show{Common: media.Common{ID: 1, Title: "Zed"}, SeasonCount: 3}}
	noSeasons := Candidate{Record: &media.Show{Common: media.Common{ID: 2, Title: "Alpha"}}}
	film := movie(3, "middle", 0, 0)

	cands := []Candidate{show, noSeasons, film}
	Sort(cands, []string{FieldSeasons}, []string{"desc"}, now)
	assert.Equal(t, []int64{1, 2, 3}, ids(cands), "missing season counts sort as one")

	Sort(cands, []string{"bogus"}, []string{"asc"}, now)
	assert.Equal(t, []int64{2, 3, 1}, ids(cands))
	assert.False(t, KnownField("bogus"))
	assert.True(t, KnownField(FieldLastWatched))
}

func TestSelect_Windows(t *testing.T) {
	var cands []Candidate
	for i := int64(1); i <= 10; i++ {
		cands = append(cands, movie(i, fmt.Sprintf("m%02d", i), 1, 2000))
	}
	protected := map[int64]bool{2: true, 5: true}
	actionable := func(_ context.Context, c Candidate) bool { return !protected[c.Record.Data().ID] }

	tests := []struct {
		name        string
		windows     Windows
		wantDelete  []int64
		wantPreview []int64
	}{
		{name: "both windows", windows: Windows{Delete: 3, Preview: 2}, wantDelete: []int64{1, 3, 4}, wantPreview: []int64{6, 7}},
		{name: "preview disabled", windows: Windows{Delete: 2}, wantDelete: []int64{1, 3}},
		{name: "unlimited", windows: Windows{Delete: 0, Preview: 5}, wantDelete: []int64{1, 3, 4, 6, 7, 8, 9, 10}},
		{name: "short list", windows: Windows{Delete: 6, Preview: 6}, wantDelete: []int64{1, 3, 4, 6, 7, 8}, wantPreview: []int64{9, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := Select(context.Background(), cands, tt.windows, actionable)
			assert.Equal(t, tt.wantDelete, ids(sel.Delete))
			assert.Equal(t, tt.wantPreview, ids(sel.Preview))
		})
	}
}

func TestSelect_StopsEvaluatingWhenFull(t *testing.T) {
	var cands []Candidate
	for i := int64(1); i <= 10; i++ {
		cands = append(cands, movie(i, fmt.Sprintf("m%02d", i), 1, 2000))
	}
	evaluated := 0
	Select(context.Background(), cands, Windows{Delete: 2, Preview: 1}, func(context.Context, Candidate) bool {
		evaluated++
		return true
	})
	assert.Equal(t, 3, evaluated)
}

func TestSelect_PreviewBecomesNextDeleteWindow(t *testing.T) {
	var cands []Candidate
	for i := int64(1); i <= 12; i++ {
		cands = append(cands, movie(i, fmt.Sprintf("m%02d", 13-i), int64(i%3), 2000))
	}
	fields, orders := []string{FieldSize, FieldTitle}, []string{"desc", "asc"}
	w := Windows{Delete: 3, Preview: 3}
	all := func(context.Context, Candidate) bool { return true }

	Sort(cands, fields, orders, now)
	first := Select(context.Background(), cands, w, all)
	require.Len(t, first.Preview, 3)

	deleted := map[int64]bool{}
	for _, c := range first.Delete {
		deleted[c.Record.Data().ID] = true
	}
	var remaining []Candidate
	for i := len(cands) - 1; i >= 0; i-- {
		if !deleted[cands[i].Record.Data().ID] {
			remaining = append(remaining, cands[i])
		}
	}

	Sort(remaining, fields, orders, now)
	second := Select(context.Background(), remaining, w, all)
	assert.Equal(t, ids(first.Preview), ids(second.Delete))
}

type fakeDisks struct {
	disks []media.DiskSpace
	err   error
	calls int
}

func (f *fakeDisks) DiskSpace(context.Context) ([]media.DiskSpace, error) {
	f.calls++
	return f.disks, f.err
}

func TestCheckDiskSpace(t *testing.T) {
	const gb = int64(1 << 30)
	disks := []media.DiskSpace{{Path: "/data/movies", FreeSpace: 500 * gb}, {Path: "/data/tv", FreeSpace: 50 * gb}}

	tests := []struct {
		name       string
		thresholds []config.DiskThreshold
		want       bool
		invalid    bool
	}{
		{name: "no thresholds", want: true},
		{name: "free space above threshold", thresholds: []config.DiskThreshold{{Path: "/data/movies", Threshold: "100GB"}}, want: false},
		{name: "free space below threshold", thresholds: []config.DiskThreshold{{Path: "/data/tv", Threshold: "1TB"}}, want: true},
		{
			name: "any path above threshold skips",
			thresholds: []config.DiskThreshold{
				{Path: "/data/tv", Threshold: "1TB"},
				{Path: "/data/movies", Threshold: "100GB"},
			},
			want: false,
		},
		{name: "unknown path", thresholds: []config.DiskThreshold{{Path: "/nope", Threshold: "1TB"}}, invalid: true},
		{name: "bad threshold", thresholds: []config.DiskThreshold{{Path: "/data/tv", Threshold: "lots"}}, invalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeDisks{disks: disks}
			lib := &config.Library{Name: "Movies", DiskSizeThreshold: tt.thresholds}

			ok, err := CheckDiskSpace(context.Background(), lib, src, zerolog.Nop())
			if tt.invalid {
				require.Error(t, err)
				assert.ErrorIs(t, err, config.ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			if len(tt.thresholds) > 0 {
				assert.Equal(t, 1, src.calls)
			} else {
				assert.Zero(t, src.calls)
			}
		})
	}
}

func TestCheckDiskSpace_SourceError(t *testing.T) {
	lib := &config.Library{Name: "Movies", DiskSizeThreshold: []config.DiskThreshold{{Path: "/data", Threshold: "1TB"}}}
	_, err := CheckDiskSpace(context.Background(), lib, &fakeDisks{err: errors.New("boom")}, zerolog.Nop())
	require.Error(t, err)
	assert.NotErrorIs(t, err, config.ErrInvalid)
}

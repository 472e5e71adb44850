package cleaner

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/deleterr/deleterr/internal/config"
	"github.com/deleterr/deleterr/internal/media"
	"github.com/deleterr/deleterr/internal/notification"
	"github.com/deleterr/deleterr/internal/seerr"
)

type fakeArr struct {
	mu        sync.Mutex
	name      string
	kind      media.Kind
	records   []media.Record
	disks     []media.DiskSpace
	episodes  map[int64][]media.Episode
	fileErrs  map[int64]error
	deleteErr map[int64]error

	calls     []string
	listCalls int
	resets    int
}

func (f *fakeArr) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeArr) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeArr) Name() string     { return f.name }
func (f *fakeArr) Kind() media.Kind { return f.kind }
func (f *fakeArr) ResetCache()      { f.resets++ }

func (f *fakeArr) ListMedia(context.Context) ([]media.Record, error) {
	f.listCalls++
	return f.records, nil
}

func (f *fakeArr) DiskSpace(context.Context) ([]media.DiskSpace, error) {
	f.record("diskspace")
	return f.disks, nil
}

func (f *fakeArr) Tags(context.Context) ([]media.Tag, error) { return nil, nil }

func (f *fakeArr) QualityProfiles(context.Context) ([]media.QualityProfile, error) {
	return nil, nil
}

func (f *fakeArr) DeleteMovie(_ context.Context, id int64, deleteFiles, addExclusion bool) error {
	f.record(fmt.Sprintf("deleteMovie:%d:%t:%t", id, deleteFiles, addExclusion))
	return f.deleteErr[id]
}

func (f *fakeArr) Episodes(_ context.Context, seriesID int64) ([]media.Episode, error) {
	f.record("episodes:" + strconv.FormatInt(seriesID, 10))
	return f.episodes[seriesID], nil
}

func (f *fakeArr) SetEpisodesMonitored(_ context.Context, ids []int64, monitored bool) error {
	f.record(fmt.Sprintf("monitor:%d:%t", len(ids), monitored))
	return nil
}

func (f *fakeArr) DeleteEpisodeFile(_ context.Context, id int64) error {
	f.record("deleteFile:" + strconv.FormatInt(id, 10))
	return f.fileErrs[id]
}

func (f *fakeArr) DeleteSeries(_ context.Context, id int64, deleteFiles bool) error {
	f.record(fmt.Sprintf("deleteSeries:%d:%t", id, deleteFiles))
	return f.deleteErr[id]
}

type fakeServer struct {
	library  *media.Library
	items    []*media.LibraryItem
	itemsErr error

	writes     []string
	refreshes  int
	collection []string
}

func (f *fakeServer) Library(_ context.Context, name string) (*media.Library, error) {
	if f.library == nil {
		return &media.Library{Key: "1", Title: name}, nil
	}
	return f.library, nil
}

func (f *fakeServer) Items(context.Context, *media.Library) ([]*media.LibraryItem, error) {
	return f.items, f.itemsErr
}

func (f *fakeServer) RefreshLibrary(context.Context, *media.Library) error {
	f.refreshes++
	return nil
}

func (f *fakeServer) EpisodeCredits(context.Context, *media.LibraryItem) (media.Credits, error) {
	return media.Credits{}, nil
}

func (f *fakeServer) GetOrCreateCollection(_ context.Context, lib *media.Library, name string) (*media.Collection, error) {
	return &media.Collection{RatingKey: "900", Title: name, LibraryKey: lib.Key}, nil
}

func (f *fakeServer) SetCollectionItems(_ context.Context, _ *media.Library, _ *media.Collection, items []*media.LibraryItem) error {
	f.writes = append(f.writes, "collection")
	f.collection = nil
	for _, item := range items {
		f.collection = append(f.collection, item.RatingKey)
	}
	return nil
}

func (f *fakeServer) SetCollectionVisibility(context.Context, *media.Library, *media.Collection, bool, bool) error {
	f.writes = append(f.writes, "visibility")
	return nil
}

func (f *fakeServer) ItemsWithLabel(context.Context, *media.Library, string) ([]*media.LibraryItem, error) {
	return nil, nil
}

func (f *fakeServer) AddLabel(_ context.Context, _ *media.Library, item *media.LibraryItem, _ string) error {
	f.writes = append(f.writes, "label:"+item.RatingKey)
	return nil
}

func (f *fakeServer) RemoveLabel(_ context.Context, _ *media.Library, item *media.LibraryItem, _ string) error {
	f.writes = append(f.writes, "unlabel:"+item.RatingKey)
	return nil
}

type fakeActivity struct {
	history   *media.History
	err       error
	refreshes int
}

func (f *fakeActivity) Activity(context.Context, *config.Library, string) (*media.History, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.history == nil {
		return media.NewHistory(nil), nil
	}
	return f.history, nil
}

func (f *fakeActivity) RefreshLibrary(context.Context, string) error {
	f.refreshes++
	return nil
}

type fakeSeerr struct {
	marked []int64
}

func (f *fakeSeerr) Request(context.Context, media.Kind, int64) (*seerr.Request, error) {
	return nil, nil
}

func (f *fakeSeerr) MarkDeleted(_ context.Context, _ media.Kind, tmdbID int64) (bool, error) {
	f.marked = append(f.marked, tmdbID)
	return true, nil
}

type fakeNotifier struct {
	runs        []notification.RunEvent
	leavingSoon []notification.LeavingSoonEvent
}

func (f *fakeNotifier) NotifyRun(_ context.Context, ev notification.RunEvent) {
	f.runs = append(f.runs, ev)
}

func (f *fakeNotifier) NotifyLeavingSoon(_ context.Context, ev notification.LeavingSoonEvent) {
	f.leavingSoon = append(f.leavingSoon, ev)
}

type resetCounter struct{ n int }

func (r *resetCounter) Reset() { r.n++ }

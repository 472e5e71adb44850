package trakt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deleterr/deleterr/internal/media"
	"github.com/deleterr/deleterr/internal/resilience"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		url     string
		want    ListRef
		wantErr bool
	}{
		{url: "https://trakt.tv/users/alice/watchlist", want: ListRef{Username: "alice", ListName: "watchlist"}},
		{url: "https://trakt.tv/users/alice/lists/keepers?sort=rank", want: ListRef{Username: "alice", ListName: "keepers"}},
		{url: "https://trakt.tv/movies/trending", want: ListRef{ListName: "trending"}},
		{url: "https://trakt.tv/shows/popular", want: ListRef{ListName: "popular"}},
		{url: "https://trakt.tv/movies/watched/weekly", want: ListRef{ListName: "watched", Period: "weekly"}},
		{url: "https://example.com/list", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := ParseURL(tt.url)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedList)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListRefPath(t *testing.T) {
	ref := ListRef{Username: "alice", ListName: "keepers"}
	path, err := ref.path(media.KindShow)
	require.NoError(t, err)
	assert.Equal(t, "/users/alice/lists/keepers/items/shows", path)

	_, err = ListRef{ListName: "boxoffice"}.path(media.KindShow)
	assert.ErrorIs(t, err, ErrUnsupportedList)
}

func TestItems(t *testing.T) {
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		switch r.URL.Path {
		case "/users/alice/watchlist/movies":
			assert.Equal(t, "50", r.URL.Query().Get("limit"))
			io.WriteString(w, `[{"type":"movie","movie":{"title":"The Matrix","year":1999,"ids":{"trakt":1,"tmdb":603}}}]`)
		case "/movies/popular":
			io.WriteString(w, `[{"title":"Inception","year":2010,"ids":{"trakt":2,"tmdb":27205}},{"title":"No ID","ids":{"trakt":3}}]`)
		case "/movies/trending":
			io.WriteString(w, `[{"watchers":10,"movie":{"title":"The Matrix","ids":{"trakt":1,"tmdb":603}}}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c := NewClient("client-id", "", server.Client(), zerolog.Nop())
	c.SetBaseURL(server.URL)
	c.retry = resilience.RetryPolicy{Attempts: 1, Delay: time.Millisecond}

	set, err := c.Items(context.Background(), media.KindMovie, []string{
		"https://trakt.tv/users/alice/watchlist",
		"https://trakt.tv/movies/popular",
		"https://trakt.tv/movies/trending",
		"https://trakt.tv/users/bob/lists/missing",
	}, 50)
	require.NoError(t, err)

	assert.Len(t, set, 2)
	list, ok := set.Contains(603)
	assert.True(t, ok)
	assert.Equal(t, "https://trakt.tv/users/alice/watchlist", list)
	_, ok = set.Contains(27205)
	assert.True(t, ok)

	assert.Equal(t, "2", gotHeaders.Get("trakt-api-version"))
	assert.Equal(t, "client-id", gotHeaders.Get("trakt-api-key"))
}

func TestItems_AllListsFailing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	c := NewClient("bad", "", server.Client(), zerolog.Nop())
	c.SetBaseURL(server.URL)

	_, err := c.Items(context.Background(), media.KindShow, []string{"https://trakt.tv/shows/trending"}, 0)
	assert.Error(t, err)
}

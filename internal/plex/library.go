package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/deleterr/deleterr/internal/media"
)

// Library returns the section with the given title, ignoring case.
func (c *Client) Library(ctx context.Context, name string) (*media.Library, error) {
	mc, err := c.get(ctx, "/library/sections", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list libraries: %w", err)
	}
	for _, d := range mc.Directory {
		if strings.EqualFold(d.Title, name) {
			return &media.Library{Key: d.Key, Title: d.Title, Type: d.Type}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrLibraryNotFound, name)
}

// Items lists every item of a library in server order, with all GUIDs.
func (c *Client) Items(ctx context.Context, lib *media.Library) ([]*media.LibraryItem, error) {
	return c.listAll(ctx, lib, nil)
}

// ItemsWithLabel lists the items of a library carrying label.
func (c *Client) ItemsWithLabel(ctx context.Context, lib *media.Library, label string) ([]*media.LibraryItem, error) {
	items, err := c.listAll(ctx, lib, url.Values{"label": {label}})
	if err != nil {
		return nil, err
	}
	// Older servers ignore an unknown filter, so confirm the label locally.
	out := items[:0]
	for _, item := range items {
		if item.HasLabel(label) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (c *Client) listAll(ctx context.Context, lib *media.Library, filter url.Values) ([]*media.LibraryItem, error) {
	path := fmt.Sprintf("/library/sections/%s/all", lib.Key)
	var items []*media.LibraryItem

	for start := 0; ; start += pageSize {
		query := url.Values{}
		for k, v := range filter {
			query[k] = v
		}
		query.Set("includeGuids", "1")
		query.Set("X-Plex-Container-Start", strconv.Itoa(start))
		query.Set("X-Plex-Container-Size", strconv.Itoa(pageSize))

		mc, err := c.get(ctx, path, query)
		if err != nil {
			return nil, fmt.Errorf("failed to list items of %q: %w", lib.Title, err)
		}
		for _, m := range mc.Metadata {
			items = append(items, m.toItem())
		}
		if len(mc.Metadata) < pageSize || (mc.TotalSize > 0 && len(items) >= mc.TotalSize) {
			break
		}
	}

	c.logger.Debug().Str("library", lib.Title).Int("items", len(items)).Msg("Fetched library items")
	return items, nil
}

// EpisodeCredits gathers the people credited on any episode of a show.
func (c *Client) EpisodeCredits(ctx context.Context, item *media.LibraryItem) (media.Credits, error) {
	mc, err := c.get(ctx, fmt.Sprintf("/library/metadata/%s/allLeaves", item.RatingKey), nil)
	if err != nil {
		return media.Credits{}, fmt.Errorf("failed to get episodes of %q: %w", item.Title, err)
	}

	var credits media.Credits
	seen := make(map[string]bool)
	add := func(dst *[]string, kind string, ts []tag) {
		for _, t := range ts {
			key := kind + "\x00" + strings.ToLower(t.Tag)
			if !seen[key] {
				seen[key] = true
				*dst = append(*dst, t.Tag)
			}
		}
	}
	for _, ep := range mc.Metadata {
		add(&credits.Actors, "actor", ep.Role)
		add(&credits.Producers, "producer", ep.Producer)
		add(&credits.Directors, "director", ep.Director)
		add(&credits.Writers, "writer", ep.Writer)
	}
	return credits, nil
}

// RefreshLibrary asks the server to rescan a library.
func (c *Client) RefreshLibrary(ctx context.Context, lib *media.Library) error {
	if _, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/library/sections/%s/refresh", lib.Key), nil); err != nil {
		return fmt.Errorf("failed to refresh library %q: %w", lib.Title, err)
	}
	return nil
}

// AddLabel adds label to an item, keeping its existing labels.
func (c *Client) AddLabel(ctx context.Context, lib *media.Library, item *media.LibraryItem, label string) error {
	if item.HasLabel(label) {
		return nil
	}
	query := c.editQuery(lib, item)
	labels := append(append([]string{}, item.Labels...), label)
	for i, l := range labels {
		query.Set(fmt.Sprintf("label[%d].tag.tag", i), l)
	}

	if _, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/library/sections/%s/all", lib.Key), query); err != nil {
		return fmt.Errorf("failed to add label %q to %q: %w", label, item.Title, err)
	}
	item.Labels = labels
	return nil
}

// RemoveLabel removes label from an item.
func (c *Client) RemoveLabel(ctx context.Context, lib *media.Library, item *media.LibraryItem, label string) error {
	query := c.editQuery(lib, item)
	query.Set("label[].tag.tag-", label)

	if _, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/library/sections/%s/all", lib.Key), query); err != nil {
		return fmt.Errorf("failed to remove label %q from %q: %w", label, item.Title, err)
	}
	kept := item.Labels[:0]
	for _, l := range item.Labels {
		if !strings.EqualFold(l, label) {
			kept = append(kept, l)
		}
	}
	item.Labels = kept
	return nil
}

func (c *Client) editQuery(lib *media.Library, item *media.LibraryItem) url.Values {
	return url.Values{
		"type":         {typeCode(lib.Type)},
		"id":           {item.RatingKey},
		"label.locked": {"1"},
	}
}

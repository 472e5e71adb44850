package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/deleterr/deleterr/internal/media"
)

// GetOrCreateCollection returns the named collection of a library. A collection
// that does not exist yet is returned with an empty RatingKey; Plex cannot hold
// an empty collection, so it is created by the first SetCollectionItems call
// with at least one item.
func (c *Client) GetOrCreateCollection(ctx context.Context, lib *media.Library, name string) (*media.Collection, error) {
	mc, err := c.get(ctx, fmt.Sprintf("/library/sections/%s/collections", lib.Key), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections of %q: %w", lib.Title, err)
	}
	for _, m := range mc.Metadata {
		if strings.EqualFold(m.Title, name) {
			return &media.Collection{RatingKey: m.RatingKey, Title: m.Title, LibraryKey: lib.Key}, nil
		}
	}
	return &media.Collection{Title: name, LibraryKey: lib.Key}, nil
}

// SetCollectionItems makes items the exact membership of the collection.
func (c *Client) SetCollectionItems(ctx context.Context, lib *media.Library, coll *media.Collection, items []*media.LibraryItem) error {
	if coll.RatingKey == "" {
		if len(items) == 0 {
			return nil
		}
		return c.createCollection(ctx, lib, coll, items)
	}

	mc, err := c.get(ctx, fmt.Sprintf("/library/collections/%s/children", coll.RatingKey), nil)
	if err != nil {
		return fmt.Errorf("failed to list collection %q: %w", coll.Title, err)
	}

	wanted := make(map[string]bool, len(items))
	for _, item := range items {
		wanted[item.RatingKey] = true
	}
	current := make(map[string]bool, len(mc.Metadata))
	for _, m := range mc.Metadata {
		current[m.RatingKey] = true
		if wanted[m.RatingKey] {
			continue
		}
		path := fmt.Sprintf("/library/collections/%s/items/%s", coll.RatingKey, m.RatingKey)
		if _, err := c.doRequest(ctx, http.MethodDelete, path, nil); err != nil {
			return fmt.Errorf("failed to remove %q from collection %q: %w", m.Title, coll.Title, err)
		}
	}

	var missing []string
	for _, item := range items {
		if !current[item.RatingKey] {
			missing = append(missing, item.RatingKey)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	uri, err := c.itemsURI(ctx, missing)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/library/collections/%s/items", coll.RatingKey)
	if _, err := c.doRequest(ctx, http.MethodPut, path, url.Values{"uri": {uri}}); err != nil {
		return fmt.Errorf("failed to add items to collection %q: %w", coll.Title, err)
	}
	return nil
}

// SetCollectionVisibility promotes the collection to the owner's and shared
// users' home screens. A collection that was never created is left alone.
func (c *Client) SetCollectionVisibility(ctx context.Context, lib *media.Library, coll *media.Collection, home, shared bool) error {
	if coll.RatingKey == "" {
		return nil
	}
	path := fmt.Sprintf("/hubs/sections/%s/manage", lib.Key)
	mc, err := c.get(ctx, path, url.Values{"metadataItemId": {coll.RatingKey}})
	if err != nil {
		return fmt.Errorf("failed to read visibility of collection %q: %w", coll.Title, err)
	}

	query := url.Values{
		"promotedToRecommended": {"0"},
		"promotedToOwnHome":     {boolParam(home)},
		"promotedToSharedHome":  {boolParam(shared)},
	}
	if len(mc.Hub) == 0 || mc.Hub[0].Identifier == "" {
		query.Set("metadataItemId", coll.RatingKey)
		_, err = c.doRequest(ctx, http.MethodPost, path, query)
	} else {
		h := mc.Hub[0]
		if h.PromotedToOwnHome == home && h.PromotedToSharedHome == shared {
			return nil
		}
		_, err = c.doRequest(ctx, http.MethodPut, path+"/"+url.PathEscape(h.Identifier), query)
	}
	if err != nil {
		return fmt.Errorf("failed to set visibility of collection %q: %w", coll.Title, err)
	}
	return nil
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (c *Client) createCollection(ctx context.Context, lib *media.Library, coll *media.Collection, items []*media.LibraryItem) error {
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = item.RatingKey
	}
	uri, err := c.itemsURI(ctx, keys)
	if err != nil {
		return err
	}

	query := url.Values{
		"type":      {typeCode(lib.Type)},
		"title":     {coll.Title},
		"smart":     {"0"},
		"sectionId": {lib.Key},
		"uri":       {uri},
	}
	data, err := c.doRequest(ctx, http.MethodPost, "/library/collections", query)
	if err != nil {
		return fmt.Errorf("failed to create collection %q: %w", coll.Title, err)
	}

	var resp containerResponse
	if err := json.Unmarshal(data, &resp); err == nil && len(resp.MediaContainer.Metadata) > 0 {
		coll.RatingKey = resp.MediaContainer.Metadata[0].RatingKey
	}
	c.logger.Info().Str("collection", coll.Title).Str("library", lib.Title).Msg("Created collection")
	return nil
}

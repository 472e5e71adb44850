package config

import (
	"strings"
)

const (
	DefaultMaxActionsPerRun = 10
	DefaultSeriesType       = "standard"
	DefaultCollectionName   = "Leaving Soon"
	DefaultLeavingSoonLabel = "leaving-soon"
	DefaultSortField        = "title"
	DefaultSortOrder        = "asc"
	SeerrModeExclude        = "exclude"
	SeerrModeIncludeOnly    = "include_only"
	WatchStatusWatched      = "watched"
	WatchStatusUnwatched    = "unwatched"
	ActionModeDelete        = "delete"
)

// Library is the per-library cleanup policy.
type Library struct {
	Name       string `mapstructure:"name" validate:"required"`
	Radarr     string `mapstructure:"radarr"`
	Sonarr     string `mapstructure:"sonarr"`
	SeriesType string `mapstructure:"series_type" validate:"omitempty,oneof=standard anime daily"`
	ActionMode string `mapstructure:"action_mode" validate:"omitempty,oneof=delete"`

	WatchStatus                          string `mapstructure:"watch_status" validate:"omitempty,oneof=watched unwatched"`
	LastWatchedThreshold                 *int   `mapstructure:"last_watched_threshold" validate:"omitempty,gte=0"`
	AddedAtThreshold                     *int   `mapstructure:"added_at_threshold" validate:"omitempty,gte=0"`
	ApplyLastWatchThresholdToCollections bool   `mapstructure:"apply_last_watch_threshold_to_collections"`
	AddListExclusionOnDelete             bool   `mapstructure:"add_list_exclusion_on_delete"`

	MaxActionsPerRun *int `mapstructure:"max_actions_per_run" validate:"omitempty,gte=0"`
	PreviewNext      *int `mapstructure:"preview_next" validate:"omitempty,gte=0"`

	DiskSizeThreshold []DiskThreshold `mapstructure:"disk_size_threshold" validate:"dive"`
	Sort              SortConfig      `mapstructure:"sort"`
	Exclude           Exclusions      `mapstructure:"exclude"`
	LeavingSoon       *LeavingSoon    `mapstructure:"leaving_soon"`
}

// DiskThreshold skips a library while the path has more free space than Threshold.
type DiskThreshold struct {
	Path      string `mapstructure:"path" validate:"required"`
	Threshold string `mapstructure:"threshold" validate:"required"`
}

// SortConfig holds comma separated sort fields and orders.
type SortConfig struct {
	Field string `mapstructure:"field"`
	Order string `mapstructure:"order"`
}

// Exclusions lists everything that protects an item from deletion.
type Exclusions struct {
	Titles       []string `mapstructure:"titles"`
	PlexLabels   []string `mapstructure:"plex_labels"`
	Genres       []string `mapstructure:"genres"`
	Collections  []string `mapstructure:"collections"`
	Actors       []string `mapstructure:"actors"`
	Producers    []string `mapstructure:"producers"`
	Directors    []string `mapstructure:"directors"`
	Writers      []string `mapstructure:"writers"`
	Studios      []string `mapstructure:"studios"`
	ReleaseYears int      `mapstructure:"release_years" validate:"gte=0"`

	Trakt     ListExclusion      `mapstructure:"trakt"`
	MDBList   ListExclusion      `mapstructure:"mdblist"`
	JustWatch JustWatchExclusion `mapstructure:"justwatch"`
	Radarr    ArrExclusion       `mapstructure:"radarr"`
	Sonarr    ArrExclusion       `mapstructure:"sonarr"`
	Seerr     *SeerrExclusion    `mapstructure:"seerr"`
	Overseerr *SeerrExclusion    `mapstructure:"overseerr"`
}

// ListExclusion protects items that appear on external lists.
type ListExclusion struct {
	Lists           []string `mapstructure:"lists"`
	MaxItemsPerList int      `mapstructure:"max_items_per_list" validate:"gte=0"`
}

// JustWatchExclusion protects items by streaming availability.
type JustWatchExclusion struct {
	Country        string   `mapstructure:"country"`
	Language       string   `mapstructure:"language"`
	AvailableOn    []string `mapstructure:"available_on"`
	NotAvailableOn []string `mapstructure:"not_available_on"`
}

// Enabled reports whether any provider rule is configured.
func (j JustWatchExclusion) Enabled() bool {
	return len(j.AvailableOn) > 0 || len(j.NotAvailableOn) > 0
}

// ArrExclusion protects items by Radarr/Sonarr metadata. Status only applies to Sonarr.
type ArrExclusion struct {
	Status          []string `mapstructure:"status"`
	Tags            []string `mapstructure:"tags"`
	QualityProfiles []string `mapstructure:"quality_profiles"`
	Paths           []string `mapstructure:"paths"`
	Monitored       *bool    `mapstructure:"monitored"`
}

// Empty reports whether no arr exclusion is set.
func (a ArrExclusion) Empty() bool {
	return len(a.Status) == 0 && len(a.Tags) == 0 && len(a.QualityProfiles) == 0 &&
		len(a.Paths) == 0 && a.Monitored == nil
}

// SeerrExclusion protects or selects items by Seerr request state.
type SeerrExclusion struct {
	Mode                         string   `mapstructure:"mode" validate:"omitempty,oneof=exclude include_only"`
	Users                        []string `mapstructure:"users"`
	IncludePending               *bool    `mapstructure:"include_pending"`
	RequestStatus                []string `mapstructure:"request_status" validate:"dive,oneof=pending approved declined PENDING APPROVED DECLINED"`
	MinRequestAgeDays            int      `mapstructure:"min_request_age_days" validate:"gte=0"`
	UpdateStatus                 bool     `mapstructure:"update_status"`
	ProtectUntilRequesterWatched bool     `mapstructure:"protect_until_requester_watched"`
}

// ModeOrDefault returns the configured mode, defaulting to exclude.
func (s *SeerrExclusion) ModeOrDefault() string {
	if s.Mode == "" {
		return SeerrModeExclude
	}
	return s.Mode
}

// PendingIncluded reports whether pending requests count, defaulting to true.
func (s *SeerrExclusion) PendingIncluded() bool {
	return s.IncludePending == nil || *s.IncludePending
}

// LeavingSoon configures the tag-then-delete workflow.
type LeavingSoon struct {
	Duration    string             `mapstructure:"duration"`
	TaggingOnly bool               `mapstructure:"tagging_only"`
	Collection  *LeavingCollection `mapstructure:"collection"`
	Labels      *LeavingLabels     `mapstructure:"labels"`
}

// LeavingCollection names the Plex collection holding upcoming deletions and
// where Plex shows it.
type LeavingCollection struct {
	Name          string `mapstructure:"name"`
	PromoteHome   *bool  `mapstructure:"promote_home"`
	PromoteShared *bool  `mapstructure:"promote_shared"`
}

// LeavingLabels names the Plex label put on upcoming deletions.
type LeavingLabels struct {
	Name       string `mapstructure:"name"`
	ClearOnRun *bool  `mapstructure:"clear_on_run"`
}

// CollectionName returns the collection name, or "" when collections are off.
func (l *LeavingSoon) CollectionName() string {
	if l == nil || l.Collection == nil {
		return ""
	}
	if l.Collection.Name == "" {
		return DefaultCollectionName
	}
	return l.Collection.Name
}

// PromoteHome reports whether the collection is shown on the owner's home
// screen, defaulting to true.
func (l *LeavingSoon) PromoteHome() bool {
	if l == nil || l.Collection == nil || l.Collection.PromoteHome == nil {
		return true
	}
	return *l.Collection.PromoteHome
}

// PromoteShared reports whether the collection is shown on shared users' home
// screens, defaulting to true.
func (l *LeavingSoon) PromoteShared() bool {
	if l == nil || l.Collection == nil || l.Collection.PromoteShared == nil {
		return true
	}
	return *l.Collection.PromoteShared
}

// LabelName returns the label name, or "" when labels are off.
func (l *LeavingSoon) LabelName() string {
	if l == nil || l.Labels == nil {
		return ""
	}
	if l.Labels.Name == "" {
		return DefaultLeavingSoonLabel
	}
	return l.Labels.Name
}

// ClearOnRun reports whether stale labels get removed, defaulting to true.
func (l *LeavingSoon) ClearOnRun() bool {
	if l == nil || l.Labels == nil || l.Labels.ClearOnRun == nil {
		return true
	}
	return *l.Labels.ClearOnRun
}

// InstanceKind returns "radarr" or "sonarr".
func (l *Library) InstanceKind() string {
	if l.Radarr != "" {
		return "radarr"
	}
	return "sonarr"
}

// InstanceName returns the referenced arr instance name.
func (l *Library) InstanceName() string {
	if l.Radarr != "" {
		return l.Radarr
	}
	return l.Sonarr
}

// MaxActions returns the delete-window size. Zero means unlimited.
func (l *Library) MaxActions() int {
	if l.MaxActionsPerRun == nil {
		return DefaultMaxActionsPerRun
	}
	return *l.MaxActionsPerRun
}

// PreviewCount returns the preview-window size. It defaults to the delete-window size.
func (l *Library) PreviewCount() int {
	if l.PreviewNext == nil {
		return l.MaxActions()
	}
	return *l.PreviewNext
}

// SeriesTypeOrDefault returns the Sonarr series type this library manages.
func (l *Library) SeriesTypeOrDefault() string {
	if l.SeriesType == "" {
		return DefaultSeriesType
	}
	return l.SeriesType
}

// SortFields returns the trimmed sort fields with their orders. Orders are
// extended with the last given order when fewer orders than fields are set.
func (l *Library) SortFields() (fields, orders []string) {
	fields = splitList(l.Sort.Field)
	if len(fields) == 0 {
		fields = []string{DefaultSortField}
	}
	orders = splitList(strings.ToLower(l.Sort.Order))
	if len(orders) == 0 {
		orders = []string{DefaultSortOrder}
	}
	for len(orders) < len(fields) {
		orders = append(orders, orders[len(orders)-1])
	}
	return fields, orders[:len(fields)]
}

// TaggingOnly reports whether delete-window items are only tagged.
func (l *Library) TaggingOnly() bool {
	return l.LeavingSoon != nil && l.LeavingSoon.TaggingOnly
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

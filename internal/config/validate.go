package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid marks configuration errors. Callers test with errors.Is.
var ErrInvalid = errors.New("invalid configuration")

var validSortFields = map[string]bool{
	"title":        true,
	"size":         true,
	"release_year": true,
	"runtime":      true,
	"added_date":   true,
	"rating":       true,
	"seasons":      true,
	"episodes":     true,
	"last_watched": true,
}

var validSonarrStatuses = map[string]bool{
	"continuing": true,
	"ended":      true,
	"upcoming":   true,
	"deleted":    true,
}

// Validate checks struct constraints and the relations between sections.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q check", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	if c.Scheduler.Enabled {
		if _, err := ScheduleExpression(c.Scheduler.Schedule); err != nil {
			errs = append(errs, err)
		}
	}

	errs = append(errs, validateProviders("notifications", &c.Notifications.NotificationProviders)...)
	errs = append(errs, validateProviders("notifications.leaving_soon", &c.Notifications.LeavingSoon.NotificationProviders)...)

	for i := range c.Libraries {
		errs = append(errs, c.validateLibrary(&c.Libraries[i])...)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func validateProviders(section string, p *NotificationProviders) []error {
	var errs []error
	if (p.Telegram.BotToken == "") != (p.Telegram.ChatID == "") {
		errs = append(errs, fmt.Errorf("%s.telegram: bot_token and chat_id must be set together", section))
	}
	if p.Email.SMTPServer != "" {
		if p.Email.FromAddress == "" {
			errs = append(errs, fmt.Errorf("%s.email: from_address is required", section))
		}
		if len(p.Email.ToAddresses) == 0 {
			errs = append(errs, fmt.Errorf("%s.email: to_addresses is required", section))
		}
	}
	return errs
}

func (c *Config) validateLibrary(lib *Library) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("library %q: "+format, append([]any{lib.Name}, args...)...))
	}

	switch {
	case lib.Radarr != "" && lib.Sonarr != "":
		fail("set either radarr or sonarr, not both")
	case lib.Radarr == "" && lib.Sonarr == "":
		fail("one of radarr or sonarr is required")
	case lib.Radarr != "" && !hasInstance(c.Radarr, lib.Radarr):
		fail("radarr %q is not configured", lib.Radarr)
	case lib.Sonarr != "" && !hasInstance(c.Sonarr, lib.Sonarr):
		fail("sonarr %q is not configured", lib.Sonarr)
	}

	if lib.Radarr != "" && lib.SeriesType != "" {
		fail("series_type can only be set for sonarr libraries")
	}
	if lib.Sonarr != "" && lib.AddListExclusionOnDelete {
		fail("add_list_exclusion_on_delete can only be set for radarr libraries")
	}
	if lib.WatchStatus != "" && lib.ApplyLastWatchThresholdToCollections {
		fail("apply_last_watch_threshold_to_collections cannot be used together with watch_status")
	}

	for _, t := range lib.DiskSizeThreshold {
		if _, err := ParseSize(t.Threshold); err != nil {
			fail("disk_size_threshold for path %q: %v", t.Path, err)
		}
	}

	fields := splitList(lib.Sort.Field)
	for _, f := range fields {
		if !validSortFields[f] {
			fail("invalid sort field %q", f)
		}
	}
	for _, o := range splitList(strings.ToLower(lib.Sort.Order)) {
		if o != "asc" && o != "desc" {
			fail("invalid sort order %q, supported values are asc and desc", o)
		}
	}

	ex := lib.Exclude
	if len(ex.Trakt.Lists) > 0 && !c.Trakt.Configured() {
		fail("trakt lists configured but trakt is not configured")
	}
	if len(ex.MDBList.Lists) > 0 && c.MDBList.APIKey == "" {
		fail("mdblist lists configured but mdblist.api_key is not set")
	}
	if len(ex.JustWatch.AvailableOn) > 0 && len(ex.JustWatch.NotAvailableOn) > 0 {
		fail("justwatch available_on and not_available_on are mutually exclusive")
	}
	if ex.JustWatch.Enabled() && ex.JustWatch.Country == "" && c.JustWatch.Country == "" {
		fail("justwatch exclusions require a country, set exclude.justwatch.country or justwatch.country")
	}
	if !ex.Radarr.Empty() && lib.Radarr == "" {
		fail("radarr exclusions set but no radarr instance is set")
	}
	if len(ex.Radarr.Status) > 0 {
		fail("status exclusions are only supported for sonarr")
	}
	if !ex.Sonarr.Empty() && lib.Sonarr == "" {
		fail("sonarr exclusions set but no sonarr instance is set")
	}
	for _, s := range ex.Sonarr.Status {
		if !validSonarrStatuses[strings.ToLower(s)] {
			fail("invalid sonarr status %q", s)
		}
	}
	if ex.Seerr != nil && !c.Seerr.Configured() {
		fail("seerr exclusions require a global seerr configuration")
	}

	if ls := lib.LeavingSoon; ls != nil {
		if ls.Duration != "" {
			if _, err := ParseRetention(ls.Duration); err != nil {
				fail("leaving_soon: %v", err)
			}
		}
		if ls.Collection == nil && ls.Labels == nil {
			fail("leaving_soon requires a collection or labels section")
		}
	}

	return errs
}

func hasInstance(instances []InstanceConfig, name string) bool {
	for _, i := range instances {
		if i.Name == name {
			return true
		}
	}
	return false
}

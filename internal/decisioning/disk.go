package decisioning

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/config"
	"github.com/deleterr/deleterr/internal/media"
)

// DiskSpaceSource reports free space per root folder.
type DiskSpaceSource interface {
	DiskSpace(ctx context.Context) ([]media.DiskSpace, error)
}

// CheckDiskSpace reports whether lib should be processed. A library is skipped
// while any configured path has more free space than its threshold. A
// configured path the instance does not report is a configuration error.
func CheckDiskSpace(ctx context.Context, lib *config.Library, src DiskSpaceSource, logger zerolog.Logger) (bool, error) {
	if len(lib.DiskSizeThreshold) == 0 {
		return true, nil
	}

	disks, err := src.DiskSpace(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get disk space: %w", err)
	}

	for _, dt := range lib.DiskSizeThreshold {
		threshold, err := config.ParseSize(dt.Threshold)
		if err != nil {
			return false, fmt.Errorf("%w: library %q: %v", config.ErrInvalid, lib.Name, err)
		}

		var disk *media.DiskSpace
		for i := range disks {
			if disks[i].Path == dt.Path {
				disk = &disks[i]
				break
			}
		}
		if disk == nil {
			return false, fmt.Errorf("%w: library %q: path %q is not a root folder of the instance",
				config.ErrInvalid, lib.Name, dt.Path)
		}

		logger.Debug().
			Str("path", dt.Path).
			Str("free", humanize.IBytes(uint64(disk.FreeSpace))).
			Str("threshold", dt.Threshold).
			Msg("Checked free space")
		if disk.FreeSpace > threshold {
			logger.Info().
				Str("path", dt.Path).
				Str("free", humanize.IBytes(uint64(disk.FreeSpace))).
				Str("threshold", dt.Threshold).
				Msg("Free space above threshold, skipping library")
			return false, nil
		}
	}
	return true, nil
}

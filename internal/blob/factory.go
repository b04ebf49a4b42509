package blob

import (
	"context"
	"fmt"

	"herdbook/internal/config"
	"herdbook/internal/infra/blob/fs"
	"herdbook/internal/infra/blob/memory"
	"herdbook/internal/infra/blob/s3"
)

// Open returns the artifact store selected by cfg.Driver. An empty driver
// selects the filesystem.
func Open(ctx context.Context, cfg config.Blob) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem, "":
		return fs.New(cfg.FSRoot)
	case DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			Prefix:    cfg.S3.Prefix,
			PathStyle: cfg.S3.PathStyle,
		})
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

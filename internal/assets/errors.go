package assets

import (
	"fmt"

	"github.com/crawlkit-dev/crawlkit/internal/metadata"
	"github.com/crawlkit-dev/crawlkit/pkg/failure"
)

type AssetsErrorCause string

const (
	ErrCauseImageDownloadFailure  = "failed to download image"
	ErrCauseNetworkFailure        = "network failure"
	ErrCauseRequest5xx            = "server error (5xx)"
	ErrCauseRequestTooMany        = "too many requests (429)"
	ErrCauseRequestPageForbidden  = "request forbidden or rejected (4xx)"
	ErrCauseRedirectLimitExceeded = "redirect not followed"
	ErrCauseReadResponseBodyError = "failed to read response body"
	ErrCauseAssetTooLarge         = "asset too large"
	ErrCauseHashError             = "failed to hash asset content"
	ErrCausePathError             = "failed to create asset directory"
	ErrCauseWriteFailure          = "failed to write asset"
	ErrCauseDiskFull              = "disk full"
)

type AssetsError struct {
	Message   string
	Retryable bool
	Cause     AssetsErrorCause
}

func (e *AssetsError) Error() string {
	return fmt.Sprintf("assets error: %s", e.Cause)
}

func (e *AssetsError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapAssetsErrorToMetadataCause maps assets-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapAssetsErrorToMetadataCause(err AssetsError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseImageDownloadFailure, ErrCauseNetworkFailure, ErrCauseRequest5xx,
		ErrCauseRequestTooMany, ErrCauseRequestPageForbidden, ErrCauseRedirectLimitExceeded,
		ErrCauseReadResponseBodyError:
		return metadata.CauseNetworkFailure
	case ErrCausePathError, ErrCauseWriteFailure, ErrCauseDiskFull:
		return metadata.CauseStorageFailure
	case ErrCauseAssetTooLarge, ErrCauseHashError:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}

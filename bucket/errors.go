package bucket

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/aws/smithy-go"
)

// Sentinel errors for the failure modes the assistant distinguishes.
// All errors returned by Manager operations wrap one of these (or are
// local I/O errors for file-path arguments).
var (
	ErrAuth         = errors.New("authentication failed")
	ErrConnectivity = errors.New("storage unreachable")
	ErrNotFound     = errors.New("not found")
	ErrPermission   = errors.New("permission denied")
	ErrTimeout      = errors.New("operation timed out")
)

// classify maps an S3 SDK error onto one of the sentinel errors above.
// API error codes are matched by name; anything that never reached the
// service is treated as a connectivity failure.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket", "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.ErrorMessage())
		case "AccessDenied", "AllAccessDisabled":
			return fmt.Errorf("%w: %s", ErrPermission, apiErr.ErrorMessage())
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "TokenRefreshRequired":
			return fmt.Errorf("%w: %s", ErrAuth, apiErr.ErrorMessage())
		case "RequestTimeout":
			return fmt.Errorf("%w: %s", ErrTimeout, apiErr.ErrorMessage())
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}

	return fmt.Errorf("%w: %v", ErrConnectivity, err)
}

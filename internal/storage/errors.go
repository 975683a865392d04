package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
)

// ErrorClass categorizes a transfer failure for retry decisions.
type ErrorClass int

const (
	// ClassTransient failures are retryable within a task.
	ClassTransient ErrorClass = iota
	// ClassPermanent failures are task-fatal and never retried.
	ClassPermanent
)

func (c ErrorClass) String() string {
	if c == ClassTransient {
		return "transient"
	}
	return "permanent"
}

// Response codes the remote service returns for momentary conditions.
var transientCodes = map[string]bool{
	"RequestTimeout":       true,
	"ServiceUnavailable":   true,
	"SlowDown":             true,
	"InternalError":        true,
	"RequestTimeTooSkewed": true,
	"ExpiredToken":         true,
	"InvalidToken":         true,
}

// Response codes that no number of retries will fix.
var permanentCodes = map[string]bool{
	"AccessDenied":       true,
	"NoSuchKey":          true,
	"NoSuchBucket":       true,
	"InvalidAccessKeyId": true,
	"AllAccessDisabled":  true,
}

// IsCredentialExpired reports whether the service rejected the request
// because the signing token lapsed mid-transfer. Callers should route the
// shared credential back through its coordinator before retrying.
func IsCredentialExpired(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "ExpiredToken" || resp.Code == "InvalidToken"
	}
	return false
}

// Classify decides whether a transfer error is worth retrying. Unknown
// errors are permanent; only recognizably momentary conditions earn
// another attempt.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassPermanent
	}
	if errors.Is(err, ErrNotFound) {
		return ClassPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return ClassTransient
	}

	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		if transientCodes[resp.Code] {
			return ClassTransient
		}
		if permanentCodes[resp.Code] {
			return ClassPermanent
		}
		if resp.StatusCode >= 500 {
			return ClassTransient
		}
		return ClassPermanent
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"timeout",
		"connection",
		"temporary",
		"network",
		"dns",
		"broken pipe",
		"truncated",
		"unexpected eof",
		"tls handshake",
	} {
		if strings.Contains(msg, pattern) {
			return ClassTransient
		}
	}

	return ClassPermanent
}

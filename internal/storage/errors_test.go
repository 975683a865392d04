package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ClassPermanent},
		{"not found", ErrNotFound, ClassPermanent},
		{"wrapped not found", fmt.Errorf("head object: %w", ErrNotFound), ClassPermanent},
		{"deadline exceeded", context.DeadlineExceeded, ClassTransient},
		{"unexpected eof", io.ErrUnexpectedEOF, ClassTransient},
		{"service slow down", minio.ErrorResponse{Code: "SlowDown", StatusCode: 503}, ClassTransient},
		{"request timeout", minio.ErrorResponse{Code: "RequestTimeout", StatusCode: 400}, ClassTransient},
		{"expired token", minio.ErrorResponse{Code: "ExpiredToken", StatusCode: 400}, ClassTransient},
		{"access denied", minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403}, ClassPermanent},
		{"no such key", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}, ClassPermanent},
		{"unknown 5xx code", minio.ErrorResponse{Code: "Mystery", StatusCode: 502}, ClassTransient},
		{"unknown 4xx code", minio.ErrorResponse{Code: "Mystery", StatusCode: 400}, ClassPermanent},
		{"connection reset", errors.New("read tcp 10.0.0.1:443: connection reset by peer"), ClassTransient},
		{"dns failure", errors.New("dial tcp: lookup s3.example.com: no such host on dns server"), ClassTransient},
		{"broken pipe", errors.New("write: broken pipe"), ClassTransient},
		{"truncated body", errors.New("truncated transfer: got 10 of 20 bytes"), ClassTransient},
		{"tls handshake", errors.New("tls handshake timeout"), ClassTransient},
		{"unknown error", errors.New("object checksum algorithm unsupported"), ClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassifyWrappedServiceError(t *testing.T) {
	err := fmt.Errorf("download data/a.bin: %w",
		minio.ErrorResponse{Code: "ServiceUnavailable", StatusCode: 503})
	assert.Equal(t, ClassTransient, Classify(err))
}

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ClassTransient.String())
	assert.Equal(t, "permanent", ClassPermanent.String())
}

func TestIsCredentialExpired(t *testing.T) {
	assert.True(t, IsCredentialExpired(minio.ErrorResponse{Code: "ExpiredToken"}))
	assert.True(t, IsCredentialExpired(fmt.Errorf("get object: %w",
		minio.ErrorResponse{Code: "InvalidToken"})))
	assert.False(t, IsCredentialExpired(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.False(t, IsCredentialExpired(errors.New("connection reset")))
	assert.False(t, IsCredentialExpired(nil))
}

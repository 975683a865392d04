package credential

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is how long a static credential stays valid before the
// coordinator routes callers through a renewal.
const DefaultTTL = 12 * time.Hour

// StaticProvider serves pre-configured access keys, stamping each issue
// with a fresh expiry. Renewal always succeeds as long as keys are set.
type StaticProvider struct {
	accessKey    string
	secretKey    string
	sessionToken string
	ttl          time.Duration
}

// NewStaticProvider builds a provider around fixed keys. A zero ttl means
// DefaultTTL.
func NewStaticProvider(accessKey, secretKey, sessionToken string, ttl time.Duration) *StaticProvider {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &StaticProvider{
		accessKey:    accessKey,
		secretKey:    secretKey,
		sessionToken: sessionToken,
		ttl:          ttl,
	}
}

func (p *StaticProvider) Authenticate(ctx context.Context) (Credential, error) {
	return p.issue(ctx)
}

func (p *StaticProvider) Renew(ctx context.Context) (Credential, error) {
	return p.issue(ctx)
}

func (p *StaticProvider) issue(ctx context.Context) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}
	if p.accessKey == "" || p.secretKey == "" {
		return Credential{}, errors.New("access key and secret key are required")
	}
	return Credential{
		AccessKeyID:     p.accessKey,
		SecretAccessKey: p.secretKey,
		SessionToken:    p.sessionToken,
		Expiry:          time.Now().Add(p.ttl),
	}, nil
}

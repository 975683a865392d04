package storage

import (
	"context"

	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/JoshRudy-fn6/S3Swarm/internal/credential"
)

// CoordinatorCredentials adapts the credential coordinator to minio-go's
// credential chain, so request signing always uses the freshest token and
// expiry routes through the coordinator's single-flight refresh.
func CoordinatorCredentials(coord *credential.Coordinator) *miniocreds.Credentials {
	return miniocreds.New(&coordinatorProvider{coord: coord})
}

type coordinatorProvider struct {
	coord *credential.Coordinator
}

func (p *coordinatorProvider) Retrieve() (miniocreds.Value, error) {
	cred, err := p.coord.Acquire(context.Background())
	if err != nil {
		return miniocreds.Value{}, err
	}
	return miniocreds.Value{
		AccessKeyID:     cred.AccessKeyID,
		SecretAccessKey: cred.SecretAccessKey,
		SessionToken:    cred.SessionToken,
		SignerType:      miniocreds.SignatureV4,
	}, nil
}

func (p *coordinatorProvider) IsExpired() bool {
	return p.coord.Expired()
}

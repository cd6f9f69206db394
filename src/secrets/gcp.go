package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
)

// versionAccessor is the subset of the Secret Manager client we call.
type versionAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// GCPSource reads secrets from Google Secret Manager. Names are resource
// paths, "projects/<p>/secrets/<s>" with an optional "/versions/<v>";
// the latest version is used when none is given.
type GCPSource struct {
	client versionAccessor
}

func NewGCPSource(ctx context.Context, opts ...option.ClientOption) (*GCPSource, error) {
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("secretmanager client: %w", err)
	}
	return &GCPSource{client: client}, nil
}

func (g *GCPSource) Lookup(ctx context.Context, name string) (string, error) {
	resp, err := g.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: versionName(name),
	})
	if err != nil {
		var ae *apierror.APIError
		if errors.As(err, &ae) && ae.GRPCStatus() != nil && ae.GRPCStatus().Code() == codes.NotFound {
			return "", ErrNotFound
		}
		return "", err
	}
	if resp.GetPayload() == nil {
		return "", ErrNotFound
	}
	return string(resp.GetPayload().GetData()), nil
}

func (g *GCPSource) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}

func versionName(name string) string {
	name = strings.Trim(name, "/")
	if strings.Contains(name, "/versions/") {
		return name
	}
	return name + "/versions/latest"
}

package paramstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// maxBatch is the SSM GetParameters limit per request.
const maxBatch = 10

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameters(ctx context.Context, in *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// Getter is the interface that wraps GetParameters.
// Consumers (e.g. the Anthropic client) should depend on this interface
// rather than the concrete *Client so they remain testable without AWS.
type Getter interface {
	GetParameters(ctx context.Context, names ...string) (map[string]string, error)
}

// MissingParametersError lists names SSM reported as invalid or absent.
type MissingParametersError struct {
	Names []string
}

func (e *MissingParametersError) Error() string {
	return "paramstore: missing parameters: " + strings.Join(e.Names, ", ")
}

// Client wraps an AWS SSM API for parameter retrieval.
type Client struct {
	api ssmAPI
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

// GetParameters fetches and decrypts every name, batching requests as SSM
// requires. All names must resolve; otherwise a *MissingParametersError is
// returned.
func (c *Client) GetParameters(ctx context.Context, names ...string) (map[string]string, error) {
	if c.api == nil {
		return nil, errors.New("paramstore: client not initialized")
	}
	wanted, err := normalizeNames(names)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(wanted))
	var missing []string
	for start := 0; start < len(wanted); start += maxBatch {
		batch := wanted[start:min(start+maxBatch, len(wanted))]
		out, err := c.api.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          batch,
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("paramstore: get parameters %v: %w", batch, err)
		}
		if out == nil {
			return nil, errors.New("paramstore: empty response")
		}
		missing = append(missing, out.InvalidParameters...)
		for _, p := range out.Parameters {
			if p.Name == nil || p.Value == nil {
				continue
			}
			values[*p.Name] = *p.Value
		}
	}

	for _, name := range wanted {
		if _, ok := values[name]; !ok && !contains(missing, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingParametersError{Names: missing}
	}
	return values, nil
}

func normalizeNames(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, errors.New("paramstore: at least one name is required")
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, errors.New("paramstore: name is required")
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

package paramstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves parameters from a map and records each batch it receives.
type fakeAPI struct {
	params  map[string]string
	err     error
	batches [][]string
}

func (f *fakeAPI) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	f.batches = append(f.batches, in.Names)
	if f.err != nil {
		return nil, f.err
	}
	out := &ssm.GetParametersOutput{}
	for _, name := range in.Names {
		v, ok := f.params[name]
		if !ok {
			out.InvalidParameters = append(out.InvalidParameters, name)
			continue
		}
		out.Parameters = append(out.Parameters, types.Parameter{
			Name:  strPtr(name),
			Value: strPtr(v),
			Type:  types.ParameterTypeSecureString,
		})
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func TestGetParameters_HappyPath(t *testing.T) {
	api := &fakeAPI{params: map[string]string{
		"/support-agent/anthropic-token":        `{"token":"sk-ant"}`,
		"/support-agent/config/anthropic_model": "claude-sonnet-4-20250514",
	}}
	client, err := New(api)
	require.NoError(t, err)

	got, err := client.GetParameters(context.Background(), "/support-agent/anthropic-token", "/support-agent/config/anthropic_model")
	require.NoError(t, err)
	require.Equal(t, `{"token":"sk-ant"}`, got["/support-agent/anthropic-token"])
	require.Equal(t, "claude-sonnet-4-20250514", got["/support-agent/config/anthropic_model"])
	require.Len(t, api.batches, 1)
}

func TestGetParameters_BatchesAndDeduplicates(t *testing.T) {
	params := map[string]string{}
	var names []string
	for i := 0; i < 23; i++ {
		name := fmt.Sprintf("/p/%02d", i)
		params[name] = fmt.Sprint(i)
		names = append(names, name)
	}
	names = append(names, "/p/00", " /p/01 ")
	api := &fakeAPI{params: params}
	client, err := New(api)
	require.NoError(t, err)

	got, err := client.GetParameters(context.Background(), names...)
	require.NoError(t, err)
	require.Len(t, got, 23)
	require.Len(t, api.batches, 3)
	require.Len(t, api.batches[0], 10)
	require.Len(t, api.batches[2], 3)
}

func TestGetParameters_Missing(t *testing.T) {
	api := &fakeAPI{params: map[string]string{"/p/a": "a"}}
	client, err := New(api)
	require.NoError(t, err)

	_, err = client.GetParameters(context.Background(), "/p/b", "/p/a", "/p/c")
	var missing *MissingParametersError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []string{"/p/b", "/p/c"}, missing.Names)
	require.Contains(t, err.Error(), "missing parameters")
}

func TestGetParameters_ApiError(t *testing.T) {
	client, err := New(&fakeAPI{err: errors.New("boom")})
	require.NoError(t, err)
	_, err = client.GetParameters(context.Background(), "p")
	require.ErrorContains(t, err, "boom")
}

func TestGetParameters_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameters(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not initialized")
}

func TestGetParameters_InvalidNames(t *testing.T) {
	client, err := New(&fakeAPI{})
	require.NoError(t, err)

	_, err = client.GetParameters(context.Background())
	require.ErrorContains(t, err, "at least one")

	_, err = client.GetParameters(context.Background(), "ok", "  ")
	require.ErrorContains(t, err, "required")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

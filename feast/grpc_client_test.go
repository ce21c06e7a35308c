package feast

import (
	"context"
	"os"
	"strings"
	"testing"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGrpcClient_GetOnlineFeatures 需要真实的 Feast 服务器，
// 通过 PAIRFEED_FEAST_ADDR（host:port）与 PAIRFEED_FEAST_PROJECT 指定。
func TestGrpcClient_GetOnlineFeatures(t *testing.T) {
	addr := os.Getenv("PAIRFEED_FEAST_ADDR")
	if addr == "" {
		t.Skip("PAIRFEED_FEAST_ADDR not set")
	}
	client, err := NewClient(addr, os.Getenv("PAIRFEED_FEAST_PROJECT"))
	require.NoError(t, err)
	defer client.Close()

	features := strings.Split(os.Getenv("PAIRFEED_FEAST_FEATURES"), ",")
	resp, err := client.GetOnlineFeatures(context.Background(), &GetOnlineFeaturesRequest{
		Features:   features,
		EntityRows: []map[string]any{{"user_id": "1001"}, {"user_id": "1002"}},
	})
	require.NoError(t, err)
	assert.Len(t, resp.FeatureVectors, 2)
}

func TestGrpcClient_RequestValidation(t *testing.T) {
	c := &GrpcClient{}
	tests := []struct {
		name string
		req  *GetOnlineFeaturesRequest
	}{
		{"no features", &GetOnlineFeaturesRequest{EntityRows: []map[string]any{{"user_id": "1"}}}},
		{"no entities", &GetOnlineFeaturesRequest{Features: []string{"v:f"}}},
		{"no project", &GetOnlineFeaturesRequest{Features: []string{"v:f"}, EntityRows: []map[string]any{{"user_id": "1"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.GetOnlineFeatures(context.Background(), tt.req)
			assert.Error(t, err)
		})
	}
}

func TestSetSDKValue(t *testing.T) {
	row := make(feastsdk.Row)
	inputs := map[string]any{
		"string":  "u1",
		"int":     100,
		"int64":   int64(100),
		"int32":   int32(7),
		"float64": 3.5,
		"float32": float32(1.5),
		"bool":    true,
		"bytes":   []byte("raw"),
		"other":   struct{ A int }{1},
	}
	for k, v := range inputs {
		setSDKValue(row, k, v)
	}
	require.Len(t, row, len(inputs))
	assert.Equal(t, "u1", row["string"].GetStringVal())
	assert.Equal(t, int64(100), row["int"].GetInt64Val())
	assert.Equal(t, int64(7), row["int32"].GetInt64Val())
	assert.Equal(t, 3.5, row["float64"].GetDoubleVal())
	assert.True(t, row["bool"].GetBoolVal())
	assert.Equal(t, "{1}", row["other"].GetStringVal())
}

func TestConvertFromSDKValue(t *testing.T) {
	tests := []struct {
		name string
		in   sdkValue
		want any
	}{
		{"string", feastsdk.StrVal("18-24"), "18-24"},
		{"bytes", feastsdk.BytesVal([]byte("cn")), "cn"},
		{"int64", feastsdk.Int64Val(100), float64(100)},
		{"double", feastsdk.DoubleVal(0.25), 0.25},
		{"float", feastsdk.FloatVal(0.5), 0.5},
		{"bool true", feastsdk.BoolVal(true), float64(1)},
		{"bool false", feastsdk.BoolVal(false), float64(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, convertFromSDKValue(tt.in))
		})
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		host string
		port int
	}{
		{"localhost:6565", "localhost", 6565},
		{"grpc://feast.svc:7000", "feast.svc", 7000},
		{"feast.svc", "feast.svc", 0},
	}
	for _, tt := range tests {
		host, port := parseEndpoint(tt.in)
		assert.Equal(t, tt.host, host, tt.in)
		assert.Equal(t, tt.port, port, tt.in)
	}
}

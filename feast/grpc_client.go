package feast

import (
	"context"
	"fmt"
	"time"

	feastsdk "github.com/feast-dev/feast/sdk/go"

	"github.com/rushteam/pairfeed/core"
)

// GrpcClient 是基于官方 Feast Go SDK 的 gRPC 客户端实现。
//
// 工程特征：
//   - 实时性：优秀（gRPC 低延迟）
//   - 性能：高（二进制协议、连接复用）
//   - 用途：训练前批量拉取用户 / 物品特征
type GrpcClient struct {
	// client 官方 SDK 的 gRPC 客户端
	client *feastsdk.GrpcClient

	// Project 项目名称
	Project string

	// Endpoint 服务端点（用于日志）
	Endpoint string

	timeout time.Duration
}

// NewGrpcClient 创建一个基于官方 SDK 的 Feast gRPC 客户端。
//
// 参数：
//   - host: Feast Feature Server 主机地址，例如 "localhost"
//   - port: gRPC 端口，0 时使用默认 6565
//   - project: 项目名称
func NewGrpcClient(host string, port int, project string, opts ...ClientOption) (*GrpcClient, error) {
	if port == 0 {
		port = 6565 // 默认 gRPC 端口
	}

	config := &ClientConfig{
		Endpoint: fmt.Sprintf("%s:%d", host, port),
		Project:  project,
		Timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(config)
	}

	var client *feastsdk.GrpcClient
	var err error
	if config.Auth != nil && config.Auth.Type == "static" && config.Auth.Token != "" {
		security := feastsdk.SecurityConfig{
			EnableTLS:  config.Auth.TLS,
			Credential: feastsdk.NewStaticCredential(config.Auth.Token),
		}
		client, err = feastsdk.NewSecureGrpcClient(host, port, security)
	} else {
		client, err = feastsdk.NewGrpcClient(host, port)
	}
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleSource, core.ErrorCodeUnavailable,
			fmt.Sprintf("feast: connect %s", config.Endpoint), err)
	}

	return &GrpcClient{
		client:   client,
		Project:  project,
		Endpoint: config.Endpoint,
		timeout:  config.Timeout,
	}, nil
}

// GetOnlineFeatures 获取在线特征（实现 Client 接口）
func (c *GrpcClient) GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	if len(req.Features) == 0 {
		return nil, fmt.Errorf("features are required")
	}
	if len(req.EntityRows) == 0 {
		return nil, fmt.Errorf("entity rows are required")
	}
	project := req.Project
	if project == "" {
		project = c.Project
	}
	if project == "" {
		return nil, fmt.Errorf("project is required")
	}

	entityRows := make([]feastsdk.Row, len(req.EntityRows))
	for i, row := range req.EntityRows {
		entityRow := make(feastsdk.Row, len(row))
		for k, v := range row {
			setSDKValue(entityRow, k, v)
		}
		entityRows[i] = entityRow
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	sdkResp, err := c.client.GetOnlineFeatures(ctx, &feastsdk.OnlineFeaturesRequest{
		Features: req.Features,
		Entities: entityRows,
		Project:  project,
	})
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleSource, core.ErrorCodeUnavailable,
			"feast: get online features", err)
	}

	rows := sdkResp.Rows()
	if len(rows) != len(req.EntityRows) {
		return nil, fmt.Errorf("response row count mismatch: expected %d, got %d", len(req.EntityRows), len(rows))
	}

	featureVectors := make([]FeatureVector, len(rows))
	for i, row := range rows {
		values := make(map[string]any, len(req.Features))
		for _, name := range req.Features {
			if val, ok := row[name]; ok && val != nil {
				values[name] = convertFromSDKValue(val)
			}
		}
		featureVectors[i] = FeatureVector{
			Values:    values,
			EntityRow: req.EntityRows[i],
		}
	}
	return &GetOnlineFeaturesResponse{FeatureVectors: featureVectors}, nil
}

// Close 关闭客户端连接（实现 Client 接口）
func (c *GrpcClient) Close() error {
	// SDK 的连接由 gRPC 库管理，没有显式的 Close
	c.client = nil
	return nil
}

// setSDKValue 将实体 ID 按类型转换为 SDK 的值并写入实体行
func setSDKValue(row feastsdk.Row, key string, v any) {
	switch val := v.(type) {
	case string:
		row[key] = feastsdk.StrVal(val)
	case int:
		row[key] = feastsdk.Int64Val(int64(val))
	case int64:
		row[key] = feastsdk.Int64Val(val)
	case int32:
		row[key] = feastsdk.Int64Val(int64(val))
	case float64:
		row[key] = feastsdk.DoubleVal(val)
	case float32:
		row[key] = feastsdk.FloatVal(val)
	case bool:
		row[key] = feastsdk.BoolVal(val)
	case []byte:
		row[key] = feastsdk.BytesVal(val)
	default:
		row[key] = feastsdk.StrVal(fmt.Sprintf("%v", val))
	}
}

// sdkValue 是 SDK 特征值（protobuf 消息）的取值方法集合。
// oneof 中未设置的字段返回零值。
type sdkValue interface {
	GetStringVal() string
	GetBytesVal() []byte
	GetInt32Val() int32
	GetInt64Val() int64
	GetFloatVal() float32
	GetDoubleVal() float64
	GetBoolVal() bool
}

// convertFromSDKValue 从 SDK 值类型转换：字符串 / 字节特征返回 string，其余返回 float64。
func convertFromSDKValue(v sdkValue) any {
	if s := v.GetStringVal(); s != "" {
		return s
	}
	if b := v.GetBytesVal(); len(b) > 0 {
		return string(b)
	}
	if v.GetBoolVal() {
		return float64(1)
	}
	return float64(v.GetInt32Val()) + float64(v.GetInt64Val()) +
		float64(v.GetFloatVal()) + v.GetDoubleVal()
}

// 确保 GrpcClient 实现了 Client 接口
var _ Client = (*GrpcClient)(nil)

package feast

import (
	"context"
	"time"
)

// Client 是 Feast Feature Store 的在线特征客户端接口。
//
// 训练数据加载只需要在线特征读取：按实体 ID 批量取特征，
// 组装成与类别编码对齐的特征表（见 source.FeastLoader）。
//
// 参考：https://github.com/feast-dev/feast
type Client interface {
	// GetOnlineFeatures 获取在线特征
	//
	// 参数：
	//   - features: 特征名称列表，例如 ["user_profile:age_bucket", "user_profile:ctr_7d"]
	//   - entityRows: 实体行，例如 [{"user_id": "u1001"}]
	GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error)

	// Close 关闭客户端连接
	Close() error
}

// GetOnlineFeaturesRequest 获取在线特征请求
type GetOnlineFeaturesRequest struct {
	// Features 特征名称列表
	Features []string

	// EntityRows 实体行，例如 [{"user_id": "u1"}, {"user_id": "u2"}]
	EntityRows []map[string]any

	// Project 项目名称（可选，默认使用客户端配置）
	Project string
}

// GetOnlineFeaturesResponse 获取在线特征响应
type GetOnlineFeaturesResponse struct {
	// FeatureVectors 特征向量列表，与 EntityRows 一一对应
	FeatureVectors []FeatureVector
}

// FeatureVector 特征向量
type FeatureVector struct {
	// Values 特征值：字符串特征为 string，数值特征为 float64
	Values map[string]any

	// EntityRow 对应的实体行
	EntityRow map[string]any
}

// ClientOption Feast 客户端配置选项
type ClientOption func(*ClientConfig)

// ClientConfig Feast 客户端配置
type ClientConfig struct {
	// Endpoint 服务端点
	Endpoint string

	// Project 项目名称
	Project string

	// Timeout 单次请求超时时间
	Timeout time.Duration

	// Auth 认证信息
	Auth *AuthConfig
}

// AuthConfig 认证配置
type AuthConfig struct {
	// Type 认证类型：目前只支持 static（gRPC 静态 Token）
	Type string

	// Token 静态 Token
	Token string

	// TLS 是否启用 TLS
	TLS bool
}

// WithTimeout 配置选项：设置超时时间
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithAuth 配置选项：设置认证信息
func WithAuth(auth *AuthConfig) ClientOption {
	return func(c *ClientConfig) {
		c.Auth = auth
	}
}

package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/pairfeed/core"
)

// RPCScorer 是通过 HTTP 调用外部模型服务的 Scorer 实现。
// 适用于训练进程之外的 TF Serving、TorchServe 或自研打分服务。
type RPCScorer struct {
	name        string
	Endpoint    string // 例如 "http://localhost:8080/forward"
	Timeout     time.Duration
	Client      *http.Client
	categorical []string
	numerical   []string
}

// NewRPCScorer 创建远程打分模型。categorical / numerical 为模型前向输入的槽名。
func NewRPCScorer(name, endpoint string, categorical, numerical []string, timeout time.Duration) *RPCScorer {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RPCScorer{
		name:        name,
		Endpoint:    endpoint,
		Timeout:     timeout,
		Client:      &http.Client{Timeout: timeout},
		categorical: append([]string(nil), categorical...),
		numerical:   append([]string(nil), numerical...),
	}
}

func (m *RPCScorer) Name() string {
	return m.name
}

func (m *RPCScorer) Inputs(batchSize int) *Inputs {
	return NewInputs(batchSize, m.categorical, m.numerical)
}

type forwardRequest struct {
	BatchSize int                    `json:"batch_size"`
	Codes     map[string][]int32     `json:"codes"`
	Dense     map[string][][]float32 `json:"dense,omitempty"`
}

type forwardResponse struct {
	Scores []float64 `json:"scores"`
}

// Forward 调用远程模型服务打分。
// 请求格式（JSON）：
//
//	{"batch_size": 2, "codes": {"user_id": [0, 1], "item_id": [5, 7]}, "dense": {...}}
//
// 响应格式（JSON）：
//
//	{"scores": [0.85, 0.72]}
func (m *RPCScorer) Forward(ctx context.Context, in *Inputs) ([]float64, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if m.Client == nil {
		m.Client = &http.Client{Timeout: m.Timeout}
	}

	body, err := json.Marshal(forwardRequest{BatchSize: in.BatchSize, Codes: in.Codes, Dense: in.Dense})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeUnavailable, "model: rpc call", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("rpc error: status=%d, read body failed: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("rpc error: status=%d, body=%s", resp.StatusCode, string(msg))
	}

	var result forwardResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Scores) != in.BatchSize {
		return nil, shapeError(fmt.Sprintf("model: response scores count mismatch: expected %d, got %d", in.BatchSize, len(result.Scores)))
	}
	return result.Scores, nil
}

var _ Scorer = (*RPCScorer)(nil)

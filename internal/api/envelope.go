package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeList 归一化列表响应
// 后端列表端点返回裸数组或 {count,next,previous,results} 分页信封，
// 两种形态解码结果相同；results 缺失或为 null 时 out 保持空切片
func DecodeList(data []byte, out any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}

	var envelope struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return fmt.Errorf("response is neither array nor page envelope: %w", err)
	}
	if len(envelope.Results) == 0 || string(envelope.Results) == "null" {
		return nil
	}
	return json.Unmarshal(envelope.Results, out)
}

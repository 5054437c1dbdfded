package util

import (
	"encoding/base64"
	"errors"
	"strings"

	"Bazaar/internal/pkg/consts"
)

var ErrInvalidImagePayload = errors.New("invalid image payload")

// DecodeImagePayload 支持 data URI 与裸 base64 两种形式
func DecodeImagePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		header, body, ok := strings.Cut(payload, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, ErrInvalidImagePayload
		}
		mime := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		if !strings.HasPrefix(mime, consts.MimePrefixImage+"/") {
			return nil, ErrInvalidImagePayload
		}
		payload = body
	}
	if payload == "" {
		return nil, ErrInvalidImagePayload
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// 兼容未补齐 padding 的客户端
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, ErrInvalidImagePayload
		}
	}
	return data, nil
}

// DecodeImagePayloads 逐个解码并跳过空串，任一失败返回错误
func DecodeImagePayloads(payloads []string) ([][]byte, error) {
	out := make([][]byte, 0, len(payloads))
	for _, p := range payloads {
		if strings.TrimSpace(p) == "" {
			continue
		}
		data, err := DecodeImagePayload(p)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

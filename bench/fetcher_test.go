package bench

import (
	"context"
	"encoding/json"
	"fmt"
)

type memFiles map[string]string

func (m memFiles) FetchText(ctx context.Context, p string) (string, error) {
	text, ok := m[p]
	if !ok {
		return "", fmt.Errorf("fetch %s: 404 Not Found", p)
	}
	return text, nil
}

func (m memFiles) FetchStructured(ctx context.Context, p string, v any) error {
	text, err := m.FetchText(ctx, p)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(text), v)
}

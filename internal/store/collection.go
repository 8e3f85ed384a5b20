package store

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate = validator.New()

// Collection 一份 JSON 数组文档的类型化视图。
// 解析或校验失败的元素对调用方不可见，但写回时原样保留；
// 整份文档不是数组时读为空集合，并拒绝写回。
type Collection[T any] struct {
	Items []*T

	store     Store
	namespace string
	key       string
	invalid   []json.RawMessage
	corrupt   bool
}

// Load 读取最新文档，文档不存在时返回空集合
func Load[T any](ctx context.Context, st Store, namespace, key string) (*Collection[T], error) {
	c := &Collection[T]{
		store:     st,
		namespace: namespace,
		key:       key,
	}

	data, err := st.Get(ctx, namespace, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c, nil
		}
		return nil, err
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return c, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		c.corrupt = true
		return c, nil
	}

	for _, raw := range raws {
		item := new(T)
		if err := json.Unmarshal(raw, item); err != nil {
			c.invalid = append(c.invalid, raw)
			continue
		}
		if err := validate.Struct(item); err != nil {
			c.invalid = append(c.invalid, raw)
			continue
		}
		c.Items = append(c.Items, item)
	}

	return c, nil
}

// Save 整份写回
func (c *Collection[T]) Save(ctx context.Context) error {
	if c.corrupt {
		return errors.Wrapf(ErrCorruptDocument, "%s/%s", c.namespace, c.key)
	}

	out := make([]json.RawMessage, 0, len(c.Items)+len(c.invalid))
	for _, item := range c.Items {
		raw, err := json.Marshal(item)
		if err != nil {
			return errors.Wrap(err, "marshal item")
		}
		out = append(out, raw)
	}
	out = append(out, c.invalid...)

	data, err := json.Marshal(out)
	if err != nil {
		return errors.Wrap(err, "marshal document")
	}
	return c.store.Set(ctx, c.namespace, c.key, data)
}

// Append 追加一条记录（需随后 Save）
func (c *Collection[T]) Append(item *T) {
	c.Items = append(c.Items, item)
}

// Skipped 返回被隔离的无效元素数量
func (c *Collection[T]) Skipped() int {
	return len(c.invalid)
}

// Corrupt 文档整体无法解析
func (c *Collection[T]) Corrupt() bool {
	return c.corrupt
}

// Find 返回第一个满足条件的元素（按存储顺序）
func (c *Collection[T]) Find(match func(*T) bool) *T {
	for _, item := range c.Items {
		if match(item) {
			return item
		}
	}
	return nil
}

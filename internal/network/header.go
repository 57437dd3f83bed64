package network

import (
	"encoding/json"
	"strings"
)

// Header 大小写不敏感的头部集合，后写覆盖先写
type Header map[string]string

// Get 获取指定 Header 的值（大小写不敏感）
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[strings.ToLower(key)]
}

// Set 设置指定 Header 的值（键统一转小写）
func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

// Del 删除指定 Header
func (h Header) Del(key string) {
	delete(h, strings.ToLower(key))
}

// Clone 复制一份头部集合
func (h Header) Clone() Header {
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// headerFromJSON 解析协议事件中的 headers 对象并归一化键
func headerFromJSON(raw json.RawMessage) Header {
	h := make(Header)
	if len(raw) == 0 {
		return h
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return h
	}
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}

// headerEntry Fetch 域要求的头部条目形式
type headerEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func headerEntries(h Header) []headerEntry {
	entries := make([]headerEntry, 0, len(h))
	for k, v := range h {
		entries = append(entries, headerEntry{Name: k, Value: v})
	}
	return entries
}

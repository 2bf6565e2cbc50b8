// Package conv 提供从 YAML/JSON 解析结果（map[string]any）中读取配置值的工具，
// 用于 config/builders 和 pipeline 中的重复逻辑。
package conv

import (
	"fmt"
	"strings"
)

// ToFloat64 将 any 转为 float64。
// 支持 float64、float32、int、int64、int32；bool 视为 1.0/0.0。
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case bool:
		if val {
			return 1.0, true
		}
		return 0.0, true
	default:
		return 0, false
	}
}

// ToInt 将 any 转为 int，浮点数向零截断。
func ToInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case int32:
		return int(val), true
	case float64:
		return int(val), true
	case float32:
		return int(val), true
	default:
		return 0, false
	}
}

// ToStrings 将标量或列表转为 []string（listify）。
// 字符串视为单元素列表；数字格式化为 "%v"；nil 返回 nil。
func ToStrings(v any) ([]string, bool) {
	switch val := v.(type) {
	case nil:
		return nil, true
	case string:
		return []string{val}, true
	case []string:
		return append([]string(nil), val...), true
	case []any:
		out := make([]string, 0, len(val))
		for _, e := range val {
			switch x := e.(type) {
			case string:
				out = append(out, x)
			case int, int64, int32, float64, float32:
				out = append(out, fmt.Sprintf("%v", x))
			default:
				return nil, false
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// ToInts 将 []any 转为 []int（如 reshape_input: [224, 224, 3]）。
func ToInts(v any) ([]int, bool) {
	switch val := v.(type) {
	case []int:
		return append([]int(nil), val...), true
	case []any:
		out := make([]int, 0, len(val))
		for _, e := range val {
			n, ok := ToInt(e)
			if !ok {
				return nil, false
			}
			out = append(out, n)
		}
		return out, true
	default:
		return nil, false
	}
}

// ConfigGet 从 map[string]any 按 key 取 T，取不到或类型不符时返回 defaultVal。
func ConfigGet[T any](m map[string]any, key string, defaultVal T) T {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	t, ok := v.(T)
	if !ok {
		return defaultVal
	}
	return t
}

// ConfigGetInt 从 config 取 int。YAML 得到 int，JSON 得到 float64，此处统一处理。
func ConfigGetInt(m map[string]any, key string, defaultVal int) int {
	if n, ok := ToInt(m[key]); ok {
		return n
	}
	return defaultVal
}

// ConfigGetFloat64 从 config 取 float64。
func ConfigGetFloat64(m map[string]any, key string, defaultVal float64) float64 {
	if f, ok := ToFloat64(m[key]); ok {
		return f
	}
	return defaultVal
}

// ConfigGetBool 从 config 取 bool，兼容 "true"/"false" 字符串。
func ConfigGetBool(m map[string]any, key string, defaultVal bool) bool {
	switch val := m[key].(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(val) {
		case "true", "yes", "1":
			return true
		case "false", "no", "0":
			return false
		}
	}
	return defaultVal
}

// ConfigGetStrings 从 config 取字符串列表，单个字符串也视为列表。
// 返回 (nil, false) 表示 key 不存在。
func ConfigGetStrings(m map[string]any, key string) ([]string, bool, error) {
	v, ok := m[key]
	if !ok {
		return nil, false, nil
	}
	out, ok := ToStrings(v)
	if !ok {
		return nil, true, fmt.Errorf("config %q: expected string or list of strings, got %T", key, v)
	}
	return out, true, nil
}

// ConfigGetInts 从 config 取整数列表。
func ConfigGetInts(m map[string]any, key string) ([]int, bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	out, ok := ToInts(v)
	if !ok {
		return nil, true, fmt.Errorf("config %q: expected list of integers, got %T", key, v)
	}
	return out, true, nil
}

// ConfigGetMap 从 config 取子 map（如 auth: {type: bearer, token: ...}）。
// yaml.v3 解析出的子对象为 map[string]any。
func ConfigGetMap(m map[string]any, key string) map[string]any {
	if sub, ok := m[key].(map[string]any); ok {
		return sub
	}
	return nil
}

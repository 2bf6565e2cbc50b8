package core

import (
	"fmt"
	"sort"
)

// DType 是张量元素类型（封闭集合）。
type DType string

const (
	Float32 DType = "float32"
	Int64   DType = "int64"
	String  DType = "string"
)

// Tensor 是行优先（row-major）存储的稠密张量。
//
// 只有与 DType 对应的那个切片有数据，长度等于 Shape 各维乘积。
// 标量的 Shape 为空切片。
type Tensor struct {
	DType   DType
	Shape   []int
	Floats  []float32
	Ints    []int64
	Strings []string
}

// NewFloat32 创建 float32 张量，数据长度必须与 shape 匹配。
func NewFloat32(shape []int, data []float32) (*Tensor, error) {
	if err := checkLen(shape, len(data)); err != nil {
		return nil, err
	}
	return &Tensor{DType: Float32, Shape: cloneInts(shape), Floats: data}, nil
}

// NewInt64 创建 int64 张量。
func NewInt64(shape []int, data []int64) (*Tensor, error) {
	if err := checkLen(shape, len(data)); err != nil {
		return nil, err
	}
	return &Tensor{DType: Int64, Shape: cloneInts(shape), Ints: data}, nil
}

// NewString 创建字符串张量（文本模型的输入）。
func NewString(shape []int, data []string) (*Tensor, error) {
	if err := checkLen(shape, len(data)); err != nil {
		return nil, err
	}
	return &Tensor{DType: String, Shape: cloneInts(shape), Strings: data}, nil
}

// Vector 将一维 float32 数据包装为张量，shape 为 [len(data)]。
func Vector(data []float32) *Tensor {
	return &Tensor{DType: Float32, Shape: []int{len(data)}, Floats: data}
}

func checkLen(shape []int, n int) error {
	size := 1
	for _, d := range shape {
		if d < 0 {
			return Errorf(ModuleCore, ErrorCodeInvalidInput, "negative dimension in shape %v", shape)
		}
		size *= d
	}
	if size != n {
		return Errorf(ModuleCore, ErrorCodeInvalidInput, "shape %v requires %d elements, got %d", shape, size, n)
	}
	return nil
}

// Rank 返回维数。
func (t *Tensor) Rank() int { return len(t.Shape) }

// Size 返回元素总数。
func (t *Tensor) Size() int {
	size := 1
	for _, d := range t.Shape {
		size *= d
	}
	return size
}

// Clone 深拷贝。
func (t *Tensor) Clone() *Tensor {
	out := &Tensor{DType: t.DType, Shape: cloneInts(t.Shape)}
	switch t.DType {
	case Float32:
		out.Floats = append([]float32(nil), t.Floats...)
	case Int64:
		out.Ints = append([]int64(nil), t.Ints...)
	case String:
		out.Strings = append([]string(nil), t.Strings...)
	}
	return out
}

// ExpandDims 在 axis 位置插入长度为 1 的维度，底层数据共享。
func (t *Tensor) ExpandDims(axis int) *Tensor {
	if axis < 0 {
		axis += len(t.Shape) + 1
	}
	if axis < 0 || axis > len(t.Shape) {
		axis = 0
	}
	shape := make([]int, 0, len(t.Shape)+1)
	shape = append(shape, t.Shape[:axis]...)
	shape = append(shape, 1)
	shape = append(shape, t.Shape[axis:]...)
	out := *t
	out.Shape = shape
	return &out
}

// Reshape 返回共享数据、形状不同的张量。
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	if err := checkLen(shape, t.Size()); err != nil {
		return nil, err
	}
	out := *t
	out.Shape = cloneInts(shape)
	return &out, nil
}

// Rows 返回第 0 维长度；0 维或 1 维张量视为单行。
func (t *Tensor) Rows() int {
	if len(t.Shape) <= 1 {
		return 1
	}
	return t.Shape[0]
}

// Row 返回第 0 维上的第 i 个子张量（共享数据）。
// 0 维或 1 维张量只有一行，即其自身。
func (t *Tensor) Row(i int) (*Tensor, error) {
	if len(t.Shape) <= 1 {
		if i != 0 {
			return nil, Errorf(ModuleCore, ErrorCodeInvalidInput, "row %d out of range for shape %v", i, t.Shape)
		}
		return t, nil
	}
	if i < 0 || i >= t.Shape[0] {
		return nil, Errorf(ModuleCore, ErrorCodeInvalidInput, "row %d out of range for shape %v", i, t.Shape)
	}
	stride := 1
	for _, d := range t.Shape[1:] {
		stride *= d
	}
	out := &Tensor{DType: t.DType, Shape: cloneInts(t.Shape[1:])}
	lo, hi := i*stride, (i+1)*stride
	switch t.DType {
	case Float32:
		out.Floats = t.Floats[lo:hi]
	case Int64:
		out.Ints = t.Ints[lo:hi]
	case String:
		out.Strings = t.Strings[lo:hi]
	}
	return out, nil
}

// Float64s 以 float64 返回数值数据；字符串张量返回 nil。
func (t *Tensor) Float64s() []float64 {
	switch t.DType {
	case Float32:
		out := make([]float64, len(t.Floats))
		for i, v := range t.Floats {
			out[i] = float64(v)
		}
		return out
	case Int64:
		out := make([]float64, len(t.Ints))
		for i, v := range t.Ints {
			out[i] = float64(v)
		}
		return out
	default:
		return nil
	}
}

// AsFloat32 返回 float32 视图；int64 张量会被转换，字符串张量报错。
func (t *Tensor) AsFloat32() (*Tensor, error) {
	switch t.DType {
	case Float32:
		return t, nil
	case Int64:
		data := make([]float32, len(t.Ints))
		for i, v := range t.Ints {
			data[i] = float32(v)
		}
		return &Tensor{DType: Float32, Shape: cloneInts(t.Shape), Floats: data}, nil
	default:
		return nil, Errorf(ModuleCore, ErrorCodeInvalidInput, "cannot convert %s tensor to float32", t.DType)
	}
}

// Nested 返回行优先的嵌套切片（JSON 线格式使用），标量返回单个值。
func (t *Tensor) Nested() any {
	var flat func(i int) any
	switch t.DType {
	case Float32:
		flat = func(i int) any { return t.Floats[i] }
	case Int64:
		flat = func(i int) any { return t.Ints[i] }
	default:
		flat = func(i int) any { return t.Strings[i] }
	}
	if len(t.Shape) == 0 {
		return flat(0)
	}
	var build func(dim, offset int) any
	build = func(dim, offset int) any {
		n := t.Shape[dim]
		out := make([]any, n)
		if dim == len(t.Shape)-1 {
			for i := 0; i < n; i++ {
				out[i] = flat(offset + i)
			}
			return out
		}
		stride := 1
		for _, d := range t.Shape[dim+1:] {
			stride *= d
		}
		for i := 0; i < n; i++ {
			out[i] = build(dim+1, offset+i*stride)
		}
		return out
	}
	return build(0, 0)
}

// FromNested 把 JSON 解码得到的嵌套数组还原为张量。
// 数字元素按 dtype 存储（dtype 为空时为 Float32），字符串元素得到 String 张量；
// 参差不齐的数组返回 INVALID_INPUT。
func FromNested(v any, dtype DType) (*Tensor, error) {
	shape, err := nestedShape(v)
	if err != nil {
		return nil, err
	}
	out := &Tensor{DType: dtype, Shape: shape}
	if out.DType == "" {
		out.DType = Float32
	}
	if leafIsString(v) {
		out.DType = String
	}
	var walk func(x any, depth int) error
	walk = func(x any, depth int) error {
		if arr, ok := x.([]any); ok {
			if depth >= len(shape) || len(arr) != shape[depth] {
				return Errorf(ModuleCore, ErrorCodeInvalidInput, "ragged nested array")
			}
			for _, e := range arr {
				if err := walk(e, depth+1); err != nil {
					return err
				}
			}
			return nil
		}
		if depth != len(shape) {
			return Errorf(ModuleCore, ErrorCodeInvalidInput, "ragged nested array")
		}
		switch out.DType {
		case String:
			s, ok := x.(string)
			if !ok {
				return Errorf(ModuleCore, ErrorCodeInvalidInput, "mixed element types in nested array")
			}
			out.Strings = append(out.Strings, s)
		default:
			f, ok := toFloat64(x)
			if !ok {
				return Errorf(ModuleCore, ErrorCodeInvalidInput, "unexpected element type %T", x)
			}
			if out.DType == Int64 {
				out.Ints = append(out.Ints, int64(f))
			} else {
				out.Floats = append(out.Floats, float32(f))
			}
		}
		return nil
	}
	if err := walk(v, 0); err != nil {
		return nil, err
	}
	return out, nil
}

func nestedShape(v any) ([]int, error) {
	shape := []int{}
	cur := v
	for {
		arr, ok := cur.([]any)
		if !ok {
			return shape, nil
		}
		shape = append(shape, len(arr))
		if len(arr) == 0 {
			return shape, nil
		}
		cur = arr[0]
	}
}

func leafIsString(v any) bool {
	cur := v
	for {
		arr, ok := cur.([]any)
		if !ok {
			_, isStr := cur.(string)
			return isStr
		}
		if len(arr) == 0 {
			return false
		}
		cur = arr[0]
	}
}

func toFloat64(v any) (float64, bool) {
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
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func cloneInts(s []int) []int {
	return append([]int{}, s...)
}

// Value 是模型的输入/输出：单个张量，或 key → 张量的命名集合（keyed output），二选一。
type Value struct {
	Tensor *Tensor
	Keyed  map[string]*Tensor
}

// TensorValue 包装单个张量。
func TensorValue(t *Tensor) Value { return Value{Tensor: t} }

// KeyedValue 包装命名张量集合。
func KeyedValue(m map[string]*Tensor) Value { return Value{Keyed: m} }

// IsKeyed 判断是否为命名输出。
func (v Value) IsKeyed() bool { return v.Keyed != nil }

// Keys 返回排序后的 key 列表。
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.Keyed))
	for k := range v.Keyed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v Value) String() string {
	if v.IsKeyed() {
		return fmt.Sprintf("keyed%v", v.Keys())
	}
	if v.Tensor == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s%v", v.Tensor.DType, v.Tensor.Shape)
}

package core

import "fmt"

// Result 是一次抽取的结果：一个刺激、一个输出数组、特征名以及透传的元数据。
//
// Data 的第 0 维是行数；单个刺激通常只有一行（批大小为 1）。
type Result struct {
	// Extractor 抽取器名称
	Extractor string

	// Stimulus 透传的刺激元数据
	Stimulus Meta

	// Kind 刺激类型
	Kind StimKind

	// Features 特征名列表（与输出列一一对应）
	Features []string

	// Data 模型输出（已去掉选择 key 等包装）
	Data *Tensor
}

// Cell 是结果表中的一个单元格：标量（Shape 为空）或数组。
type Cell struct {
	Shape []int
	Data  []float64
}

// IsScalar 判断是否为标量单元格。
func (c Cell) IsScalar() bool { return len(c.Shape) == 0 && len(c.Data) == 1 }

// Scalar 返回标量值，非标量返回 false。
func (c Cell) Scalar() (float64, bool) {
	if !c.IsScalar() {
		return 0, false
	}
	return c.Data[0], true
}

// Row 是结果表中的一行：特征名 → 单元格，Columns 保留特征顺序。
type Row struct {
	Columns []string
	Values  map[string]Cell
}

// Rows 将结果展开为行。
//
// 列映射规则：
//   - 每行元素数等于特征数且每行至多一维：每个特征一列标量
//   - 只有一个特征名：该列存放整行数组
//   - 没有特征名：自动命名 feature_0..feature_{n-1}
//   - 其他情况返回 FEATURE_COUNT_MISMATCH
func (r *Result) Rows() ([]Row, error) {
	if r.Data == nil {
		return nil, Errorf(ModuleResult, ErrorCodeInvalidInput, "result of %s has no data", r.Extractor)
	}
	if r.Data.DType == String {
		return nil, Errorf(ModuleResult, ErrorCodeInvalidInput, "result of %s is a string tensor", r.Extractor)
	}
	n := r.Data.Rows()
	rows := make([]Row, 0, n)
	for i := 0; i < n; i++ {
		sub, err := r.Data.Row(i)
		if err != nil {
			return nil, err
		}
		row, err := r.row(sub)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *Result) row(sub *Tensor) (Row, error) {
	values := sub.Float64s()
	features := r.Features
	switch {
	case len(features) == 0 && sub.Rank() <= 1:
		features = make([]string, len(values))
		for i := range values {
			features[i] = fmt.Sprintf("feature_%d", i)
		}
		return scalarRow(features, values), nil
	case len(features) == 0:
		return arrayRow("feature_0", sub.Shape, values), nil
	case len(features) == len(values) && sub.Rank() <= 1:
		return scalarRow(features, values), nil
	case len(features) == 1:
		return arrayRow(features[0], sub.Shape, values), nil
	default:
		return Row{}, Errorf(ModuleResult, ErrorCodeFeatureCountMismatch,
			"%s: %d feature names for output of shape %v", r.Extractor, len(features), sub.Shape)
	}
}

func scalarRow(features []string, values []float64) Row {
	row := Row{Columns: features, Values: make(map[string]Cell, len(features))}
	for i, f := range features {
		row.Values[f] = Cell{Data: []float64{values[i]}}
	}
	return row
}

func arrayRow(feature string, shape []int, values []float64) Row {
	return Row{
		Columns: []string{feature},
		Values:  map[string]Cell{feature: {Shape: cloneInts(shape), Data: values}},
	}
}

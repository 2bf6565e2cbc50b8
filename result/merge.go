// Package result 合并、过滤和持久化抽取结果。
//
// 合并把多个单刺激结果组装为表：
//   - wide：每个刺激一行，每个 (抽取器, 特征) 一列
//   - long：每个 (刺激, 抽取器, 特征) 一行
package result

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rushteam/featx/core"
)

// Format 表格式
type Format string

const (
	FormatWide Format = "wide"
	FormatLong Format = "long"
)

// ExtractorNames 控制抽取器名称在表中的位置
type ExtractorNames string

const (
	// ExtractorNamesPrepend 特征名加上抽取器前缀：<extractor>#<feature>（wide 默认）
	ExtractorNamesPrepend ExtractorNames = "prepend"
	// ExtractorNamesColumn 抽取器名称单独成列（long 默认，仅 long 可用）
	ExtractorNamesColumn ExtractorNames = "column"
	// ExtractorNamesDrop 不保留抽取器名称
	ExtractorNamesDrop ExtractorNames = "drop"
)

// 元数据列
const (
	ColumnOnset     = "onset"
	ColumnDuration  = "duration"
	ColumnOrder     = "order"
	ColumnStimName  = "stim_name"
	ColumnExtractor = "extractor"
	ColumnFeature   = "feature"
	ColumnValue     = "value"
)

var metaColumns = []string{ColumnOnset, ColumnDuration, ColumnOrder, ColumnStimName}

// MergeOptions 合并选项
type MergeOptions struct {
	Format         Format
	ExtractorNames ExtractorNames
}

// Table 是合并后的结果表。
//
// 单元格取值：nil（缺失）、float64、int、string 或 core.Cell（数组特征）。
type Table struct {
	Columns []string
	Rows    [][]any
}

// Column 返回列下标，不存在时返回 -1
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Get 读取第 row 行 col 列的单元格
func (t *Table) Get(row int, col string) (any, bool) {
	i := t.Column(col)
	if i < 0 || row < 0 || row >= len(t.Rows) {
		return nil, false
	}
	return t.Rows[row][i], true
}

// Len 返回行数
func (t *Table) Len() int { return len(t.Rows) }

// Merge 把结果合并为表。结果中的行按刺激首次出现的顺序排列，特征列按首次出现的顺序排列。
func Merge(results []*core.Result, opts MergeOptions) (*Table, error) {
	format := opts.Format
	if format == "" {
		format = FormatWide
	}
	names := opts.ExtractorNames
	switch format {
	case FormatWide:
		if names == "" {
			names = ExtractorNamesPrepend
		}
		if names == ExtractorNamesColumn {
			return nil, core.Errorf(core.ModuleResult, core.ErrorCodeInvalidConfig,
				"extractor names %q is only supported for long format", names)
		}
		return mergeWide(results, names)
	case FormatLong:
		if names == "" {
			names = ExtractorNamesColumn
		}
		return mergeLong(results, names)
	default:
		return nil, core.Errorf(core.ModuleResult, core.ErrorCodeInvalidConfig, "unknown format %q", format)
	}
}

// featureColumn 返回特征列名
func featureColumn(extractor, feature string, names ExtractorNames) string {
	if names == ExtractorNamesPrepend {
		return extractor + "#" + feature
	}
	return feature
}

func validNames(names ExtractorNames) error {
	switch names {
	case ExtractorNamesPrepend, ExtractorNamesColumn, ExtractorNamesDrop:
		return nil
	default:
		return core.Errorf(core.ModuleResult, core.ErrorCodeInvalidConfig, "unknown extractor names mode %q", names)
	}
}

func mergeWide(results []*core.Result, names ExtractorNames) (*Table, error) {
	if err := validNames(names); err != nil {
		return nil, err
	}
	type wideRow struct {
		meta  core.Meta
		cells map[string]any
	}
	var (
		order   []string
		rows    = map[string]*wideRow{}
		columns []string
		seen    = map[string]bool{}
	)
	for _, res := range results {
		resRows, err := res.Rows()
		if err != nil {
			return nil, err
		}
		for i, r := range resRows {
			key := stimKey(res.Stimulus, i)
			row, ok := rows[key]
			if !ok {
				row = &wideRow{meta: res.Stimulus, cells: map[string]any{}}
				rows[key] = row
				order = append(order, key)
			}
			for _, f := range r.Columns {
				col := featureColumn(res.Extractor, f, names)
				if !seen[col] {
					seen[col] = true
					columns = append(columns, col)
				}
				row.cells[col] = cellValue(r.Values[f])
			}
		}
	}

	t := &Table{Columns: append(append([]string(nil), metaColumns...), columns...)}
	for _, key := range order {
		row := rows[key]
		out := metaCells(row.meta)
		for _, col := range columns {
			out = append(out, row.cells[col])
		}
		t.Rows = append(t.Rows, out)
	}
	return t, nil
}

func mergeLong(results []*core.Result, names ExtractorNames) (*Table, error) {
	if err := validNames(names); err != nil {
		return nil, err
	}
	t := &Table{Columns: append([]string(nil), metaColumns...)}
	if names == ExtractorNamesColumn {
		t.Columns = append(t.Columns, ColumnExtractor)
	}
	t.Columns = append(t.Columns, ColumnFeature, ColumnValue)

	for _, res := range results {
		resRows, err := res.Rows()
		if err != nil {
			return nil, err
		}
		for _, r := range resRows {
			for _, f := range r.Columns {
				out := metaCells(res.Stimulus)
				if names == ExtractorNamesColumn {
					out = append(out, res.Extractor)
				}
				out = append(out, featureColumn(res.Extractor, f, names), cellValue(r.Values[f]))
				t.Rows = append(t.Rows, out)
			}
		}
	}
	return t, nil
}

func stimKey(m core.Meta, row int) string {
	key := m.ID
	if key == "" {
		key = m.Filename + "|" + m.Name
	}
	if row > 0 {
		key += "#" + strconv.Itoa(row)
	}
	return key
}

func metaCells(m core.Meta) []any {
	out := make([]any, 0, len(metaColumns)+3)
	if m.Onset != nil {
		out = append(out, *m.Onset)
	} else {
		out = append(out, nil)
	}
	if m.Duration != nil {
		out = append(out, *m.Duration)
	} else {
		out = append(out, nil)
	}
	if m.Order != nil {
		out = append(out, *m.Order)
	} else {
		out = append(out, nil)
	}
	return append(out, m.Name)
}

func cellValue(c core.Cell) any {
	if v, ok := c.Scalar(); ok {
		return v
	}
	return c
}

// FormatCell 把单元格格式化为字符串（CSV 输出使用）；数组写为 [v1 v2 ...]
func FormatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case int:
		return strconv.Itoa(val)
	case string:
		return val
	case core.Cell:
		parts := make([]string, len(val.Data))
		for i, x := range val.Data {
			parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
		}
		return "[" + strings.Join(parts, " ") + "]"
	default:
		return fmt.Sprint(val)
	}
}

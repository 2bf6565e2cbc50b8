package result

import (
	"fmt"

	"github.com/rushteam/featx/core"
	"github.com/rushteam/featx/pkg/dsl"
)

// Filter 用 CEL 表达式过滤 long 格式的表，保留表达式为 true 的行。
//
// 可用变量：extractor、feature、value（标量为数值，数组为列表）
// 以及 stim（name、onset、duration、order，缺失的字段不出现）。
// 例：extractor == "inceptionv3" && value > 0.1
func Filter(t *Table, expr string) (*Table, error) {
	eval, err := dsl.NewEval(expr)
	if err != nil {
		return nil, core.Errorf(core.ModuleResult, core.ErrorCodeInvalidConfig, "filter %q: %v", expr, err)
	}
	featureCol, valueCol := t.Column(ColumnFeature), t.Column(ColumnValue)
	if featureCol < 0 || valueCol < 0 {
		return nil, core.Errorf(core.ModuleResult, core.ErrorCodeInvalidInput, "filter requires a long format table")
	}
	extractorCol := t.Column(ColumnExtractor)

	out := &Table{Columns: append([]string(nil), t.Columns...)}
	for i, row := range t.Rows {
		vars := map[string]any{
			"feature": row[featureCol],
			"value":   filterValue(row[valueCol]),
			"stim":    stimVars(t, row),
		}
		if extractorCol >= 0 {
			vars["extractor"] = row[extractorCol]
		}
		ok, err := eval.Evaluate(vars)
		if err != nil {
			return nil, fmt.Errorf("filter row %d: %w", i, err)
		}
		if ok {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

func filterValue(v any) any {
	if c, ok := v.(core.Cell); ok {
		return c.Data
	}
	return v
}

func stimVars(t *Table, row []any) map[string]any {
	stim := map[string]any{}
	for col, key := range map[string]string{
		ColumnStimName: "name",
		ColumnOnset:    "onset",
		ColumnDuration: "duration",
		ColumnOrder:    "order",
	} {
		if i := t.Column(col); i >= 0 && row[i] != nil {
			stim[key] = row[i]
		}
	}
	return stim
}

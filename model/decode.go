package model

import (
	"gonum.org/v1/gonum/floats"

	"github.com/rushteam/featx/core"
)

// Prediction 是一个类别预测
type Prediction struct {
	ID          string
	Label       string
	Probability float64
}

// DecodePredictions 按 keras decode_predictions 的语义取每个样本的 top-K 类别。
//
// preds 形状为 [batch, classes]（一维视为单个样本），classes 必须等于类别数。
// 每个样本的结果按概率降序排列，概率相同时类别编号小的在前。
func DecodePredictions(preds *core.Tensor, index *ClassIndex, top int) ([][]Prediction, error) {
	if preds == nil || preds.DType == core.String {
		return nil, core.Errorf(core.ModuleModel, core.ErrorCodeInvalidInput, "predictions must be numeric")
	}
	if index == nil {
		return nil, core.Errorf(core.ModuleModel, core.ErrorCodeMissingDependency, "class index is required")
	}
	batch := preds
	if preds.Rank() == 1 {
		batch = preds.ExpandDims(0)
	}
	if batch.Rank() != 2 || batch.Shape[1] != index.Len() {
		return nil, core.Errorf(core.ModuleModel, core.ErrorCodeInvalidInput,
			"decode predictions expects a batch of predictions with shape (samples, %d), got %v", index.Len(), preds.Shape)
	}
	if top <= 0 || top > index.Len() {
		top = index.Len()
	}

	out := make([][]Prediction, batch.Shape[0])
	for s := 0; s < batch.Shape[0]; s++ {
		row, err := batch.Row(s)
		if err != nil {
			return nil, err
		}
		probs := row.Float64s()
		// Argsort 升序排序并原地修改，这里对取负后的副本排序
		sorted := make([]float64, len(probs))
		for i, p := range probs {
			sorted[i] = -p
		}
		order := make([]int, len(sorted))
		floats.Argsort(sorted, order)
		stableTies(sorted, order)

		picks := make([]Prediction, top)
		for k := 0; k < top; k++ {
			c := order[k]
			picks[k] = Prediction{ID: index.IDs[c], Label: index.Labels[c], Probability: probs[c]}
		}
		out[s] = picks
	}
	return out, nil
}

// stableTies 在相等的排序值内按原始下标升序排列（Argsort 不保证稳定）
func stableTies(sorted []float64, order []int) {
	for lo := 0; lo < len(sorted); {
		hi := lo + 1
		for hi < len(sorted) && sorted[hi] == sorted[lo] {
			hi++
		}
		for i := lo + 1; i < hi; i++ {
			for j := i; j > lo && order[j] < order[j-1]; j-- {
				order[j], order[j-1] = order[j-1], order[j]
			}
		}
		lo = hi
	}
}

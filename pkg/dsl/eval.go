package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// Variables 是表达式可访问的顶层变量。
var Variables = []string{"extractor", "feature", "value", "stim"}

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		opts := make([]cel.EnvOption, 0, len(Variables))
		for _, name := range Variables {
			opts = append(opts, cel.Variable(name, cel.DynType))
		}
		celEnv, celEnvErr = cel.NewEnv(opts...)
	})
	return celEnv, celEnvErr
}

// Eval 是结果过滤 DSL 解释器，使用 CEL (Common Expression Language) 实现。
//
// 表达式语法（CEL 标准语法）：
//   - 基础：extractor == "inceptionv3" / feature != "feature_0"
//   - 数值：value > 0.5
//   - 元数据：stim.name == "apple" / stim.onset >= 2.0
//   - 逻辑：extractor == "mobilenet" && value > 0.1
//   - 包含：feature.startsWith("Granny") / feature in ["cat", "dog"]
//
// 表达式在 NewEval 时编译一次，Evaluate 可以并发调用。
type Eval struct {
	expr string
	prg  cel.Program
}

// NewEval 编译表达式。空表达式恒为 true。
func NewEval(expr string) (*Eval, error) {
	e := &Eval{expr: expr}
	if expr == "" {
		return e, nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	e.prg = prg
	return e, nil
}

// Expr 返回原始表达式。
func (e *Eval) Expr() string { return e.expr }

// Evaluate 执行表达式，vars 的 key 应为 Variables 中的名称。
// 未提供的变量视为 null。
func (e *Eval) Evaluate(vars map[string]any) (bool, error) {
	if e.prg == nil {
		return true, nil
	}
	input := make(map[string]any, len(Variables))
	for _, name := range Variables {
		input[name] = vars[name]
	}
	out, _, err := e.prg.Eval(input)
	if err != nil {
		// 访问 stim 中不存在的 key 会报错，用户应先用 has(stim.onset) 判断
		return false, fmt.Errorf("eval error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

package core

import "context"

// Model 是预训练模型的能力接口：输入一个 Value，输出一个 Value。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（service）实现
//   - 抽取器只依赖此接口，不关心模型运行在 TF Serving、KServe 还是本地 ONNX Runtime
//   - 输出可以是单个张量，也可以是 key → 张量的命名集合（keyed output）
//
// 实现：
//   - service.TFServingClient
//   - service.KServeClient
//   - service.ONNXModel
//   - service.FuncModel（进程内函数，常用于测试或自定义模型）
//
// 并发安全性取决于具体实现，抽取器不做额外保证。
type Model interface {
	// Name 返回模型名称（用于日志/监控）
	Name() string

	// Infer 执行一次推理，阻塞直到完成
	Infer(ctx context.Context, in Value) (Value, error)

	// Close 释放模型持有的资源
	Close() error
}

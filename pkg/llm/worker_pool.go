package llm

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// WorkerPoolConfig configures the tool-call worker pool.
type WorkerPoolConfig struct {
	MaxConcurrent int // default: 4
}

func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{MaxConcurrent: 4}
}

// WorkerPool runs the tool calls of one model turn with bounded parallelism.
type WorkerPool struct {
	sem    chan struct{}
	logger *zap.Logger
}

func NewWorkerPool(config WorkerPoolConfig, logger *zap.Logger) *WorkerPool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultWorkerPoolConfig().MaxConcurrent
	}
	return &WorkerPool{
		sem:    make(chan struct{}, config.MaxConcurrent),
		logger: logger.Named("tool_worker_pool"),
	}
}

// ToolOutcome is the result of one tool call.
type ToolOutcome struct {
	Result string
	Failed bool
}

// RunToolCalls executes calls through executor and returns outcomes in call
// order. A failing call yields its error text as the result so the model can
// react to it; the remaining calls still run.
func (p *WorkerPool) RunToolCalls(ctx context.Context, executor ToolExecutor, calls []ToolCall) []ToolOutcome {
	outcomes := make([]ToolOutcome, len(calls))
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(i int, call ToolCall) {
			defer wg.Done()

			select {
			case p.sem <- struct{}{}:
				defer func() { <-p.sem }()
			case <-ctx.Done():
				outcomes[i] = ToolOutcome{Result: "Error executing tool: " + ctx.Err().Error(), Failed: true}
				return
			}

			result, err := executor.ExecuteTool(ctx, call.Function.Name, call.Function.Arguments)
			if err != nil {
				p.logger.Debug("Tool call failed",
					zap.String("tool", call.Function.Name),
					zap.Error(err))
				outcomes[i] = ToolOutcome{Result: "Error executing tool: " + err.Error(), Failed: true}
				return
			}
			outcomes[i] = ToolOutcome{Result: result}
		}(i, call)
	}

	wg.Wait()
	return outcomes
}

// record appends the calls and outcomes of one turn to the chat result.
func (r *ChatResult) record(calls []ToolCall, outcomes []ToolOutcome) {
	for i, call := range calls {
		r.ToolCalls = append(r.ToolCalls, ToolCallRecord{
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
			Result:    outcomes[i].Result,
			Failed:    outcomes[i].Failed,
		})
	}
}

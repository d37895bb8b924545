package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/Lllllllleong/pathwayflow/internal/llm"
)

// scriptedClient is an in-memory llm.Client for tests. Each Generate call is
// routed through handler with the 1-based call number; every request is
// recorded for assertions.
type scriptedClient struct {
	handler func(req llm.Request, call int) (*llm.Result, error)

	mu    sync.Mutex
	calls []llm.Request
}

func (c *scriptedClient) Generate(_ context.Context, req llm.Request) (*llm.Result, error) {
	c.mu.Lock()
	c.calls = append(c.calls, req)
	call := len(c.calls)
	c.mu.Unlock()
	return c.handler(req, call)
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// sequence returns a handler that replays the given outcomes in call order.
type scriptedStep struct {
	text string
	err  error
}

func sequence(steps ...scriptedStep) func(llm.Request, int) (*llm.Result, error) {
	return func(_ llm.Request, call int) (*llm.Result, error) {
		if call > len(steps) {
			return nil, fmt.Errorf("unexpected model call %d, scripted %d", call, len(steps))
		}
		step := steps[call-1]
		if step.err != nil {
			return nil, step.err
		}
		return &llm.Result{Text: step.text}, nil
	}
}

// quickRetry keeps test retry loops fast.
var quickRetry = llm.RetryPolicy{MaxAttempts: 2, InitialBackoff: 0}

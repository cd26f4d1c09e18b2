package llm

import "context"

// ResponderFunc 把普通函数适配为 ResponderClient。
func ResponderFunc(name string, fn func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)) ResponderClient {
	return funcClient{name: name, fn: fn}
}

type funcClient struct {
	name string
	fn   func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

func (f funcClient) Name() string { return f.name }

func (f funcClient) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return f.fn(ctx, req)
}

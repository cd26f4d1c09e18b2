/*
Package types 提供 CHIKA 的全局共享类型定义。

types 是最底层的公共包，不依赖任何内部包，为 llm、agent、api 等上层模块提供
统一的类型契约。

# 核心类型

  - Turn              — 对话轮次（Role、Author、Content）
  - Responder 名称    — claude / gpt / gemini / grok / ollama
  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记

# 主要能力

  - Context 传播：WithRequestID / WithUserID / WithRoles
  - 错误工具链：NewError / WithCause / IsRetryable / GetErrorCode
*/
package types

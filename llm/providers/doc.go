// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 提供 responder HTTP 客户端的公共基础层：OpenAI 兼容的
请求/响应结构、HTTP 错误映射以及各上游的默认端点。

# 核心类型

  - BaseProviderConfig — 所有 responder 共享的基础配置（APIKey、BaseURL、Model、Timeout）
  - OpenAICompat* 系列 — OpenAI 兼容 API 的请求/响应结构体
  - Endpoint — 各上游的默认 BaseURL、路径与模型

# 核心函数

  - MapHTTPError — 将 HTTP 状态码映射为语义化的 llm.Error（含 Retryable 标记）
  - ReadErrorMessage — 读取上游错误体
  - ConvertMessagesToOpenAI / ToLLMChatResponse — 消息格式转换
  - ChooseModel — 按优先级选择模型（请求 > 默认 > 兜底）
*/
package providers

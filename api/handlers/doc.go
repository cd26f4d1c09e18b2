// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 CHIKA HTTP API 的请求处理器实现。

# 核心类型

  - CollaborationHandler — POST /api/v1/rooms/{room}/collaborate，调用协作引擎
  - DiscussionHandler    — 按房间列出讨论、按 ID 查询讨论
  - ProviderHandler      — 按路由顺序列出部署，附带熔断与凭据状态
  - HealthHandler        — /health、/healthz、/ready、/version
  - Response / ErrorInfo — 统一 JSON 响应结构
  - ResponseWriter       — 捕获状态码与字节数，支持 Hijack 以便 WebSocket 升级

# 约定

  - 请求体不超过 1 MB，拒绝未知字段与多个 JSON 对象。
  - types.ErrorCode 通过 HTTPStatus 映射为状态码，5xx 以 Error 级别记录日志。
  - 响应携带 RequestID 中间件写入 context 的请求 ID。
*/
package handlers

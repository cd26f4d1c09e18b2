// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供 CHIKA 的 responder 接入层：ResponderClient 抽象、
部署描述（Deployment）、按优先级降级的 Router 以及兜底的合成 responder。

# 概述

Router 持有按优先级排序、构造后不可变的部署列表。每次 Route 调用按顺序
尝试各部署，失败即记录日志并尝试下一个；列表最后一项永远是合成 responder，
因此 Route 必然返回文本，从不向调用方返回错误。

# 核心接口

  - [ResponderClient]：单个 responder 的同步补全接口
  - [CredentialSource]：为需要 OAuth 凭据的部署提供有效 token
  - [Router]：Route(ctx, turns, preferred) 按偏好重排后逐个尝试
  - [Deployment]：responder 名称、模型、优先级、端点与凭据需求

# 凭据传递

需要刷新凭据的部署通过 [WithCredentialOverride] 把 token 写入 ctx，
具体的 HTTP 客户端（见 llm/providers/openaicompat）优先读取该覆盖值。
*/
package llm

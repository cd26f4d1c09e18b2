// Package config 提供 CHIKA 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 CHIKA_）的顺序叠加，
// 最后由 Validate 统一校验。每个 responder 的密钥、端点、模型与优先级
// 都可以单独覆盖，例如 CHIKA_RESPONDERS_CLAUDE_API_KEY。
package config

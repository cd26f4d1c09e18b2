// Package factory 根据 responder 配置构建路由部署列表，
// 把 llm 包与具体客户端实现（openaicompat）解耦，避免循环依赖。
package factory

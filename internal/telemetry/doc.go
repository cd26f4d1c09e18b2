// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 CHIKA 提供集中式的 TracerProvider 和 MeterProvider 配置。
// Router 与协作引擎通过 otel 全局 Tracer 创建 span；
// 当遥测功能禁用时全局 provider 保持 noop，不连接任何外部服务。
package telemetry

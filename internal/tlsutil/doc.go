// Package tlsutil 集中管理出站连接的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件）。
// responder HTTP 调用、OAuth 刷新与 Redis 连接都从这里取配置。
package tlsutil

// Package auth 为需要 OAuth 凭据的 responder 提供有效 token。
//
// Token 持久化在 TokenStore 中（memory / file / redis），过期时由 Refresher
// 使用 refresh token 向对应的 OAuth 端点换取新 token。Adapter 实现
// llm.CredentialSource，路由器在每次调用前通过它取 token；任何失败都只
// 返回 ("", false)，由路由器跳过该部署。
package auth

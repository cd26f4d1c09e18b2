// Package ws 把协作引擎事件按房间推送给 WebSocket 客户端。
//
// Hub.Publish 作为 collaboration.Options.OnEvent 注册给引擎，
// Hub 本身挂在 GET /api/v1/rooms/{room}/ws 上。连接只用于服务端推送。
package ws

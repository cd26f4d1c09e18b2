// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP 服务器生命周期管理：非阻塞启动、基于 context 的
运行与优雅关闭。

# 核心类型

  - Manager：封装 net/http.Server 与 net.Listener，提供
    Start/Run/Shutdown。关闭时先排空连接，超时后取消仍在处理的请求
    （协作请求随之结束并把讨论标记为 timeout）。
  - Config：监听地址、读写超时、空闲超时、最大请求头大小与优雅关闭超时。

# 主要能力

  - RunAll：用 errgroup 同时运行 API 与 metrics 两个服务器，
    任意一个异常退出时关闭其余服务器。
  - 信号处理由调用方通过 signal.NotifyContext 传入的 ctx 完成。
*/
package server

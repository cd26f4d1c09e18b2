// Package collaboration 实现多 responder 协作与共识引擎。
//
// 一条用户消息的处理流程：SelectParticipants 选出最多两个 responder；
// 主 responder 先回答，第二个 responder 评审；评审出现分歧时创建
// Discussion，按轮次交替发言直到某一方表示同意（resolved）或轮数
// 耗尽（timeout）。所有 responder 调用都经由 Router，Router 保证总能
// 返回文本，因此引擎本身不会因 responder 故障而失败。
//
// 同一房间的协作由 RoomLocker 串行化。
package collaboration

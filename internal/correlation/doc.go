// Package correlation turns callback-delivered protocol responses into awaitable,
// cancellable operations.
//
// A Machine owns one in-flight request: its correlation id, its single-resolution
// Future and the linkage to the caller's context. FanIn extends it for requests
// answered by an acknowledgement that announces N follow-up reports. A Registry
// maps correlation ids to machines for one command family and routes inbound
// messages to them.
package correlation

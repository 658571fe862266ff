package scan

import (
	"net/netip"
	"time"
)

// Target 单个扫描目标,端口和超时对所有目标相同且只读
type Target struct {
	Addr    netip.Addr
	Port    uint16
	Timeout time.Duration //连接和banner读写各自使用一次
}

// Address 返回可以直接拨号的 host:port,IPv6会加上方括号
func (t Target) Address() string {
	return netip.AddrPortFrom(t.Addr, t.Port).String()
}

//已派发的任务,持有一个并发配额直到release被调用
type job struct {
	target  Target
	banner  bool //端口开放后是否抓取banner
	results chan<- Result
	release func()
}

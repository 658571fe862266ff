package scan

import (
	"context"
	"net"

	log "github.com/sirupsen/logrus"
)

// ConnectProber 是TCP连接扫描,三次握手完成即认为端口开放
type ConnectProber struct{}

func NewConnectProber() *ConnectProber {
	return &ConnectProber{}
}

// Probe 在t.Timeout内发起tcp连接.开放时返回的连接由调用者负责关闭
func (c *ConnectProber) Probe(ctx context.Context, t Target) (net.Conn, PortState) {
	d := net.Dialer{Timeout: t.Timeout}
	conn, err := d.DialContext(ctx, "tcp", t.Address())
	if err != nil {
		//拒绝,不可达,超时都归为关闭,不单独记录
		return nil, PortClosed
	}
	log.Debugf("%s is OPEN!", t.Address())
	return conn, PortOpen
}

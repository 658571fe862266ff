package scan

import (
	"fmt"
	"io"
	"math/big"
	"net/netip"
	"strings"

	"go4.org/netipx"
)

// TargetIterator 按顺序惰性地产生子网内所有可用的主机地址
type TargetIterator struct {
	prefix netip.Prefix //已经去掉主机位的网段
	first  netip.Addr   //第一个可用地址
	last   netip.Addr   //最后一个可用地址
	ip     netip.Addr   //下一次Next返回的地址
	done   bool
}

// NewTargetIterator 10.0.0.7/30 -> 10.0.0.0/30,可用地址 10.0.0.1 - 10.0.0.2
func NewTargetIterator(target string) (*TargetIterator, error) {
	prefix, err := netip.ParsePrefix(strings.TrimSpace(target))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubnet, err)
	}
	prefix = prefix.Masked()

	r := netipx.RangeOfPrefix(prefix)
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSubnet, target)
	}
	first, last := r.From(), r.To()
	if excludesEdges(prefix) { //IPv4 /30及更大的网段去掉网络地址和广播地址
		first, last = first.Next(), last.Prev()
	}

	ti := &TargetIterator{
		prefix: prefix,
		first:  first,
		last:   last,
	}
	ti.Reset()
	return ti, nil
}

// excludesEdges /31 /32 没有网络地址和广播地址的概念(RFC 3021),IPv6没有广播地址
func excludesEdges(p netip.Prefix) bool {
	return p.Addr().Is4() && p.Bits() <= 30
}

func (ti *TargetIterator) Prefix() netip.Prefix {
	return ti.prefix
}

// Reset 回到第一个地址,使迭代器可以重复使用
func (ti *TargetIterator) Reset() {
	ti.ip = ti.first
	ti.done = false
}

// Next 返回下一个地址,耗尽之后返回io.EOF
func (ti *TargetIterator) Next() (netip.Addr, error) {
	if ti.done {
		return netip.Addr{}, io.EOF
	}
	ip := ti.ip
	if ip == ti.last {
		ti.done = true
	} else {
		ti.ip = ip.Next()
	}
	return ip, nil
}

// Count 直接计算可用地址的数量,不需要遍历(IPv6的大网段也能给出精确值)
func (ti *TargetIterator) Count() *big.Int {
	hostBits := uint(ti.prefix.Addr().BitLen() - ti.prefix.Bits())
	n := new(big.Int).Lsh(big.NewInt(1), hostBits)
	if excludesEdges(ti.prefix) {
		n.Sub(n, big.NewInt(2))
	}
	return n
}

func (ti *TargetIterator) String() string {
	return ti.prefix.String()
}

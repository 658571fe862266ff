package scan

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultProbeSize 探测数据的默认长度
const DefaultProbeSize = 3

const (
	probeMin = 0x20 //' '
	probeMax = 0x7e //'~'
)

var seedCounter int64

// ProbeGenerator 生成用于引出banner的随机可打印字符,不需要密码学强度
type ProbeGenerator struct {
	mu   sync.Mutex
	rng  *rand.Rand
	size int
}

func NewProbeGenerator(size int) *ProbeGenerator {
	if size <= 0 {
		size = DefaultProbeSize
	}
	//时间戳加上进程内计数器,同一纳秒内创建的生成器也不会得到相同的序列
	seed := time.Now().UnixNano() ^ atomic.AddInt64(&seedCounter, 1)<<32
	return &ProbeGenerator{
		rng:  rand.New(rand.NewSource(seed)),
		size: size,
	}
}

// Probe 返回size个 0x20-0x7e 范围内的字节
func (g *ProbeGenerator) Probe() []byte {
	buf := make([]byte, g.size)
	g.mu.Lock()
	for i := range buf {
		buf[i] = byte(probeMin + g.rng.Intn(probeMax-probeMin+1))
	}
	g.mu.Unlock()
	return buf
}

// Line 探测数据加上CRLF
func (g *ProbeGenerator) Line() []byte {
	return append(g.Probe(), '\r', '\n')
}

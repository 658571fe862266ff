package scan

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

var (
	ErrInvalidSubnet   = errors.New("invalid subnet")
	ErrInvalidArgument = errors.New("invalid argument")
)

const (
	DefaultParallelism = 200
	DefaultTimeout     = 1000 * time.Millisecond
)

// 结果通道缓冲的上限,并发由信号量控制,缓冲不需要和并发数一样大
const maxResultBuffer = 1024

// Prober 判断单个目标的端口状态.返回PortOpen且conn不为nil时,conn归调用者所有
type Prober interface {
	Probe(ctx context.Context, t Target) (net.Conn, PortState)
}

// Options 一次扫描的参数,在整个扫描期间只读
type Options struct {
	Port           uint16
	Parallelism    int           //同时探测的目标数量上限
	Timeout        time.Duration //连接超时,banner读写也各自使用一次
	Banner         bool          //端口开放时是否抓取banner
	Prober         Prober        //为nil时使用ConnectProber
	ProbeSize      int
	MaxBannerBytes int
}

type Result struct {
	Host    netip.Addr
	Port    uint16
	State   PortState
	Banner  string        //已去掉末尾空白
	Latency time.Duration //建立连接花费的时间
}

func (r Result) Outcome() Outcome {
	switch {
	case r.State != PortOpen:
		return OutcomeClosed
	case r.Banner != "":
		return OutcomeOpenWithBanner
	}
	return OutcomeOpen
}

//实现Stringer接口
func (r Result) String() string {
	if r.Banner == "" {
		return r.Host.String()
	}
	return fmt.Sprintf("%s:\n\n%s\n", r.Host, r.Banner)
}

// Stats 扫描过程中的计数,PeakInFlight记录同时探测目标数量的最大值
type Stats struct {
	Dispatched   int64
	Open         int64
	Banners      int64
	BannerErrors int64
	InFlight     int64
	PeakInFlight int64
}

// Scanner 遍历子网,用信号量限制同时进行的探测数量,把开放的端口发送到结果通道
type Scanner struct {
	ti      *TargetIterator
	opts    Options
	prober  Prober
	grabber *BannerGrabber
	budget  *semaphore.Weighted

	dispatched   atomic.Int64
	open         atomic.Int64
	banners      atomic.Int64
	bannerErrors atomic.Int64
	inFlight     atomic.Int64
	peak         atomic.Int64
}

// NewScanner 解析子网并检查参数,出错时不会派发任何任务
func NewScanner(subnet string, opts Options) (*Scanner, error) {
	ti, err := NewTargetIterator(subnet)
	if err != nil {
		return nil, err
	}
	if opts.Parallelism < 1 {
		return nil, fmt.Errorf("%w: parallelism must be at least 1, got %d", ErrInvalidArgument, opts.Parallelism)
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive, got %v", ErrInvalidArgument, opts.Timeout)
	}

	prober := opts.Prober
	if prober == nil {
		prober = NewConnectProber()
	}
	return &Scanner{
		ti:      ti,
		opts:    opts,
		prober:  prober,
		grabber: NewBannerGrabber(NewProbeGenerator(opts.ProbeSize), opts.Timeout, opts.MaxBannerBytes),
		budget:  semaphore.NewWeighted(int64(opts.Parallelism)),
	}, nil
}

// Total 待扫描的地址数量,在Scan之前就可以得到
func (s *Scanner) Total() *big.Int {
	return s.ti.Count()
}

func (s *Scanner) Prefix() netip.Prefix {
	return s.ti.Prefix()
}

// Scan 开始扫描,只有开放的端口会被发送到返回的通道.
// 所有已派发的任务结束后通道才会关闭.ctx取消后停止派发新任务,正在进行的连接会被中断.
// 同一个Scanner不能并发调用Scan
func (s *Scanner) Scan(ctx context.Context) <-chan Result {
	results := make(chan Result, s.resultBuffer())

	go func() {
		defer close(results)
		wg := &sync.WaitGroup{}
		start := time.Now()

		s.ti.Reset()
		for {
			ip, err := s.ti.Next()
			if err != nil { //只会是io.EOF
				break
			}

			//配额耗尽时阻塞在此,直到某个任务释放
			if err := s.budget.Acquire(ctx, 1); err != nil {
				log.Debugf("停止派发: %v", err)
				break
			}

			wg.Add(1)
			s.dispatched.Add(1)
			go s.run(ctx, job{
				target: Target{
					Addr:    ip,
					Port:    s.opts.Port,
					Timeout: s.opts.Timeout,
				},
				banner:  s.opts.Banner,
				results: results,
				release: func() {
					s.budget.Release(1)
					wg.Done()
				},
			})
		}

		wg.Wait() //等待所有任务完成
		log.Debugf("扫描%s完毕,派发%d个目标,耗时:%v", s.ti, s.dispatched.Load(), time.Since(start))
	}()

	return results
}

func (s *Scanner) run(ctx context.Context, j job) {
	defer j.release()
	s.enter()
	defer s.inFlight.Add(-1) //先于release执行,保证InFlight不会超过配额

	start := time.Now()
	conn, state := s.prober.Probe(ctx, j.target)
	if state != PortOpen {
		if conn != nil {
			conn.Close()
		}
		return
	}

	result := Result{
		Host:    j.target.Addr,
		Port:    j.target.Port,
		State:   PortOpen,
		Latency: time.Since(start),
	}
	if conn != nil {
		if j.banner {
			banner, err := s.grabber.Grab(conn)
			if err != nil {
				s.bannerErrors.Add(1)
				log.Debugf("%s 获取banner失败: %v", j.target.Address(), err)
			}
			result.Banner = strings.TrimRightFunc(banner, unicode.IsSpace)
		} else {
			conn.Close()
		}
	}

	s.open.Add(1)
	if result.Banner != "" {
		s.banners.Add(1)
	}

	select {
	case j.results <- result:
	case <-ctx.Done():
	}
}

// resultBuffer 取并发数,地址数量和maxResultBuffer中最小的一个
func (s *Scanner) resultBuffer() int {
	n := s.opts.Parallelism
	if total := s.ti.Count(); total.IsInt64() && total.Int64() < int64(n) {
		n = int(total.Int64())
	}
	if n > maxResultBuffer {
		n = maxResultBuffer
	}
	return n
}

//记录同时进行的探测数量的峰值
func (s *Scanner) enter() {
	n := s.inFlight.Add(1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (s *Scanner) Stats() Stats {
	return Stats{
		Dispatched:   s.dispatched.Load(),
		Open:         s.open.Load(),
		Banners:      s.banners.Load(),
		BannerErrors: s.bannerErrors.Load(),
		InFlight:     s.inFlight.Load(),
		PeakInFlight: s.peak.Load(),
	}
}

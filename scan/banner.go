package scan

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

// DefaultMaxBannerBytes 单个banner最多读取的字节数
const DefaultMaxBannerBytes = 16 << 10

// BannerGrabber 向已建立的连接写入随机探测行,在超时之前读取对端返回的所有数据
type BannerGrabber struct {
	probes  *ProbeGenerator
	timeout time.Duration
	max     int64
}

func NewBannerGrabber(probes *ProbeGenerator, timeout time.Duration, maxBytes int) *BannerGrabber {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBannerBytes
	}
	return &BannerGrabber{
		probes:  probes,
		timeout: timeout,
		max:     int64(maxBytes),
	}
}

// Grab 返回读到的文本(可能为空).error只用于诊断,对调用者来说失败和对端没有发送数据是一样的.
// 无论结果如何conn都会被关闭
func (b *BannerGrabber) Grab(conn net.Conn) (string, error) {
	defer conn.Close()

	//写和读共用一个超时,与连接阶段的超时相互独立
	if err := conn.SetDeadline(time.Now().Add(b.timeout)); err != nil {
		return "", err
	}
	if _, err := conn.Write(b.probes.Line()); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	_, err := buf.ReadFrom(io.LimitReader(conn, b.max)) //EOF时err为nil
	if err != nil && isTimeout(err) && buf.Len() > 0 {
		//对端不主动关闭连接,超时前读到的数据就是banner
		err = nil
	}
	return decodeBanner(buf.Bytes()), err
}

// decodeBanner 非法的utf8序列替换为U+FFFD,不会失败
func decodeBanner(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

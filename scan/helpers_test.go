package scan

import (
	"bufio"
	"io"
	"net"
	"testing"
)

// listen 在addr上启动服务,每个连接交给handle处理,测试结束时关闭
func listen(t *testing.T, addr string, handle func(net.Conn)) uint16 {
	t.Helper()
	l, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				handle(conn)
			}()
		}
	}()
	return uint16(l.Addr().(*net.TCPAddr).Port)
}

// echoHandler 把收到的探测行原样写回,并记录下来,然后保持连接直到客户端关闭
func echoHandler(received chan<- string) func(net.Conn) {
	return func(conn net.Conn) {
		line, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil {
			return
		}
		select {
		case received <- line:
		default:
		}
		if _, err := io.WriteString(conn, line); err != nil {
			return
		}
		io.Copy(io.Discard, conn)
	}
}

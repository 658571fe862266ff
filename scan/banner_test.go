package scan

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"
)

func dial(t *testing.T, port uint16) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port))), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

// readProbe 先读完探测行再回复,避免关闭时未读数据触发RST
func readProbe(conn net.Conn) {
	bufio.NewReader(conn).ReadString('\n')
}

func TestBannerGrabEcho(t *testing.T) {
	received := make(chan string, 1)
	port := listen(t, "127.0.0.1:0", echoHandler(received))

	g := NewBannerGrabber(NewProbeGenerator(0), 200*time.Millisecond, 0)
	banner, err := g.Grab(dial(t, port))
	if err != nil {
		t.Fatalf("Grab: %v", err)
	}

	sent := <-received
	if !strings.HasSuffix(sent, "\r\n") || len(sent) != DefaultProbeSize+2 {
		t.Fatalf("server received %q, want %d bytes plus CRLF", sent, DefaultProbeSize)
	}
	if banner != sent {
		t.Errorf("banner = %q, want echoed probe %q", banner, sent)
	}
}

func TestBannerGrabServiceCloses(t *testing.T) {
	port := listen(t, "127.0.0.1:0", func(conn net.Conn) {
		readProbe(conn)
		conn.Write([]byte("SSH-2.0-OpenSSH_9.6\r\n"))
	})

	g := NewBannerGrabber(NewProbeGenerator(0), time.Second, 0)
	start := time.Now()
	banner, err := g.Grab(dial(t, port))
	if err != nil {
		t.Fatalf("Grab: %v", err)
	}
	if banner != "SSH-2.0-OpenSSH_9.6\r\n" {
		t.Errorf("banner = %q", banner)
	}
	if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
		t.Errorf("Grab took %v, expected to return on peer close", elapsed)
	}
}

func TestBannerGrabSilentPeer(t *testing.T) {
	port := listen(t, "127.0.0.1:0", func(conn net.Conn) {
		buf := make([]byte, 64)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	})

	timeout := 150 * time.Millisecond
	g := NewBannerGrabber(NewProbeGenerator(0), timeout, 0)
	start := time.Now()
	banner, err := g.Grab(dial(t, port))
	elapsed := time.Since(start)

	if banner != "" {
		t.Errorf("banner = %q, want empty", banner)
	}
	if err == nil || !isTimeout(err) {
		t.Errorf("err = %v, want timeout", err)
	}
	if elapsed < timeout || elapsed > 10*timeout {
		t.Errorf("Grab took %v, want about %v", elapsed, timeout)
	}
}

func TestBannerGrabInvalidUTF8(t *testing.T) {
	port := listen(t, "127.0.0.1:0", func(conn net.Conn) {
		readProbe(conn)
		conn.Write([]byte{'o', 'k', 0xff, 0xfe, '!'})
	})

	g := NewBannerGrabber(NewProbeGenerator(0), time.Second, 0)
	banner, err := g.Grab(dial(t, port))
	if err != nil {
		t.Fatalf("Grab: %v", err)
	}
	if banner != "ok\uFFFD!" {
		t.Errorf("banner = %q, want %q", banner, "ok\uFFFD!")
	}
}

func TestBannerGrabLimit(t *testing.T) {
	port := listen(t, "127.0.0.1:0", func(conn net.Conn) {
		readProbe(conn)
		conn.Write([]byte(strings.Repeat("x", 100)))
	})

	g := NewBannerGrabber(NewProbeGenerator(0), time.Second, 10)
	banner, _ := g.Grab(dial(t, port))
	if banner != strings.Repeat("x", 10) {
		t.Errorf("banner = %q, want 10 bytes", banner)
	}
}

func TestBannerGrabClosesConn(t *testing.T) {
	closed := make(chan struct{})
	port := listen(t, "127.0.0.1:0", func(conn net.Conn) {
		buf := make([]byte, 64)
		for {
			if _, err := conn.Read(buf); err != nil {
				close(closed)
				return
			}
		}
	})

	g := NewBannerGrabber(NewProbeGenerator(0), 50*time.Millisecond, 0)
	g.Grab(dial(t, port))

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not closed after Grab")
	}
}

func TestBannerGrabWriteFailure(t *testing.T) {
	port := listen(t, "127.0.0.1:0", func(conn net.Conn) {})

	conn := dial(t, port)
	conn.Close()

	g := NewBannerGrabber(NewProbeGenerator(0), time.Second, 0)
	banner, err := g.Grab(conn)
	if banner != "" || err == nil {
		t.Errorf("Grab on closed conn = (%q, %v), want empty banner and an error", banner, err)
	}
}

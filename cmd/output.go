package cmd

import (
	"fmt"
	"io"
	"math/big"
	"os"

	"bannerscan/scan"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var hostStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true) //亮绿色

//负责把扫描结果输出到终端
type printer struct {
	out   io.Writer
	color bool
}

func newPrinter(out io.Writer, color bool) *printer {
	return &printer{out: out, color: color}
}

// colorEnabled 输出不是终端或者指定了--no-color时不使用颜色
func colorEnabled(f *os.File, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *printer) host(s string) string {
	if !p.color {
		return s
	}
	return hostStyle.Render(s)
}

// header 扫描开始前输出目标数量
func (p *printer) header(total *big.Int, port uint16) {
	service := scan.DescribePort(port)
	if service != "" {
		fmt.Fprintf(p.out, "Scanning %s IPs on port %d/tcp (%s)\n\n", total, port, service)
		return
	}
	fmt.Fprintf(p.out, "Scanning %s IPs on port %d/tcp\n\n", total, port)
}

// result 没有banner时只输出地址
func (p *printer) result(r scan.Result) {
	if r.Outcome() != scan.OutcomeOpenWithBanner {
		fmt.Fprintln(p.out, p.host(r.Host.String()))
		return
	}
	fmt.Fprintf(p.out, "%s:\n\n%s\n\n", p.host(r.Host.String()), r.Banner)
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bannerscan/scan"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "development version"

//默认值
var cfg = config{
	threads:   scan.DefaultParallelism,
	timeoutMS: int(scan.DefaultTimeout / time.Millisecond),
	scanType:  "connect",
}
var debug bool            //日志级别
var noColor bool          //关闭颜色
var versionRequested bool //打印版本

type config struct {
	threads   int    //并发数量
	timeoutMS int    //连接超时,banner读取使用同样的值
	noBanner  bool   //只判断端口是否开放
	scanType  string //扫描模式
}

func init() {
	//带P的表示同时可接收缩写选项
	rootCmd.PersistentFlags().IntVarP(&cfg.threads, "threads", "t", cfg.threads, "Number of targets probed concurrently")
	rootCmd.PersistentFlags().IntVarP(&cfg.timeoutMS, "timeout", "T", cfg.timeoutMS, "Timeout in ms, applied to both connect and banner read")
	rootCmd.PersistentFlags().BoolVarP(&cfg.noBanner, "nobanner", "n", cfg.noBanner, "Disable banner grabbing, only report open hosts")
	rootCmd.PersistentFlags().StringVarP(&cfg.scanType, "scan-type", "s", cfg.scanType, "Scan type. Must be one of connect, syn")
	rootCmd.PersistentFlags().BoolVarP(&debug, "verbose", "v", debug, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&noColor, "no-color", "", noColor, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&versionRequested, "version", "", versionRequested, "Output version information and exit")

	//非数字的参数同样归为ErrInvalidArgument
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", scan.ErrInvalidArgument, err)
	})
}

var rootCmd = &cobra.Command{
	Use:           "bannerscan <subnet> <port>",
	Short:         "Sweep a subnet for an open tcp port and grab banners",
	Example:       "  bannerscan 192.168.1.0/24 22\n  bannerscan 10.0.0.0/16 80 -t 500 -T 300 --nobanner",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionRequested {
			fmt.Println(version)
			return nil
		}
		if debug {
			log.SetLevel(log.DebugLevel) //设置日志级别
		}
		if len(args) < 2 {
			return cmd.Help()
		}

		//收到中断信号时取消,停止派发并释放正在使用的连接
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg, args, newPrinter(os.Stdout, colorEnabled(os.Stdout, noColor)))
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// run 解析参数,输出目标数量,扫描并输出结果,直到所有任务完成
func run(ctx context.Context, c config, args []string, p *printer) error {
	port, err := parsePort(args[1])
	if err != nil {
		return err
	}
	prober, err := createProber(c.scanType)
	if err != nil {
		return err
	}

	scanner, err := scan.NewScanner(args[0], scan.Options{
		Port:        port,
		Parallelism: c.threads,
		Timeout:     time.Duration(c.timeoutMS) * time.Millisecond,
		Banner:      !c.noBanner,
		Prober:      prober,
	})
	if err != nil {
		return err
	}
	if _, ok := prober.(*scan.SynProber); ok && !scanner.Prefix().Addr().Is4() {
		return fmt.Errorf("%w: syn scan only supports IPv4 subnets", scan.ErrInvalidArgument)
	}

	start := time.Now()
	p.header(scanner.Total(), port)
	for result := range scanner.Scan(ctx) {
		p.result(result)
	}

	stats := scanner.Stats()
	log.Debugf("扫描完毕 耗时:%v 开放:%d banner:%d banner失败:%d 最大并发:%d",
		time.Since(start), stats.Open, stats.Banners, stats.BannerErrors, stats.PeakInFlight)
	return nil
}

func parsePort(s string) (uint16, error) {
	port, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid port %q, must be between 0 and 65535", scan.ErrInvalidArgument, s)
	}
	return uint16(port), nil
}

func createProber(scanType string) (scan.Prober, error) {
	//根据scanType来选择扫描模式
	switch strings.ToLower(scanType) {
	case "stealth", "syn": //SYN扫描
		if os.Geteuid() > 0 { //用于判断是否是root用户
			return nil, fmt.Errorf("%w: syn scan requires root", scan.ErrInvalidArgument)
		}
		prober, err := scan.NewSynProber()
		if err != nil {
			return nil, err
		}
		return prober, nil

	case "connect", "": //TCP连接扫描
		return scan.NewConnectProber(), nil
	}
	return nil, fmt.Errorf("%w: unknown scan type %q", scan.ErrInvalidArgument, scanType)
}

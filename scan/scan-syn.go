package scan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/routing"
	"github.com/mostlygeek/arp"
	"github.com/phayes/freeport"
	log "github.com/sirupsen/logrus"
)

//使用gopacket包使得go能够处理数据包

// pcap读取的轮询间隔,每次超时后检查一次截止时间和ctx
const pcapPollInterval = 100 * time.Millisecond

// SynProber 半开扫描:只发送SYN,根据回复的SYN/ACK或RST判断端口状态.
// 需要root权限,只支持IPv4,不会建立连接所以无法获取banner
type SynProber struct {
	router           routing.Router
	serializeOptions gopacket.SerializeOptions
}

func NewSynProber() (*SynProber, error) {
	router, err := routing.New()
	if err != nil {
		return nil, err
	}
	return &SynProber{
		router: router,
		serializeOptions: gopacket.SerializeOptions{
			FixLengths:       true,
			ComputeChecksums: true,
		},
	}, nil
}

// Probe 总是返回nil连接
func (s *SynProber) Probe(ctx context.Context, t Target) (net.Conn, PortState) {
	state, err := s.probe(ctx, t)
	if err != nil {
		log.Debugf("SYN扫描%s出错: %v", t.Address(), err)
		return nil, PortClosed
	}
	return nil, state
}

//核心扫描逻辑
func (s *SynProber) probe(ctx context.Context, t Target) (PortState, error) {
	if !t.Addr.Is4() {
		return PortUnknown, fmt.Errorf("SYN扫描只支持IPv4: %s", t.Addr)
	}
	deadline := time.Now().Add(t.Timeout)
	dst := net.IP(t.Addr.AsSlice())

	//-------------------------数据包操作--------------------------------
	networkInterface, gateway, srcIP, err := s.router.Route(dst)
	if err != nil {
		return PortUnknown, err
	}

	handle, err := pcap.OpenLive(networkInterface.Name, 65535, true, pcapPollInterval)
	if err != nil {
		return PortUnknown, err
	}
	defer handle.Close()

	rawPort, err := freeport.GetFreePort() //获取一个空闲的端口作为源端口
	if err != nil {
		return PortUnknown, err
	}
	//根据IP 获取硬件MAC地址
	hwaddr, err := s.getHwAddr(handle, dst, gateway, srcIP, networkInterface, deadline)
	if err != nil {
		return PortUnknown, err
	}

	//只接收目标回给我们的tcp包
	filter := fmt.Sprintf("tcp and src host %s and src port %d and dst port %d", dst, t.Port, rawPort)
	if err := handle.SetBPFFilter(filter); err != nil {
		return PortUnknown, err
	}

	// Construct all the network layers we need.
	eth := layers.Ethernet{
		SrcMAC:       networkInterface.HardwareAddr,
		DstMAC:       hwaddr,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip4 := layers.IPv4{
		SrcIP:    srcIP,
		DstIP:    dst,
		Version:  4,
		TTL:      255,
		Protocol: layers.IPProtocolTCP,
	}
	tcp := layers.TCP{
		SrcPort: layers.TCPPort(rawPort),
		DstPort: layers.TCPPort(t.Port),
		SYN:     true,
		Window:  1024,
	}
	if err := tcp.SetNetworkLayerForChecksum(&ip4); err != nil {
		return PortUnknown, err
	}
	if err := s.send(handle, &eth, &ip4, &tcp); err != nil {
		return PortUnknown, err
	}

	return s.awaitReply(ctx, handle, dst, t.Port, layers.TCPPort(rawPort), deadline)
}

//解析返回的数据,判断端口状态.截止时间之前没有回复视为关闭
func (s *SynProber) awaitReply(ctx context.Context, handle *pcap.Handle, dst net.IP, port uint16, rawPort layers.TCPPort, deadline time.Time) (PortState, error) {
	eth := &layers.Ethernet{}
	ip4 := &layers.IPv4{}
	tcp := &layers.TCP{}
	parser := gopacket.NewDecodingLayerParser(layers.LayerTypeEthernet, eth, ip4, tcp)
	parser.IgnoreUnsupported = true
	decoded := []gopacket.LayerType{}

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return PortUnknown, ctx.Err()
		default:
		}

		// Read in the next packet.
		data, _, err := handle.ReadPacketData()
		if err == pcap.NextErrorTimeoutExpired {
			continue
		} else if err != nil {
			return PortUnknown, err
		}

		if err := parser.DecodeLayers(data, &decoded); err != nil {
			continue
		}
		var fromTarget bool
		for _, layerType := range decoded {
			switch layerType {
			case layers.LayerTypeIPv4:
				fromTarget = ip4.SrcIP.Equal(dst)
			case layers.LayerTypeTCP:
				if !fromTarget || tcp.DstPort != rawPort || tcp.SrcPort != layers.TCPPort(port) {
					continue
				}
				if tcp.SYN && tcp.ACK {
					log.Debugf("%s:%d is OPEN!", dst, port)
					return PortOpen, nil
				}
				if tcp.RST {
					return PortClosed, nil
				}
			}
		}
	}
	return PortClosed, nil
}

// send sends the given layers as a single packet on the network.
func (s *SynProber) send(handle *pcap.Handle, l ...gopacket.SerializableLayer) error {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, s.serializeOptions, l...); err != nil {
		return err
	}
	return handle.WritePacketData(buf.Bytes())
}

func (s *SynProber) getHwAddr(handle *pcap.Handle, ip net.IP, gateway net.IP, srcIP net.IP, networkInterface *net.Interface, deadline time.Time) (net.HardwareAddr, error) {
	arpDst := ip
	if gateway != nil {
		arpDst = gateway
	}

	//先查看ARP中是否有缓存,有且正确的话直接返回
	macStr := arp.Search(arpDst.String())
	if macStr != "" && macStr != "00:00:00:00:00:00" {
		if mac, err := net.ParseMAC(macStr); err == nil {
			return mac, nil
		}
	}

	//发送ARP请求
	eth := layers.Ethernet{
		SrcMAC:       networkInterface.HardwareAddr,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	req := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte(networkInterface.HardwareAddr),
		SourceProtAddress: []byte(srcIP.To4()),
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte(arpDst.To4()),
	}
	if err := s.send(handle, &eth, &req); err != nil {
		return nil, err
	}

	for {
		if time.Now().After(deadline) {
			return nil, errors.New("timeout getting ARP reply")
		}
		data, _, err := handle.ReadPacketData()
		if err == pcap.NextErrorTimeoutExpired {
			continue
		} else if err != nil {
			return nil, err
		}
		packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
		if arpLayer := packet.Layer(layers.LayerTypeARP); arpLayer != nil {
			reply := arpLayer.(*layers.ARP)
			if reply.Operation == layers.ARPReply && net.IP(reply.SourceProtAddress).Equal(arpDst) {
				return net.HardwareAddr(reply.SourceHwAddress), nil
			}
		}
	}
}

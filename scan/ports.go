package scan

//go:generate go run ../tools/update.go -o known.go

type PortState uint8

const (
	PortUnknown PortState = iota
	PortOpen
	PortClosed
)

func (s PortState) String() string {
	switch s {
	case PortOpen:
		return "open"
	case PortClosed:
		return "closed"
	}
	return "unknown"
}

// Outcome 单个目标的最终结果
type Outcome uint8

const (
	OutcomeClosed Outcome = iota
	OutcomeOpen
	OutcomeOpenWithBanner
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOpen:
		return "open"
	case OutcomeOpenWithBanner:
		return "open+banner"
	}
	return "closed"
}

func DescribePort(port uint16) string { //返回端口的描述
	if s, ok := knownPorts[int(port)]; ok {
		return s
	}

	return ""
}

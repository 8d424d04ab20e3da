package uid

import (
	"net"
	"strconv"
	"sync"
	"time"
)

// 64 位结构：1 位符号位 + 41 位时间戳 + 10 位机器 ID + 12 位序列号
const (
	sequenceBits  = 12
	machineIDBits = 10

	maxSequence  = (1 << sequenceBits) - 1
	maxMachineID = (1 << machineIDBits) - 1

	machineIDShift = sequenceBits
	timestampShift = sequenceBits + machineIDBits
)

// 2020-01-01 00:00:00 UTC
var snowflakeEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

type SnowflakeOptions struct {
	// 机器 ID，小于 0 时从本机 IPv4 地址推导
	MachineID int64 `cfg:"machineID" def:"-1"`
}

type SnowflakeGenerator struct {
	mu        sync.Mutex
	machineID int64
	lastMilli int64
	sequence  int64
	now       func() int64
}

func NewSnowflakeGenerator(options *SnowflakeOptions) *SnowflakeGenerator {
	machineID := int64(-1)
	if options != nil {
		machineID = options.MachineID
	}
	if machineID < 0 {
		machineID = machineIDFromIP()
	}
	return &SnowflakeGenerator{
		machineID: machineID & maxMachineID,
		now:       func() int64 { return time.Now().UnixMilli() - snowflakeEpoch },
	}
}

func (g *SnowflakeGenerator) Generate() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	current := g.now()
	if current <= g.lastMilli {
		// 同一毫秒或时钟回拨时沿用上次的时间戳，序列号耗尽则借用下一毫秒
		current = g.lastMilli
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			current++
		}
	} else {
		g.sequence = 0
	}
	g.lastMilli = current

	return current<<timestampShift | g.machineID<<machineIDShift | g.sequence
}

func machineIDFromIP() int64 {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return 0
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipv4 := ipnet.IP.To4(); ipv4 != nil {
				return int64(ipv4[2])<<8 | int64(ipv4[3])
			}
		}
	}
	return 0
}

type decimalGenerator struct {
	gen IntGenerator
}

func (g *decimalGenerator) Generate() string {
	return strconv.FormatInt(g.gen.Generate(), 10)
}

// Package diagnostics provides the optional raw packet trace behind a
// daemon's --trace-iface flag, grounded on the
// teacher's ARP scanner: both open a live pcap handle, filter with BPF, and
// decode captured frames with gopacket/layers rather than parsing raw
// sockets by hand.
package diagnostics

import (
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/barriernet/barriernet/internal/logging"
)

var log = logging.L("diagnostics")

// PacketTracer captures TCP segments to or from a single port on one
// interface and logs a one-line summary of each, purely for --debug
// network troubleshooting. It never inspects payload bytes: the wire
// protocol itself is framed and logged at the transport layer already.
type PacketTracer struct {
	handle *pcap.Handle
	done   chan struct{}
}

// StartPacketTrace opens iface in promiscuous-free live mode and begins
// logging TCP segments on port until Stop is called. iface being empty
// skips tracing entirely, since most deployments don't need it.
func StartPacketTrace(iface string, port int) (*PacketTracer, error) {
	if iface == "" {
		return nil, nil
	}

	handle, err := pcap.OpenLive(iface, 262144, false, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: open %s: %w", iface, err)
	}
	if err := handle.SetBPFFilter(fmt.Sprintf("tcp port %d", port)); err != nil {
		handle.Close()
		return nil, fmt.Errorf("diagnostics: set filter: %w", err)
	}

	t := &PacketTracer{handle: handle, done: make(chan struct{})}
	go t.run()
	return t, nil
}

func (t *PacketTracer) run() {
	src := gopacket.NewPacketSource(t.handle, t.handle.LinkType())
	for {
		select {
		case <-t.done:
			return
		case packet, ok := <-src.Packets():
			if !ok {
				return
			}
			t.logPacket(packet)
		}
	}
}

func (t *PacketTracer) logPacket(packet gopacket.Packet) {
	ipLayer := packet.Layer(layers.LayerTypeIPv4)
	tcpLayer := packet.Layer(layers.LayerTypeTCP)
	if ipLayer == nil || tcpLayer == nil {
		return
	}
	ip, _ := ipLayer.(*layers.IPv4)
	tcp, _ := tcpLayer.(*layers.TCP)
	log.Debug("tcp segment",
		"time", time.Now().Format(time.RFC3339Nano),
		"src", fmt.Sprintf("%s:%d", ip.SrcIP, tcp.SrcPort),
		"dst", fmt.Sprintf("%s:%d", ip.DstIP, tcp.DstPort),
		"len", len(tcp.Payload),
		"syn", tcp.SYN, "fin", tcp.FIN, "rst", tcp.RST,
	)
}

// Stop closes the capture handle, ending the trace goroutine.
func (t *PacketTracer) Stop() {
	if t == nil {
		return
	}
	close(t.done)
	t.handle.Close()
}

// Package discovery finds cluster peers on the local network via mDNS.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
)

const (
	ServiceName = "_ledgersync._tcp"
	domain      = "local."

	txtNode        = "node="
	txtFingerprint = "fp="
)

// MDNS announces the local node and reports peers of the same cluster.
type MDNS struct {
	nodeID      string
	fingerprint string
	server      *zeroconf.Server
	cancel      context.CancelFunc
	logger      *slog.Logger
	wg          sync.WaitGroup
}

// New registers nodeID on the port of listenAddr and starts browsing.
// fingerprint identifies the cluster: entries with another fingerprint are
// ignored. onPeer is called with host:port for each discovered address and
// may be called again for the same peer.
func New(nodeID, listenAddr, fingerprint string, onPeer func(addr string), logger *slog.Logger) (*MDNS, error) {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return nil, fmt.Errorf("discovery: invalid listen addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("discovery: invalid port: %w", err)
	}

	server, err := zeroconf.Register(nodeID, ServiceName, domain, port, txtRecords(nodeID, fingerprint), nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: register: %w", err)
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		server.Shutdown()
		return nil, fmt.Errorf("discovery: resolver: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	entries := make(chan *zeroconf.ServiceEntry)
	m := &MDNS{
		nodeID:      nodeID,
		fingerprint: fingerprint,
		server:      server,
		cancel:      cancel,
		logger:      logger,
	}

	m.wg.Add(1)
	go m.browseLoop(entries, onPeer)

	if err := resolver.Browse(ctx, ServiceName, domain, entries); err != nil {
		cancel()
		server.Shutdown()
		m.wg.Wait()
		return nil, fmt.Errorf("discovery: browse: %w", err)
	}

	logger.Info("mDNS discovery started", "service", ServiceName, "port", port)
	return m, nil
}

func (m *MDNS) browseLoop(entries <-chan *zeroconf.ServiceEntry, onPeer func(string)) {
	defer m.wg.Done()
	for entry := range entries {
		addrs := peerAddrs(entry, m.nodeID, m.fingerprint)
		if len(addrs) == 0 {
			continue
		}
		m.logger.Debug("Peer discovered", "node_id", txtValue(entry.Text, txtNode), "addrs", addrs)
		for _, addr := range addrs {
			onPeer(addr)
		}
	}
}

// Stop shuts down the discovery service.
func (m *MDNS) Stop() {
	if m == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.server.Shutdown()
}

func txtRecords(nodeID, fingerprint string) []string {
	txt := []string{txtNode + nodeID}
	if fingerprint != "" {
		txt = append(txt, txtFingerprint+fingerprint)
	}
	return txt
}

// peerAddrs возвращает адреса записи, если это чужой узел того же кластера
func peerAddrs(entry *zeroconf.ServiceEntry, self, fingerprint string) []string {
	if entry == nil || entry.Port <= 0 {
		return nil
	}
	node := txtValue(entry.Text, txtNode)
	if node == "" || node == self {
		return nil
	}
	if txtValue(entry.Text, txtFingerprint) != fingerprint {
		return nil
	}

	port := strconv.Itoa(entry.Port)
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, net.JoinHostPort(ip.String(), port))
	}
	for _, ip := range entry.AddrIPv6 {
		// link-local без zone не годится для dial
		if ip.IsLinkLocalUnicast() {
			continue
		}
		addrs = append(addrs, net.JoinHostPort(ip.String(), port))
	}
	return addrs
}

func txtValue(text []string, prefix string) string {
	for _, t := range text {
		if v, ok := strings.CutPrefix(t, prefix); ok {
			return v
		}
	}
	return ""
}

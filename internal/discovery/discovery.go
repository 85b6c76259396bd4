package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPort = 9999
	ProbeMsg    = "DISCOVER_HM_COLLAGE"
)

// Listen answers discovery probes on the given UDP port with announce,
// the server's base URL, until ctx is done.
func Listen(ctx context.Context, port int, announce string) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port, IP: net.IPv4zero})
	if err != nil {
		return fmt.Errorf("bind discovery port %d: %w", port, err)
	}
	slog.Info("discovery responder listening", "port", port, "announce", announce)
	return Serve(ctx, conn, announce)
}

// Serve answers probes on conn and closes it when ctx is done.
func Serve(ctx context.Context, conn net.PacketConn, announce string) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 1024)
	for {
		n, remote, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			slog.Warn("discovery read failed", "err", err)
			continue
		}
		if string(buf[:n]) != ProbeMsg {
			continue
		}
		slog.Debug("discovery probe", "from", remote.String())
		if _, err := conn.WriteTo([]byte(announce), remote); err != nil {
			slog.Warn("discovery reply failed", "to", remote.String(), "err", err)
		}
	}
}

// Find broadcasts a probe on port, also trying loopback, and returns the
// first announced base URL.
func Find(ctx context.Context, port int, timeout time.Duration) (string, error) {
	p := strconv.Itoa(port)
	return FindAt(ctx, []string{"255.255.255.255:" + p, "127.0.0.1:" + p}, timeout)
}

// FindAt sends a probe to every target and waits for the first reply.
func FindAt(ctx context.Context, targets []string, timeout time.Duration) (string, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return "", fmt.Errorf("listen for discovery reply: %w", err)
	}
	defer conn.Close()

	sent := 0
	for _, target := range targets {
		addr, err := net.ResolveUDPAddr("udp4", target)
		if err != nil {
			return "", err
		}
		if _, err := conn.WriteTo([]byte(ProbeMsg), addr); err != nil {
			slog.Debug("discovery probe failed", "target", target, "err", err)
			continue
		}
		sent++
	}
	if sent == 0 {
		return "", errors.New("no discovery probe could be sent")
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return "", err
	}

	buf := make([]byte, 1024)
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		return "", fmt.Errorf("no server answered: %w", err)
	}
	return strings.TrimSpace(string(buf[:n])), nil
}

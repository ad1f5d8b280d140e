// Package clamav 实现 clamd 的 INSTREAM 扫描协议
package clamav

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

const chunkSize = 64 * 1024

// ErrUnexpectedResponse clamd 返回了无法识别的结果
var ErrUnexpectedResponse = errors.New("clamav: unexpected response")

// Result 一次扫描的结果
type Result struct {
	Clean     bool
	Signature string // 仅在检出病毒时非空
	Raw       string
}

// Scanner 对数据流进行病毒扫描
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) (Result, error)
}

type Client struct {
	addr    string
	timeout time.Duration
	dialer  net.Dialer
}

var _ Scanner = (*Client)(nil)

func NewClient(host string, port int, timeout time.Duration) *Client {
	return &Client{
		addr:    net.JoinHostPort(host, fmt.Sprint(port)),
		timeout: timeout,
	}
}

// Scan 通过 zINSTREAM 把数据按块发送给 clamd
// 每块前缀 4 字节大端长度，以 4 个零字节结束
func (c *Client) Scan(ctx context.Context, r io.Reader) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return Result{}, fmt.Errorf("clamav: dial %s: %w", c.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// ctx 取消时打断阻塞中的读写
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := conn.Write([]byte("zINSTREAM\x00")); err != nil {
		return Result{}, fmt.Errorf("clamav: write command: %w", err)
	}

	buf := make([]byte, chunkSize)
	header := make([]byte, 4)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			binary.BigEndian.PutUint32(header, uint32(n))
			if _, err := conn.Write(header); err != nil {
				return Result{}, fmt.Errorf("clamav: write chunk size: %w", err)
			}
			if _, err := conn.Write(buf[:n]); err != nil {
				return Result{}, fmt.Errorf("clamav: write chunk: %w", err)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return Result{}, fmt.Errorf("clamav: read source: %w", readErr)
		}
	}
	if _, err := conn.Write([]byte{0, 0, 0, 0}); err != nil {
		return Result{}, fmt.Errorf("clamav: write terminator: %w", err)
	}

	raw, err := io.ReadAll(conn)
	if err != nil && len(raw) == 0 {
		return Result{}, fmt.Errorf("clamav: read response: %w", err)
	}
	return ParseResponse(string(raw))
}

// ParseResponse 解析 clamd 的应答，例如
// "stream: OK" 或 "stream: Eicar-Test-Signature FOUND"
func ParseResponse(raw string) (Result, error) {
	text := strings.TrimSpace(strings.TrimRight(raw, "\x00"))

	if idx := strings.Index(text, "FOUND"); idx >= 0 {
		head := text[:idx]
		if colon := strings.LastIndex(head, ":"); colon >= 0 {
			head = head[colon+1:]
		}
		return Result{Clean: false, Signature: strings.TrimSpace(head), Raw: text}, nil
	}
	if strings.Contains(text, "OK") {
		return Result{Clean: true, Raw: text}, nil
	}
	return Result{Raw: text}, fmt.Errorf("%w: %q", ErrUnexpectedResponse, text)
}

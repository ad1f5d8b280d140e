package clamav

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		clean     bool
		signature string
		wantErr   bool
	}{
		{"clean", "stream: OK\x00", true, "", false},
		{"infected", "stream: Eicar-Test-Signature FOUND\x00", false, "Eicar-Test-Signature", false},
		{"infected without prefix", "Win.Trojan FOUND", false, "Win.Trojan", false},
		{"error", "INSTREAM size limit exceeded. ERROR", false, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseResponse(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnexpectedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.clean, res.Clean)
			assert.Equal(t, tt.signature, res.Signature)
		})
	}
}

// fakeClamd 读取一次 INSTREAM 请求并返回 reply
func fakeClamd(t *testing.T, reply string) (host string, port int, received <-chan []byte) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ch := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		cmd := make([]byte, len("zINSTREAM\x00"))
		if _, err := io.ReadFull(conn, cmd); err != nil || string(cmd) != "zINSTREAM\x00" {
			return
		}
		var payload bytes.Buffer
		header := make([]byte, 4)
		for {
			if _, err := io.ReadFull(conn, header); err != nil {
				return
			}
			size := binary.BigEndian.Uint32(header)
			if size == 0 {
				break
			}
			if _, err := io.CopyN(&payload, conn, int64(size)); err != nil {
				return
			}
		}
		ch <- payload.Bytes()
		_, _ = conn.Write([]byte(reply + "\x00"))
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port, ch
}

func TestClientScan_Clean(t *testing.T) {
	host, port, received := fakeClamd(t, "stream: OK")
	client := NewClient(host, port, 5*time.Second)

	data := strings.Repeat("x", chunkSize+10)
	res, err := client.Scan(context.Background(), strings.NewReader(data))
	require.NoError(t, err)
	assert.True(t, res.Clean)

	select {
	case got := <-received:
		assert.Equal(t, data, string(got))
	case <-time.After(time.Second):
		t.Fatal("server did not receive payload")
	}
}

func TestClientScan_Infected(t *testing.T) {
	host, port, _ := fakeClamd(t, "stream: Eicar-Test-Signature FOUND")
	client := NewClient(host, port, 5*time.Second)

	res, err := client.Scan(context.Background(), strings.NewReader("X5O!P%@AP"))
	require.NoError(t, err)
	assert.False(t, res.Clean)
	assert.Equal(t, "Eicar-Test-Signature", res.Signature)
}

func TestClientScan_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	client := NewClient("127.0.0.1", port, time.Second)
	_, err = client.Scan(context.Background(), strings.NewReader("data"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:"+strconv.Itoa(port))
}

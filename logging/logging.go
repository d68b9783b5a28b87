// Package logging defines the structured logging keys used by the reliable
// broadcast engine and its transport, and helpers returning slog attributes
// with the correct types for them.
package logging

import (
	"fmt"
	"log/slog"
	"time"
)

// the log entry used in slog with correct types and json mapping
type LogEntry struct {
	Time        time.Time     `json:"time"`
	Level       string        `json:"level"`
	Msg         string        `json:"msg"`
	BroadcastID uint64        `json:"broadcastID"`
	Err         string        `json:"err"`
	Peer        string        `json:"peer"`
	Attempt     int           `json:"attempt"`
	Delay       time.Duration `json:"delay"`
	Peers       int           `json:"peers"`
	Method      string        `json:"method"`
	NodeID      uint64        `json:"nodeID"`
	NodeAddr    string        `json:"nodeAddr"`
	From        uint64        `json:"from"`
	Elapsed     time.Duration `json:"elapsed"`
}

// enum: used to get type safety on fields when logging
const (
	BroadcastIDKey string = "broadcastID"
	ErrKey         string = "err"
	PeerKey        string = "peer"
	AttemptKey     string = "attempt"
	DelayKey       string = "delay"
	PeersKey       string = "peers"
	MethodKey      string = "method"
	NodeIDKey      string = "nodeID"
	NodeAddrKey    string = "nodeAddr"
	FromKey        string = "from"
	ElapsedKey     string = "elapsed"
)

func BroadcastID(id uint64) slog.Attr {
	return slog.Uint64(BroadcastIDKey, id)
}

func Err(err error) slog.Attr {
	return slog.Any(ErrKey, err)
}

// Peer formats any peer identifier with %v.
func Peer(peer any) slog.Attr {
	return slog.String(PeerKey, fmt.Sprint(peer))
}

func Attempt(n int) slog.Attr {
	return slog.Int(AttemptKey, n)
}

func Delay(d time.Duration) slog.Attr {
	return slog.Duration(DelayKey, d)
}

func Peers(n int) slog.Attr {
	return slog.Int(PeersKey, n)
}

func Method(m string) slog.Attr {
	return slog.String(MethodKey, m)
}

func NodeID(id uint32) slog.Attr {
	return slog.Uint64(NodeIDKey, uint64(id))
}

func NodeAddr(addr string) slog.Attr {
	return slog.String(NodeAddrKey, addr)
}

func From(id uint32) slog.Attr {
	return slog.Uint64(FromKey, uint64(id))
}

func Elapsed(d time.Duration) slog.Attr {
	return slog.Duration(ElapsedKey, d)
}

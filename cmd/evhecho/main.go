// Command evhecho runs a minimal TCP echo server on top of package evh,
// demonstrating spec scenario 1: a single worker accepts connections and
// echoes back whatever it reads.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/go-evhcore/corelog"
	"github.com/joeycumines/go-evhcore/evh"
)

func main() {
	port := flag.Int("port", 0, "port to listen on (0 picks an ephemeral port)")
	debug := flag.Bool("debug", false, "enable verbose worker logging")
	flag.Parse()

	corelog.SetDefault(corelog.NewZerologLogger(os.Stderr, corelog.LevelInfo))

	if err := run(*port, *debug); err != nil {
		corelog.Default().Log(corelog.LevelError, "evhecho: fatal", corelog.F("err", err.Error()))
		os.Exit(1)
	}
}

func run(port int, debug bool) error {
	h, err := evh.NewHandler(evh.Config{
		Threads:                 1,
		TimeoutMs:               250,
		ReadSlabSize:            512,
		ReadSlabCount:           16,
		HousekeepingFrequencyMs: 1000,
		Debug:                   debug,
	})
	if err != nil {
		return fmt.Errorf("construct handler: %w", err)
	}

	h.SetOnRead(func(conn *evh.Connection, ctx *evh.UserContext) {
		buf := make([]byte, 4096)
		for {
			n, err := ctx.CloneNextChunk(buf)
			if err != nil {
				corelog.Default().Log(corelog.LevelWarn, "evhecho: read chain walk failed", corelog.F("err", err.Error()))
				break
			}
			if n == 0 {
				break
			}
			if err := ctx.WriteHandle().Write(buf[:n]); err != nil {
				corelog.Default().Log(corelog.LevelWarn, "evhecho: echo write failed", corelog.F("err", err.Error()))
			}
		}
		if err := ctx.ClearAll(); err != nil {
			corelog.Default().Log(corelog.LevelWarn, "evhecho: clear read chain failed", corelog.F("err", err.Error()))
		}
	})
	h.SetOnAccept(func(conn *evh.Connection, ctx *evh.UserContext) {
		corelog.Default().Log(corelog.LevelInfo, "evhecho: accepted connection", corelog.F("conn_id", conn.ID.String()))
	})
	h.SetOnClose(func(conn *evh.Connection, ctx *evh.UserContext) {
		corelog.Default().Log(corelog.LevelInfo, "evhecho: closed connection", corelog.F("conn_id", conn.ID.String()))
	})

	if err := h.Start(); err != nil {
		return fmt.Errorf("start handler: %w", err)
	}
	defer h.Stop()

	ln, err := evh.ListenTCP([4]byte{127, 0, 0, 1}, port, 64)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if _, err := h.AddServerConnection(ln); err != nil {
		return fmt.Errorf("register listener: %w", err)
	}

	boundPort, err := evh.LocalPort(ln)
	if err != nil {
		return fmt.Errorf("resolve bound port: %w", err)
	}
	corelog.Default().Log(corelog.LevelInfo, "evhecho: listening", corelog.F("port", boundPort))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}

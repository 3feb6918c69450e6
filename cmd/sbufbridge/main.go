package main

//go-build: CGO_ENABLED=0

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/streambuf/pkg/env"
	"github.com/robotalks/streambuf/pkg/kernel"
	"github.com/robotalks/streambuf/pkg/link"
	"github.com/robotalks/streambuf/pkg/link/mqtt"
	"github.com/robotalks/streambuf/pkg/link/serial"
	"github.com/robotalks/streambuf/pkg/link/websocket"
	"github.com/robotalks/streambuf/pkg/streambuf"
)

var (
	peerNode      string
	wsURL         string
	listenAddr    string
	serialDev     string
	statsInterval = mqtt.DefaultStatsInterval
)

func init() {
	env.SetupFlags()
	flag.StringVar(&peerNode, "peer", peerNode, "Peer node ID to link with over MQTT")
	flag.StringVar(&wsURL, "ws", wsURL, "Websocket URL of the peer to dial")
	flag.StringVar(&listenAddr, "listen", listenAddr, "Serve the peer over websocket on this address")
	flag.StringVar(&serialDev, "serial", serialDev, "Serial device linked to the peer")
	flag.DurationVar(&statsInterval, "stats", statsInterval, "Stats publishing interval")
}

func produce(tx *streambuf.Buffer) kernel.RunFunc {
	return func(ctx context.Context) error {
		w := tx.Conn(ctx, kernel.MaxDelay)
		return kernel.RunWithContextCancel(ctx, func() { os.Stdin.Close() }, func() error {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				if _, err := w.Write(scanner.Bytes()); err != nil {
					if !errors.Is(err, streambuf.ErrMessageTooLarge) {
						return err
					}
					glog.Warningf("line of %d bytes dropped: too large", len(scanner.Bytes()))
				}
			}
			return scanner.Err()
		})
	}
}

func consume(rx *streambuf.Buffer) kernel.RunFunc {
	return func(ctx context.Context) error {
		r := rx.Conn(ctx, kernel.MaxDelay)
		buf := make([]byte, rx.Capacity())
		for {
			n, err := r.Read(buf)
			if err == io.EOF {
				return ctx.Err()
			}
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", buf[:n])
		}
	}
}

// serveWebsocket runs the bridge for one peer connection at a time.
func serveWebsocket(bridge *link.Bridge) kernel.RunFunc {
	return func(ctx context.Context) error {
		var busy atomic.Bool
		srv := &http.Server{
			Addr: listenAddr,
			Handler: websocket.Handler(func(rw *websocket.ReadWriter) {
				if !busy.CompareAndSwap(false, true) {
					glog.Warning("peer already connected, rejected")
					return
				}
				defer busy.Store(false)
				glog.Info("peer connected")
				bridge.ReadWriter = rw
				if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
					glog.Warningf("peer disconnected: %v", err)
				}
			}),
		}
		return kernel.RunWithContextCancel(ctx, func() { srv.Close() }, srv.ListenAndServe)
	}
}

func main() {
	flag.Parse()

	conf := env.Default()
	k := conf.MustNewKernel()
	bc, err := conf.BufferConfig(k)
	if err != nil {
		log.Fatalln(err)
	}

	bridge := link.NewBridge(conf.NodeID, nil)
	bridge.Kernel = k
	txConf := *bc
	txConf.OnSendCompleted = bridge
	if bridge.Tx, err = txConf.New(); err != nil {
		log.Fatalln(err)
	}
	if bridge.Rx, err = bc.New(); err != nil {
		log.Fatalln(err)
	}
	bridge.Tx.SetNumber(1)
	bridge.Rx.SetNumber(2)

	runner := k.NewRunner().HandleSignals()
	runner.Go(k,
		kernel.NamedRun("stdin", produce(bridge.Tx)),
		kernel.NamedRun("stdout", consume(bridge.Rx)))

	switch {
	case listenAddr != "":
		runner.Go(kernel.NamedRun("ws.server", serveWebsocket(bridge)))
	case wsURL != "":
		rw, err := websocket.Dial(wsURL, "http://"+conf.NodeID+"/")
		if err != nil {
			log.Fatalln(err)
		}
		bridge.ReadWriter = rw
		runner.Go(kernel.NamedRun("bridge", bridge))
	case serialDev != "":
		dev, err := os.OpenFile(serialDev, os.O_RDWR, 0)
		if err != nil {
			log.Fatalln(err)
		}
		bridge.ReadWriter = serial.New(dev)
		runner.Go(kernel.NamedRun("bridge", bridge))
	case peerNode != "":
		q, err := mqtt.NewQueueFromURL(conf.MQTTBrokerURL)
		if err != nil {
			log.Fatalln(err)
		}
		if err = q.ConnectWait(5 * time.Second); err != nil {
			log.Fatalln(err)
		}
		defer q.Close()
		rw := mqtt.NewPacketReadWriter(q).ForLink(conf.NodeID, peerNode)
		bridge.ReadWriter = rw
		publisher := mqtt.NewStatsPublisher(q, conf.NodeID).
			Add("tx", bridge.Tx, bridge).
			Add("rx", bridge.Rx, nil)
		publisher.Heap = k.Heap()
		publisher.Interval = statsInterval
		runner.Go(
			kernel.NamedRun("mqtt", rw),
			kernel.NamedRun("bridge", bridge),
			kernel.NamedRun("stats", publisher))
	default:
		log.Fatalln("one of -listen, -ws, -serial or -peer is required")
	}

	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}

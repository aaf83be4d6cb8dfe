// Command mcldump dumps live multicast traffic declared in a network
// configuration file to a rotating log directory, one log series per
// message type (spec.md §6, grounded in network_dump.py).
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"mcl/config"
	"mcl/connection"
	"mcl/internal/clog"
	"mcl/mlog"
	"mcl/queue"
	"mcl/transport"
)

func stringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

type dumper struct {
	listener *queue.QueuedListener
	writer   *mlog.LogWriter
}

func main() {
	network := flag.String("network", "", "path to network configuration file")
	logDir := flag.String("log-dir", "", "directory to write rotating log files into")
	include := flag.String("include", "", "comma separated list of message names to include")
	exclude := flag.String("exclude", "", "comma separated list of message names to exclude")
	maxEntries := flag.Int("max-entries", 0, "rotate each log series after this many records (0 disables)")
	maxTimeSeconds := flag.Int("max-time", 0, "rotate each log series after this many seconds (0 disables)")
	flag.Parse()

	if *network == "" || *logDir == "" {
		clog.Fatalf("--network and --log-dir are required")
	}

	conns, err := config.LoadNetworkConfig(*network, stringList(*include), stringList(*exclude))
	if err != nil {
		clog.Fatalf("loading network configuration: %v", err)
	}
	if err := os.MkdirAll(*logDir, 0o755); err != nil {
		clog.Fatalf("creating log directory: %v", err)
	}

	var dumpers []*dumper
	for _, conn := range conns {
		d, err := startDumper(conn, *logDir, *maxEntries, time.Duration(*maxTimeSeconds)*time.Second)
		if err != nil {
			clog.WarnErr(fmt.Sprintf("skipping connection for %q", conn.Message()), err)
			continue
		}
		dumpers = append(dumpers, d)
	}
	if len(dumpers) == 0 {
		clog.Fatalf("no connections could be dumped")
	}
	clog.Infof("dumping %d connection(s) to %s", len(dumpers), *logDir)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	clog.Infof("shutting down")
	for _, d := range dumpers {
		if err := d.listener.Close(); err != nil {
			clog.WarnErr("closing listener", err)
		}
		if err := d.writer.Close(); err != nil {
			clog.WarnErr("closing writer", err)
		}
	}
}

func startDumper(conn *connection.Connection, logDir string, maxEntries int, maxTime time.Duration) (*dumper, error) {
	name := conn.Message()
	if name == "" {
		name = "raw"
	}
	raw, err := transport.NewRawListener(conn, conn.Topics(), nil)
	if err != nil {
		return nil, err
	}

	prefix := filepath.Join(logDir, name)
	writer, err := mlog.NewLogWriter(prefix, conn.Message(), "1.0", nil, maxEntries, maxTime)
	if err != nil {
		raw.Close()
		return nil, err
	}

	ql := queue.NewQueuedListener(raw, 0)
	ql.Subscribe(func(rec queue.Record) {
		if err := writer.Write(rec.Topic, rec.Payload, time.Now()); err != nil {
			clog.WarnErr(fmt.Sprintf("writing record for %q", name), err)
		}
	})
	if err := ql.Open(); err != nil {
		writer.Close()
		raw.Close()
		return nil, err
	}
	return &dumper{listener: ql, writer: writer}, nil
}

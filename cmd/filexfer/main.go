package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/samsamfire/filexfer/pkg/client"
	"github.com/samsamfire/filexfer/pkg/config"
	"github.com/samsamfire/filexfer/pkg/server"
)

func main() {
	log.SetLevel(log.InfoLevel)

	runServer := flag.Bool("s", false, "run as server")
	clientPath := flag.String("c", "", "path of the file to send (runs as client)")
	port := flag.Int("p", config.DefaultPort, "port (default 7071)")
	host := flag.String("h", "127.0.0.1", "server host to connect to (client mode only)")
	rootDir := flag.String("d", config.DefaultRootDir, "directory to store received files in (server mode only)")
	configPath := flag.String("config", "", "path to an ini config file overriding [server]/[limits] defaults (server mode only)")
	flag.Parse()

	if *runServer && *clientPath != "" {
		fmt.Println("-s and -c are mutually exclusive")
		os.Exit(1)
	}

	switch {
	case *runServer:
		os.Exit(runAsServer(*port, *rootDir, *configPath))
	case *clientPath != "":
		os.Exit(runAsClient(*clientPath, *host, *port))
	default:
		fmt.Println("one of -s or -c is required")
		os.Exit(1)
	}
}

// runAsServer builds the server config and starts serving. With a
// configPath, the file's [server]/[limits] values over the built-in
// defaults decide everything and port/rootDir are ignored; without one,
// port/rootDir replace the defaults.
func runAsServer(port int, rootDir string, configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("failed to load config %q: %v\n", configPath, err)
		return 1
	}
	if configPath == "" {
		cfg.Port = port
		cfg.RootDir = rootDir
	}

	engine := server.New(cfg, runtime.GOMAXPROCS(0))
	if err := engine.Listen(); err != nil {
		fmt.Printf("failed to listen on port %d: %v\n", cfg.Port, err)
		return 1
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGABRT)
	signal.Ignore(syscall.SIGPIPE)
	go func() {
		<-signals
		log.Info("shutdown signal received")
		engine.Shutdown()
	}()

	if err := engine.Serve(); err != nil {
		fmt.Printf("server exited with error: %v\n", err)
		return 1
	}
	return 0
}

func runAsClient(path string, host string, port int) int {
	if _, err := os.Stat(path); err != nil {
		fmt.Printf("file does not exist: %v\n", err)
		return 1
	}

	addr, err := resolveIPv4(host)
	if err != nil {
		fmt.Printf("could not resolve host %q: %v\n", host, err)
		return 1
	}

	c := client.New(client.DefaultRetryBudget)
	if err := c.Send(addr, port, path); err != nil {
		fmt.Printf("transfer failed: %v\n", err)
		return 1
	}
	return 0
}

func resolveIPv4(host string) ([4]byte, error) {
	var addr [4]byte
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil {
			return addr, err
		}
		for _, candidate := range ips {
			if v4 := candidate.To4(); v4 != nil {
				ip = candidate
				break
			}
		}
		if ip == nil {
			return addr, fmt.Errorf("no IPv4 address found for %q", host)
		}
	}
	v4 := ip.To4()
	if v4 == nil {
		return addr, fmt.Errorf("%q is not an IPv4 address", host)
	}
	copy(addr[:], v4)
	return addr, nil
}

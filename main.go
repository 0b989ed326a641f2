package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/facebookgo/httpdown"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Prepare the stoppable HTTP server
	server := &http.Server{}
	hd := &httpdown.HTTP{
		StopTimeout: 10 * time.Second,
		KillTimeout: 1 * time.Second,
	}

	addr := flag.String("addr", defaultAddr, "http service address")
	flag.DurationVar(&hd.StopTimeout, "stop-timeout", hd.StopTimeout, "stop timeout")
	flag.DurationVar(&hd.KillTimeout, "kill-timeout", hd.KillTimeout, "kill timeout")
	origin := flag.String("origin", "", "websocket server checks Origin headers against this scheme://host[:port]")
	static := flag.String("static", defaultStaticDir, "directory served under /static/")
	logLevel := flag.String("log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	configPath := flag.String("config", "", "YAML config file; flags given explicitly override it")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("could not load config")
	}
	levelFromFlag := false
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "origin":
			cfg.Origin = *origin
		case "static":
			cfg.StaticDir = *static
		case "log-level":
			cfg.LogLevel = *logLevel
			levelFromFlag = true
		}
	})
	if err := cfg.validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	cfg.applyLogLevel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *configPath != "" {
		go func() {
			// Only the log level is picked up without a restart.
			err := watchConfig(ctx, *configPath, func(next *config) {
				if !levelFromFlag {
					next.applyLogLevel()
				}
			})
			if err != nil {
				log.WithError(err).Error("config watch stopped")
			}
		}()
	}

	startMetrics()
	defer finalMetrics()

	// Start the server
	server.Addr = cfg.Addr
	server.Handler = newHandler(cfg)
	log.WithField("addr", cfg.Addr).Info("tablehub listening")
	if err := httpdown.ListenAndServe(server, hd); err != nil {
		log.WithError(err).Error("server stopped")
	}
}

// Copyright 2018-2023 CERN
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/cs3org/ooxmld/cmd/ooxmld/config"
	intlog "github.com/cs3org/ooxmld/internal/http/interceptors/log"
	"github.com/cs3org/ooxmld/internal/http/interceptors/reqid"
	"github.com/cs3org/ooxmld/pkg/logger"
	"github.com/cs3org/ooxmld/pkg/rhttp"
	"github.com/cs3org/ooxmld/pkg/rhttp/global"
	"github.com/cs3org/ooxmld/pkg/version"
)

var (
	versionFlag = flag.Bool("version", false, "show version and exit")
	testFlag    = flag.Bool("t", false, "test configuration and exit")
	configFlag  = flag.String("c", "/etc/ooxmld/ooxmld.toml", "set configuration file")
)

type logConf struct {
	Output string `mapstructure:"output"`
	Mode   string `mapstructure:"mode"`
	Level  string `mapstructure:"level"`
}

type httpConf struct {
	Address            string                            `mapstructure:"address"`
	ReadTimeoutSeconds int                               `mapstructure:"read_timeout_seconds"`
	Services           map[string]map[string]interface{} `mapstructure:"services"`
}

func main() {
	flag.Parse()

	handleVersionFlag()

	config.SetFile(*configFlag)
	if err := config.Read(); err != nil {
		fmt.Fprintf(os.Stderr, "error reading config: %v\n", err)
		os.Exit(1)
	}

	lc := &logConf{}
	if err := mapstructure.Decode(config.Get("log"), lc); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing log config: %v\n", err)
		os.Exit(1)
	}
	hc := &httpConf{Address: "localhost:9600"}
	if err := mapstructure.Decode(config.Get("http"), hc); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing http config: %v\n", err)
		os.Exit(1)
	}
	if hc.ReadTimeoutSeconds == 0 {
		hc.ReadTimeoutSeconds = 300
	}

	handleTestFlag()

	log, err := newLogger(lc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %v\n", err)
		os.Exit(1)
	}

	svcs, err := rhttp.InitServices(hc.Services, log)
	if err != nil {
		log.Error().Err(err).Msg("error initializing http services")
		os.Exit(1)
	}

	// the list is applied innermost first, so reqid ends up outermost
	// and the log interceptor sees the request-tagged logger
	middlewares := []global.Middleware{
		intlog.New(),
		reqid.New(*log),
	}

	server := rhttp.New(
		rhttp.WithServices(svcs),
		rhttp.WithMiddlewares(middlewares),
		rhttp.WithLogger(log.With().Str("pkg", "rhttp").Logger()),
		rhttp.WithReadTimeout(time.Duration(hc.ReadTimeoutSeconds)*time.Second),
	)

	ln, err := net.Listen("tcp", hc.Address)
	if err != nil {
		log.Error().Err(err).Msgf("error listening on %s", hc.Address)
		os.Exit(1)
	}

	go func() {
		if err := server.Start(ln); err != nil {
			log.Error().Err(err).Msg("error serving http")
			os.Exit(1)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	log.Info().Msgf("signal %q received, shutting down", sig)

	if err := server.GracefulStop(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("error during shutdown")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

func newLogger(conf *logConf) (*zerolog.Logger, error) {
	if conf.Level == "" {
		conf.Level = zerolog.InfoLevel.String()
	}

	var opts []logger.Option
	opts = append(opts, logger.WithLevel(conf.Level))

	w, err := getWriter(conf.Output)
	if err != nil {
		return nil, err
	}
	opts = append(opts, logger.WithWriter(w, logger.Mode(conf.Mode)))

	l := logger.New(opts...)
	sub := l.With().Int("pid", os.Getpid()).Logger()
	return &sub, nil
}

func getWriter(out string) (io.Writer, error) {
	if out == "stderr" || out == "" {
		return os.Stderr, nil
	}
	if out == "stdout" {
		return os.Stdout, nil
	}
	fd, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "error creating log file: "+out)
	}
	return fd, nil
}

func handleVersionFlag() {
	if *versionFlag {
		fmt.Fprintf(os.Stderr, "version=%s commit=%s build_date=%s\n",
			version.Version, version.GitCommit, version.BuildDate)
		os.Exit(1)
	}
}

func handleTestFlag() {
	if *testFlag {
		fmt.Fprintln(os.Stderr, "configuration ok")
		os.Exit(0)
	}
}

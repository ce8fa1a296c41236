/*
Package metrics contains auxiliary HTTP services of the node exposing
Prometheus metrics and pprof profiles.
*/
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/nspcc-dev/eventbridge/pkg/config"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Service serves metrics.
type Service struct {
	http        []*http.Server
	config      config.BasicService
	log         *zap.Logger
	serviceType string
	started     atomic.Bool
}

// NewService configures a metrics service with the given handler on all
// configured addresses.
func NewService(name string, handler http.Handler, cfg config.BasicService, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	addrs := cfg.GetAddresses()
	srvs := make([]*http.Server, len(addrs))
	for i, addr := range addrs {
		srvs[i] = &http.Server{
			Addr:    addr,
			Handler: handler,
		}
	}
	return &Service{
		http:        srvs,
		config:      cfg,
		serviceType: name,
		log:         log.With(zap.String("service", name)),
	}
}

// Name returns the service name.
func (ms *Service) Name() string {
	return ms.serviceType
}

// Addresses returns the service endpoints, they're the actual ones after
// Start.
func (ms *Service) Addresses() []string {
	res := make([]string, len(ms.http))
	for i, srv := range ms.http {
		res[i] = srv.Addr
	}
	return res
}

// Start runs http service with the exposed endpoint on the configured port.
// Listener errors are reported to errChan if it's not nil.
func (ms *Service) Start(errChan chan<- error) {
	if !ms.config.Enabled {
		ms.log.Info("service hasn't started since it's disabled")
		return
	}
	if !ms.started.CompareAndSwap(false, true) {
		ms.log.Info("service already started")
		return
	}
	for _, srv := range ms.http {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			ms.report(errChan, fmt.Errorf("%s service can't listen on %s: %w", ms.serviceType, srv.Addr, err))
			return
		}
		srv.Addr = ln.Addr().String()
		ms.log.Info("service is running", zap.String("endpoint", srv.Addr))
		go func(srv *http.Server) {
			err := srv.Serve(ln)
			if !errors.Is(err, http.ErrServerClosed) {
				ms.log.Error("service failed", zap.String("endpoint", srv.Addr), zap.Error(err))
				ms.report(errChan, err)
			}
		}(srv)
	}
}

func (ms *Service) report(errChan chan<- error, err error) {
	if errChan == nil {
		ms.log.Warn("service couldn't start", zap.Error(err))
		return
	}
	errChan <- err
}

// ShutDown stops the service.
func (ms *Service) ShutDown() {
	if !ms.started.CompareAndSwap(true, false) {
		return
	}
	for _, srv := range ms.http {
		ms.log.Info("shutting down service", zap.String("endpoint", srv.Addr))
		err := srv.Shutdown(context.Background())
		if err != nil {
			ms.log.Error("can't shut service down", zap.Error(err))
		}
	}
}

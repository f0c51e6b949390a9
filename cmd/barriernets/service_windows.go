//go:build windows

package main

import (
	"sync"

	"golang.org/x/sys/windows/svc"
)

// isWindowsService reports whether the process was started by the Windows
// Service Control Manager. Must be called early, before any console I/O.
func isWindowsService() bool {
	ok, err := svc.IsWindowsService()
	if err != nil {
		return false
	}
	return ok
}

// barrierService implements svc.Handler for the Windows SCM.
type barrierService struct {
	mu sync.Mutex
}

// runAsService runs the server daemon under the Windows Service Control
// Manager instead of a console session.
func runAsService() error {
	return svc.Run("BarrierNetServer", &barrierService{})
}

// Execute is the SCM callback: it starts the daemon, reports Running, then
// blocks until the SCM sends Stop or Shutdown.
func (s *barrierService) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (bool, uint32) {
	const accepted = svc.AcceptStop | svc.AcceptShutdown

	changes <- svc.Status{State: svc.StartPending}

	comps, err := startServer()
	if err != nil {
		log.Error("server start failed", "error", err)
		changes <- svc.Status{State: svc.StopPending}
		return true, 1
	}

	changes <- svc.Status{State: svc.Running, Accepts: accepted}
	log.Info("server running as Windows service")

	for {
		select {
		case cr := <-r:
			switch cr.Cmd {
			case svc.Interrogate:
				changes <- cr.CurrentStatus
			case svc.Stop, svc.Shutdown:
				log.Info("SCM requested stop")
				changes <- svc.Status{State: svc.StopPending}
				shutdownDaemon(comps)
				return false, 0
			}
		case err := <-comps.errCh:
			if err != nil {
				log.Error("server exited", "error", err)
			}
			shutdownDaemon(comps)
			return false, 0
		}
	}
}

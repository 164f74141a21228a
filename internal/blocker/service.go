package blocker

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Result is the response to a mutating request.
type Result struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
	Code    Code     `json:"code,omitempty"`
	Domains []string `json:"domains,omitempty"`
}

// AdminCheck reports whether this process can change the hosts file.
type AdminCheck struct {
	Success    bool   `json:"success"`
	NeedsAdmin bool   `json:"needsAdmin"`
	Writer     string `json:"writer,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Service exposes a Machine as request/response calls. It never panics and
// never returns a Go error: failures are carried in the result.
type Service struct {
	machine *Machine
}

// NewService wraps m.
func NewService(m *Machine) *Service {
	return &Service{machine: m}
}

// Machine returns the wrapped state machine.
func (s *Service) Machine() *Machine {
	return s.machine
}

// StartBlocking blocks domains.
func (s *Service) StartBlocking(ctx context.Context, domains []string) (res Result) {
	defer s.guard("startBlocking", &res)
	out, err := s.machine.Start(ctx, domains)
	return toResult(out, err)
}

// StopBlocking restores the hosts file.
func (s *Service) StopBlocking(ctx context.Context) (res Result) {
	defer s.guard("stopBlocking", &res)
	out, err := s.machine.Stop(ctx)
	return toResult(out, err)
}

// GetBlockingStatus reports the current state.
func (s *Service) GetBlockingStatus() Status {
	st := s.machine.Status()
	if st.Domains == nil {
		st.Domains = []string{}
	}
	return st
}

// ForceCleanHosts resets the hosts file to defaults.
func (s *Service) ForceCleanHosts(ctx context.Context) (res Result) {
	defer s.guard("forceCleanHosts", &res)
	out, err := s.machine.ForceClean(ctx)
	return toResult(out, err)
}

// CheckAdminPermissions reports whether blocking can be started.
func (s *Service) CheckAdminPermissions() (res AdminCheck) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("checkAdminPermissions panicked: %v", r)
			res = AdminCheck{Error: fmt.Sprint(r)}
		}
	}()

	a := s.machine.hosts.CheckAccess()
	return AdminCheck{
		Success:    a.CanWrite,
		NeedsAdmin: a.NeedsAdmin,
		Writer:     a.Writer,
		Error:      a.Reason,
	}
}

// RunSession blocks domains for d, then stops. It returns early when ctx is
// cancelled; the block is removed in both cases within grace.
func (s *Service) RunSession(ctx context.Context, domains []string, d, grace time.Duration) (Result, error) {
	res := s.StartBlocking(ctx, domains)
	if !res.Success {
		return res, nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		log.Infof("session finished after %s", d)
	case <-ctx.Done():
		log.Infof("session interrupted")
	}

	// The session context may already be done; give stop its own deadline.
	stopCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return res, s.machine.Shutdown(stopCtx, grace)
}

func (s *Service) guard(op string, res *Result) {
	if r := recover(); r != nil {
		log.Errorf("%s panicked: %v", op, r)
		*res = Result{Error: fmt.Sprint(r), Code: CodeInternal}
	}
}

func toResult(out Outcome, err error) Result {
	if err != nil {
		return Result{Error: err.Error(), Code: CodeOf(err)}
	}
	return Result{Success: true, Message: out.Message, Domains: out.Domains}
}

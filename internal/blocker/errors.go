package blocker

import (
	"errors"

	"github.com/blackwell-systems/pomoblock/internal/hosts"
	"github.com/blackwell-systems/pomoblock/internal/snapshots"
)

// ErrEmptyDomainList is returned by Start when no domains were given.
var ErrEmptyDomainList = errors.New("no sites provided for blocking")

// ErrBusy is returned when ctx ended while another hosts file change was
// still in progress.
var ErrBusy = errors.New("another hosts file change is in progress")

// Code is the stable error kind reported to API clients.
type Code string

const (
	CodeNone                Code = ""
	CodeUnsupportedPlatform Code = "unsupported_platform"
	CodeEmptyDomainList     Code = "empty_domain_list"
	CodeInvalidDomain       Code = "invalid_domain"
	CodeNoBackup            Code = "no_backup"
	CodePermissionDenied    Code = "permission_denied"
	CodeWriteError          Code = "write_error"
	CodeBusy                Code = "busy"
	CodeInternal            Code = "internal"
)

// CodeOf classifies err. PermissionDenied is checked before WriteError
// because it is always wrapped inside one.
func CodeOf(err error) Code {
	var werr *hosts.WriteError
	switch {
	case err == nil:
		return CodeNone
	case errors.Is(err, hosts.ErrUnsupportedPlatform):
		return CodeUnsupportedPlatform
	case errors.Is(err, ErrEmptyDomainList):
		return CodeEmptyDomainList
	case errors.Is(err, hosts.ErrInvalidDomain):
		return CodeInvalidDomain
	case errors.Is(err, snapshots.ErrNoBackup):
		return CodeNoBackup
	case errors.Is(err, ErrBusy):
		return CodeBusy
	case errors.Is(err, hosts.ErrPermissionDenied):
		return CodePermissionDenied
	case errors.As(err, &werr):
		return CodeWriteError
	default:
		return CodeInternal
	}
}

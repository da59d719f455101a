package console

import "github.com/caffeineduck/funhost/host"

// Kind is the coarse status shown to the user.
type Kind int

const (
	NotReady Kind = iota
	Loading
	Ready
	Running
	Error
)

var kindNames = [...]string{
	NotReady: "not-ready",
	Loading:  "loading",
	Ready:    "ready",
	Running:  "running",
	Error:    "error",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Status is a status kind with its message.
type Status struct {
	Kind Kind
	Text string
}

// statusFor maps a host transition to the status the user sees.
func statusFor(s host.State) Status {
	switch s {
	case host.Idle:
		return Status{NotReady, "Not ready"}
	case host.LoadingEngine:
		return Status{Loading, "Loading runtime..."}
	case host.LoadingManifest, host.StagingFiles, host.RegisteringPath:
		return Status{Loading, "Loading FunLang sources..."}
	case host.ImportingEntryPoint:
		return Status{Loading, "Initializing runner..."}
	case host.Ready:
		return Status{Ready, "Ready"}
	default:
		return Status{Error, "Boot failed"}
	}
}

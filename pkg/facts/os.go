package facts

import (
	"context"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/amazonlinux/bottlerocket/nodeagent/pkg/logging"
)

// OS reports facts available from the running process: hostname, fully
// qualified domain name, operating system and architecture. When the hostname
// cannot be determined the name facts are left unset and the remaining facts
// are still reported.
type OS struct {
	log logging.Logger

	// Hostname and LookupCNAME may be replaced in tests.
	Hostname    func() (string, error)
	LookupCNAME func(ctx context.Context, host string) (string, error)
}

func NewOS(log logging.Logger) *OS {
	return &OS{
		log:         log,
		Hostname:    os.Hostname,
		LookupCNAME: net.DefaultResolver.LookupCNAME,
	}
}

func (*OS) Name() string { return "os" }

func (o *OS) Collect(ctx context.Context) (Facts, error) {
	facts := Facts{
		"os":           runtime.GOOS,
		"architecture": runtime.GOARCH,
		"processors":   strconv.Itoa(runtime.NumCPU()),
	}

	host, err := o.Hostname()
	if err != nil {
		o.log.WithError(err).Warn("unable to determine hostname")
		return facts, nil
	}
	if host == "" {
		return facts, nil
	}

	short := host
	if i := strings.IndexByte(host, '.'); i > 0 {
		short = host[:i]
		facts["domain"] = host[i+1:]
		facts[FQDN] = host
	} else if cname, err := o.LookupCNAME(ctx, host); err == nil {
		cname = strings.TrimSuffix(cname, ".")
		if i := strings.IndexByte(cname, '.'); i > 0 && cname[:i] == host {
			facts["domain"] = cname[i+1:]
			facts[FQDN] = cname
		}
	}
	facts[Hostname] = short
	return facts, nil
}

package device

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"

	"github.com/net-toolbox/onboarder/internal/model"
)

func init() {
	Register("ios", func(params Params) Driver {
		return &iosDriver{params: params}
	})
}

// iosDriver collects facts from Cisco IOS devices over the SSH CLI.
type iosDriver struct {
	params Params
	client *ssh.Client
}

func (d *iosDriver) Open(ctx context.Context) error {
	if d.params.Telnet {
		return errors.Wrap(ErrConnection, "telnet transport not supported by the ios driver")
	}

	client, err := dialSSH(ctx, d.params.Address, d.params.Port, sshClientConfig(d.params.Credentials, d.params.Timeout))
	if err != nil {
		return errors.Wrap(ErrConnection, err.Error())
	}

	d.client = client

	return nil
}

func (d *iosDriver) Close() error {
	if d.client == nil {
		return nil
	}

	err := d.client.Close()
	d.client = nil

	return err
}

func (d *iosDriver) CLI(_ context.Context, commands []string) (map[string]string, error) {
	if d.client == nil {
		return nil, errors.Wrap(ErrConnection, "session not open")
	}

	output := make(map[string]string, len(commands))

	for _, command := range commands {
		out, err := runCommand(d.client, command)
		if err != nil {
			return nil, err
		}

		output[command] = out
	}

	return output, nil
}

var (
	iosHostnameRe = regexp.MustCompile(`(?m)^(\S+) uptime is`)
	iosModelRe    = regexp.MustCompile(`(?im)^Model Number\s*:\s*(\S+)`)
	iosModelAltRe = regexp.MustCompile(`(?m)^[Cc]isco (\S+?)(?:\s+\([^)]*\))? processor`)
	iosSerialRe   = regexp.MustCompile(`(?im)^(?:System Serial Number\s*:|Processor board ID)\s*(\S+)`)

	iosIfaceRe  = regexp.MustCompile(`(?m)^(\S+) is [^,]+, line protocol`)
	iosIfAddrRe = regexp.MustCompile(`Internet address is (\d+\.\d+\.\d+\.\d+)/(\d+)`)
)

func (d *iosDriver) Facts(ctx context.Context) (*RawFacts, error) {
	output, err := d.CLI(ctx, []string{"show version"})
	if err != nil {
		return nil, err
	}

	return parseIOSShowVersion(output["show version"])
}

func parseIOSShowVersion(version string) (*RawFacts, error) {
	facts := &RawFacts{Vendor: "Cisco"}

	if m := iosHostnameRe.FindStringSubmatch(version); m != nil {
		facts.Hostname = m[1]
	}

	if m := iosModelRe.FindStringSubmatch(version); m != nil {
		facts.Model = m[1]
	} else if m := iosModelAltRe.FindStringSubmatch(version); m != nil {
		facts.Model = m[1]
	}

	if m := iosSerialRe.FindStringSubmatch(version); m != nil {
		facts.SerialNumber = m[1]
	}

	if facts.Hostname == "" || facts.Model == "" {
		return nil, errors.Wrap(ErrCommand, "could not parse show version output")
	}

	return facts, nil
}

func (d *iosDriver) InterfaceIPs(ctx context.Context) (model.InterfaceIPs, error) {
	output, err := d.CLI(ctx, []string{"show ip interface"})
	if err != nil {
		return nil, err
	}

	return parseIOSInterfaceIPs(output["show ip interface"]), nil
}

// parseIOSInterfaceIPs walks "show ip interface" output: interface header
// lines start at column zero, address lines are indented beneath them.
func parseIOSInterfaceIPs(output string) model.InterfaceIPs {
	ips := model.InterfaceIPs{}

	var current string

	for _, line := range strings.Split(output, "\n") {
		if m := iosIfaceRe.FindStringSubmatch(line); m != nil {
			current = m[1]
			continue
		}

		if current == "" {
			continue
		}

		if m := iosIfAddrRe.FindStringSubmatch(line); m != nil {
			prefixLen, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}

			ips[current] = append(ips[current], model.InterfaceIP{Address: m[1], PrefixLen: prefixLen})
		}
	}

	return ips
}

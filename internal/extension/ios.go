package extension

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/net-toolbox/onboarder/internal/device"
	"github.com/net-toolbox/onboarder/internal/model"
)

func init() {
	Register("ios", iosStackHook)
}

var (
	iosSwitchHeaderRe = regexp.MustCompile(`(?m)^Switch\s+0?(\d+)\s*$`)
	iosUnitModelRe    = regexp.MustCompile(`(?m)^Model [Nn]umber\s*:\s*(\S+)`)
	iosUnitSerialRe   = regexp.MustCompile(`(?m)^System [Ss]erial [Nn]umber\s*:\s*(\S+)`)
	iosUnitMACRe      = regexp.MustCompile(`(?m)^Base [Ee]thernet MAC [Aa]ddress\s*:\s*(\S+)`)
)

const showVersion = "show version"

// iosStackHook detects Catalyst switch stacks from show version output.
// Virtual platforms (IOSv) never stack and are skipped outright.
func iosStackHook(ctx context.Context, facts *model.DeviceFacts, drv device.Driver, logger *logrus.Logger) error {
	output, err := drv.CLI(ctx, []string{showVersion})
	if err != nil {
		return device.ClassifyErr(err)
	}

	version := output[showVersion]

	if strings.Contains(version, "IOSv") {
		logger.Debug("virtual platform, skipping stack detection")
		return nil
	}

	units, err := parseIOSStackUnits(version)
	if err != nil {
		return model.NewOnboardError(model.FailGeneral, err.Error())
	}

	if len(units) <= 1 {
		return nil
	}

	facts.Strategy = model.StrategyStacked
	facts.StackUnits = units

	logger.WithFields(logrus.Fields{"units": len(units)}).Info("detected stacked device")

	return nil
}

// parseIOSStackUnits splits show version output into per-unit sections and
// extracts each unit's model, serial and base MAC. The first section belongs
// to unit 1 even though IOS prints its "Switch 01" header only on stacks.
func parseIOSStackUnits(version string) ([]model.StackUnit, error) {
	headers := iosSwitchHeaderRe.FindAllStringSubmatchIndex(version, -1)

	type section struct {
		position int
		text     string
	}

	sections := []section{}

	if len(headers) == 0 {
		sections = append(sections, section{position: 1, text: version})
	} else {
		// Anything before the first header describes the master unit on
		// platforms that omit its header.
		if strings.Contains(version[:headers[0][0]], "Model Number") {
			sections = append(sections, section{position: 1, text: version[:headers[0][0]]})
		}

		for i, header := range headers {
			position, err := strconv.Atoi(version[header[2]:header[3]])
			if err != nil {
				return nil, model.NewOnboardError(model.FailGeneral, "unparseable stack member position")
			}

			end := len(version)
			if i+1 < len(headers) {
				end = headers[i+1][0]
			}

			sections = append(sections, section{position: position, text: version[header[1]:end]})
		}
	}

	units := []model.StackUnit{}

	for _, sec := range sections {
		modelMatch := iosUnitModelRe.FindStringSubmatch(sec.text)
		if modelMatch == nil {
			// Routers and older switches print no per-unit inventory
			// block at all; that is a standalone device, not an error.
			if len(sections) == 1 {
				return nil, nil
			}

			return nil, model.NewOnboardError(model.FailGeneral,
				"stack member "+strconv.Itoa(sec.position)+" missing model number")
		}

		serialMatch := iosUnitSerialRe.FindStringSubmatch(sec.text)
		if serialMatch == nil {
			return nil, model.NewOnboardError(model.FailGeneral,
				"stack member "+strconv.Itoa(sec.position)+" missing serial number")
		}

		macMatch := iosUnitMACRe.FindStringSubmatch(sec.text)
		mac := ""
		if macMatch != nil {
			mac = macMatch[1]
		}

		units = append(units, model.StackUnit{
			Position:     sec.position,
			SerialNumber: serialMatch[1],
			Model:        strings.ToLower(modelMatch[1]),
			MACAddress:   mac,
		})
	}

	return units, nil
}

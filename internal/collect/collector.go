package collect

import (
	"context"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/net-toolbox/onboarder/internal/device"
	"github.com/net-toolbox/onboarder/internal/model"
)

// unsluggableRe matches characters that cannot appear in a slug.
var unsluggableRe = regexp.MustCompile(`[^a-zA-Z0-9\-_]+`)

// Collector retrieves canonical facts through an open driver session.
type Collector struct {
	settings model.Settings
	logger   *logrus.Logger
}

func NewCollector(settings model.Settings, logger *logrus.Logger) *Collector {
	return &Collector{settings: settings, logger: logger}
}

// Collect gathers and normalizes the device fact set.
//
// mgmtAddr is the address the device was reached at; it anchors the
// management interface resolution.
func (c *Collector) Collect(ctx context.Context, session *device.Session, mgmtAddr string) (*model.DeviceFacts, error) {
	c.logger.WithFields(logrus.Fields{"address": mgmtAddr}).Info("collecting device facts")

	raw, err := session.Driver.Facts(ctx)
	if err != nil {
		return nil, device.ClassifyErr(err)
	}

	interfaceIPs, err := session.Driver.InterfaceIPs(ctx)
	if err != nil {
		return nil, device.ClassifyErr(err)
	}

	facts := &model.DeviceFacts{
		Hostname:      raw.Hostname,
		Vendor:        titleCase(raw.Vendor),
		Model:         c.normalizeModel(raw.Model),
		SerialNumber:  raw.SerialNumber,
		FingerprintID: session.FingerprintID,
		DriverName:    session.DriverName,
		Strategy:      model.StrategyStandalone,
	}

	facts.MgmtIfName, facts.MgmtPrefixLen = c.resolveMgmt(mgmtAddr, interfaceIPs)

	return facts, nil
}

// normalizeModel lowercases the model and rewrites it when it contains
// characters illegal for a slug. The rewrite happens exactly once, here, so
// device-type lookup and creation see the same value.
func (c *Collector) normalizeModel(rawModel string) string {
	normalized := strings.ToLower(rawModel)

	if normalized != "" && unsluggableRe.MatchString(normalized) {
		rewritten := strings.ReplaceAll(normalized, " ", "-")

		c.logger.WithFields(logrus.Fields{
			"model":     normalized,
			"rewritten": rewritten,
		}).Warn("device model is not sluggable, rewriting")

		normalized = rewritten
	}

	return normalized
}

// resolveMgmt locates the interface carrying the address the device was
// reached at. No match falls back to the configured default interface and
// prefix length: behind NAT the visible address may not exist on the device
// at all, which is a policy case, not an error.
func (c *Collector) resolveMgmt(mgmtAddr string, interfaceIPs model.InterfaceIPs) (string, int) {
	for ifName, addrs := range interfaceIPs {
		for _, addr := range addrs {
			if addr.Address == mgmtAddr {
				return ifName, addr.PrefixLen
			}
		}
	}

	c.logger.WithFields(logrus.Fields{
		"address":  mgmtAddr,
		"fallback": c.settings.DefaultMgmtIfName,
	}).Info("management address not present on device interfaces, using fallback")

	return c.settings.DefaultMgmtIfName, c.settings.DefaultMgmtPrefixLen
}

// titleCase uppercases the first letter of each space-separated word and
// lowercases the rest.
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}

	return strings.Join(words, " ")
}

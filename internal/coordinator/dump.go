// internal/coordinator/dump.go
package coordinator

import (
	"fmt"

	"github.com/tamzrod/spectro-coordinator/internal/device"
)

// debugMarker is injected into the driver's own log after a dump so the
// two logs can be lined up.
const debugMarker = "sample injected log debug message"

// DeviceDump is everything MetadataDump reads from one device.
type DeviceDump struct {
	Index    int
	Serial   string
	Settings device.Settings
	Fields   []device.Field
	Pages    [][]byte // nil entries failed to read

	// SettingsErr joins the settings that could not be read.
	SettingsErr error
}

// MetadataDump logs and returns the settings, EEPROM map and raw EEPROM
// pages of every device. Raw pages are only logged at DEBUG.
func (c *Coordinator) MetadataDump() []DeviceDump {
	devs := c.reg.Devices()
	out := make([]DeviceDump, 0, len(devs))

	for _, d := range devs {
		dd := DeviceDump{
			Index:  d.Index(),
			Serial: d.SerialNumber(),
			Fields: d.Metadata().Fields(),
			Pages:  make([][]byte, device.EEPROMPages),
		}

		c.log.Infof("Metadata for %s", dd.Serial)

		dd.Settings, dd.SettingsErr = d.Settings()
		if dd.SettingsErr != nil {
			c.log.Errorf("read settings of %s: %v", dd.Serial, dd.SettingsErr)
		}
		for _, line := range dd.Settings.Lines() {
			c.log.Infof("%s", line)
		}

		c.log.Infof("  EEPROM:")
		for _, f := range dd.Fields {
			c.log.Infof("    %s = %s", f.Name, f.Value)
		}

		for page := 0; page < device.EEPROMPages; page++ {
			buf, err := d.EEPROMPage(page)
			if err != nil {
				c.log.Errorf("read EEPROM page %d of %s: %v", page, dd.Serial, err)
				continue
			}
			dd.Pages[page] = buf
			c.log.Hexdump(buf, fmt.Sprintf("    buf[%d]: ", page))
		}

		out = append(out, dd)
	}

	if err := c.gw.LogDebug(debugMarker); err != nil {
		c.log.Errorf("driver log debug: %v", err)
	}
	return out
}

// Package notify raises desktop notifications for outcomes the user may
// miss while the terminal is in the background.
package notify

import (
	"github.com/gen2brain/beeep"

	"smartbiz/log"
)

// Desktop implements voice.Notifier. A disabled Desktop only logs.
type Desktop struct {
	enabled bool
	send    func(title, message string) error
}

func New(enabled bool) *Desktop {
	beeep.AppName = "SmartBiz"
	return &Desktop{
		enabled: enabled,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

func (d *Desktop) Notify(title, message string) {
	if d == nil || !d.enabled {
		return
	}
	if err := d.send(title, message); err != nil {
		log.Warnf("desktop notification: %v", err)
	}
}

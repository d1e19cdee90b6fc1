package sched_go

import (
	"github.com/sirupsen/logrus" //nolint:depguard // package-wide logger shared by the scheduler and its helpers
)

// Log is the package-level logger used throughout sched-go.
// Ordering decisions are logged at debug level; raise the level to see them.
var Log = logrus.New()

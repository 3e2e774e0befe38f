package sim

import "github.com/sirupsen/logrus"

// simTimeHook stamps each record with the model time of the run that emitted it.
type simTimeHook struct {
	now func() float64
}

func (h *simTimeHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *simTimeHook) Fire(entry *logrus.Entry) error {
	entry.Data["sim_time"] = h.now()
	return nil
}

// newModelLogger derives a per-run logger from base (the standard logger
// when nil). Output, formatter and level are shared; hooks are not, so runs
// executing concurrently each report their own clock.
func newModelLogger(base *logrus.Logger, now func() float64) *logrus.Logger {
	if base == nil {
		base = logrus.StandardLogger()
	}
	l := logrus.New()
	l.SetOutput(base.Out)
	l.SetFormatter(base.Formatter)
	l.SetLevel(base.GetLevel())
	l.SetReportCaller(base.ReportCaller)
	l.AddHook(&simTimeHook{now: now})
	return l
}

package backup

// Host is what a presentation layer offers the orchestrator. Deliver calls
// it only from the goroutine that runs Deliver.
type Host interface {
	ReportProgress(label string, fraction float64)
	AppendLog(line string)
	PromptPassword() (string, bool)
	SelectDirectory() (string, bool)
	SelectFile() (string, bool)
}

// Deliver pumps events into host in emission order until the worker closes
// the stream, then returns the job's outcome.
func Deliver(events <-chan Event, host Host) (Result, error) {
	var (
		res Result
		err error
	)

	for ev := range events {
		switch ev.Kind {
		case EventProgress:
			host.ReportProgress(ev.Label(), ev.Fraction)
		case EventLog:
			host.AppendLog(ev.Line)
		case EventDone:
			res, err = ev.Result, ev.Err
		}
	}

	return res, err
}

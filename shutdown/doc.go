// Package shutdown orders the teardown of an echobeat process.
//
// Handlers are registered with a phase. On SIGINT, SIGTERM or an explicit
// Shutdown call the phases run once, lowest first; handlers sharing a
// phase run concurrently. A failing handler never stops later phases, so
// the log sink registered in PhaseSink is released on every exit path.
//
//	coord, err := shutdown.NewCoordinator(shutdown.DefaultConfig())
//	stop := coord.HandleSignals()
//	defer stop()
//
//	coord.Register("initiator", shutdown.PhaseRole, stopInitiator)
//	coord.Register("log-sink", shutdown.PhaseSink, closeSink)
//
//	<-coord.Done()
package shutdown

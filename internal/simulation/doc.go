// Package simulation drives cognitive maps through epochs.
//
// A Controller either runs a fixed number of epochs (Run) or runs until the
// mean squared change of the concept outputs drops to a threshold
// (Converge). Both return a Result, optionally carrying a Trace of every
// concept's output after every epoch, and notify Observers as epochs
// complete. Logging, metrics and CSV export hook in as observers.
//
// Usage:
//
//	ctrl := simulation.NewController(m, simulation.DefaultConfig())
//	res, err := ctrl.Converge(0.001, 1000)
//	if err != nil {
//	    return err
//	}
//	if !res.Converged {
//	    fmt.Printf("no convergence after %d epochs (delta %s)\n", res.Epochs, res.Delta)
//	}
//
// Non-convergence is reported through Result.Converged, never as an error.
package simulation
